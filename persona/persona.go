package persona

import (
	"fmt"
	"strings"
)

const DefaultModel = "llama3.2"

// ProfileKind tags which shape a persona was authored in.
type ProfileKind int

const (
	ProfileLegacy ProfileKind = iota
	ProfileStructured
)

// Stance scores run from -1 to +1 on each axis.
type Stance struct {
	Economic         float64 `yaml:"economic" json:"economic"`
	Social           float64 `yaml:"social" json:"social"`
	Authority        float64 `yaml:"authority" json:"authority"`
	OpinionIntensity string  `yaml:"opinion_intensity" json:"opinion_intensity"`
}

type Structured struct {
	Age               string
	Traits            []string
	Interests         []string
	EmotionalBaseline string
	LanguageStyle     string
	Stance            Stance
	BeliefAnchor      string
}

// Profile is either free legacy text or structured fields. Exactly one side is
// meaningful, selected by Kind.
type Profile struct {
	Kind       ProfileKind
	Legacy     string
	Structured Structured
}

func LegacyProfile(text string) Profile {
	return Profile{Kind: ProfileLegacy, Legacy: strings.TrimSpace(text)}
}

func StructuredProfile(s Structured) Profile {
	return Profile{Kind: ProfileStructured, Structured: s}
}

// Persona is immutable once loaded. The system prompt and the reply persona
// block are rendered at construction so callers never inspect the profile
// shape.
type Persona struct {
	Name    string
	Model   string
	Profile Profile

	systemPrompt string
	replyPersona string
}

func New(name, model string, profile Profile) Persona {
	name = strings.TrimSpace(name)
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	p := Persona{Name: name, Model: model, Profile: profile}
	p.systemPrompt = renderSystemPrompt(name, profile)
	p.replyPersona = renderReplyPersona(name, profile)
	return p
}

func (p Persona) SystemPrompt() string {
	if p.systemPrompt == "" {
		return renderSystemPrompt(p.Name, p.Profile)
	}
	return p.systemPrompt
}

// CollectionKey is the memory collection used for this persona.
func (p Persona) CollectionKey() string {
	return CollectionKey(p.Name)
}

func renderSystemPrompt(name string, profile Profile) string {
	if profile.Kind == ProfileLegacy {
		if profile.Legacy != "" {
			return profile.Legacy
		}
		return fmt.Sprintf("You are %s.", orDefault(name, "Unknown"))
	}
	s := profile.Structured
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s-year-old.\n", orDefault(name, "Unknown"), orDefault(s.Age, "Unknown"))
	fmt.Fprintf(&b, "Your traits are: %s.\n", strings.Join(s.Traits, ", "))
	fmt.Fprintf(&b, "Your interests include: %s.\n", strings.Join(s.Interests, ", "))
	fmt.Fprintf(&b, "Your emotional baseline is %s and your language style is %s.\n\n",
		orDefault(s.EmotionalBaseline, "Neutral"), orDefault(s.LanguageStyle, "Standard"))
	b.WriteString("Political Stance:\n")
	fmt.Fprintf(&b, "- Economic: %g (Scale: -1 Left to +1 Right)\n", s.Stance.Economic)
	fmt.Fprintf(&b, "- Social: %g (Scale: -1 Conservative to +1 Progressive)\n", s.Stance.Social)
	fmt.Fprintf(&b, "- Authority: %g (Scale: -1 Anarchist to +1 Authoritarian)\n", s.Stance.Authority)
	fmt.Fprintf(&b, "- Opinion Intensity: %s\n\n", orDefault(s.Stance.OpinionIntensity, "medium"))
	b.WriteString("Belief Anchor:\n")
	fmt.Fprintf(&b, "\"%s\"\n\n", s.BeliefAnchor)
	b.WriteString("Adopt this persona fully in all your responses. ")
	b.WriteString("Speak naturally as this person would, reflecting their age, traits, and beliefs. ")
	b.WriteString("Vary the length of your responses. Use short sentences for simple interactions, and only go into detail when the topic requires it.")
	return b.String()
}

// ReplyPrompt frames a reply to another user's message in this persona's voice.
func (p Persona) ReplyPrompt(contextMessage string) string {
	block := p.replyPersona
	if block == "" {
		block = renderReplyPersona(p.Name, p.Profile)
	}
	var b strings.Builder
	b.WriteString("You are a social media user replying to another comment.\n")
	b.WriteString("You speak emotionally but stay coherent.\n\n")
	b.WriteString(block)
	b.WriteString("Context:\nAnother user wrote:\n")
	fmt.Fprintf(&b, "\"%s\"\n\n", contextMessage)
	b.WriteString("Write a reply as this person would.\n")
	b.WriteString("It can show frustration, but must stay understandable.\n")
	b.WriteString("Keep your reply concise. Avoid long paragraphs unless deeply explaining a complex topic.\n")
	b.WriteString("IMPORTANT: Output ONLY the reply text itself. Do not include quotes. Do not include 'Here is a reply' or any other conversational filler. Just the reply.")
	return b.String()
}

func renderReplyPersona(name string, profile Profile) string {
	var b strings.Builder
	b.WriteString("Your persona:\n")
	if profile.Kind != ProfileStructured {
		fmt.Fprintf(&b, "%s\n\n", renderSystemPrompt(name, profile))
		return b.String()
	}
	s := profile.Structured
	fmt.Fprintf(&b, "Age: %s\n", orDefault(s.Age, "Unknown"))
	fmt.Fprintf(&b, "Traits: %s\n", strings.Join(s.Traits, ", "))
	fmt.Fprintf(&b, "Language style: %s\n", orDefault(s.LanguageStyle, "Standard"))
	fmt.Fprintf(&b, "Emotional baseline: %s\n\n", orDefault(s.EmotionalBaseline, "Neutral"))
	b.WriteString("Your political position:\n")
	fmt.Fprintf(&b, "%s\n", StanceDescription(s.Stance.Economic, AxisEconomic))
	fmt.Fprintf(&b, "%s\n", StanceDescription(s.Stance.Social, AxisSocial))
	fmt.Fprintf(&b, "%s\n\n", StanceDescription(s.Stance.Authority, AxisAuthority))
	b.WriteString("Belief anchor:\n")
	fmt.Fprintf(&b, "%s\n\n", s.BeliefAnchor)
	return b.String()
}

type Axis string

const (
	AxisEconomic  Axis = "economic"
	AxisSocial    Axis = "social"
	AxisAuthority Axis = "authority"
)

var stanceBands = map[Axis][5]string{
	AxisEconomic: {
		"Strongly Left-wing", "Left-leaning", "Centrist", "Right-leaning", "Strongly Right-wing",
	},
	AxisSocial: {
		"Strongly Conservative", "Conservative-leaning", "Moderate", "Progressive-leaning", "Strongly Progressive",
	},
	AxisAuthority: {
		"Strongly Anti-Authoritarian/Libertarian", "Anti-Authoritarian-leaning", "Moderate on Authority",
		"Authoritarian-leaning", "Strongly Authoritarian",
	},
}

// StanceDescription maps a score in [-1, 1] to a descriptive band.
func StanceDescription(value float64, axis Axis) string {
	bands, ok := stanceBands[axis]
	if !ok {
		return "Unknown"
	}
	switch {
	case value < -0.6:
		return bands[0]
	case value < -0.2:
		return bands[1]
	case value < 0.2:
		return bands[2]
	case value < 0.6:
		return bands[3]
	default:
		return bands[4]
	}
}

// CollectionKey folds a persona name into a memory collection identifier:
// spaces become underscores, case is folded and anything outside
// [a-z0-9_-] is dropped.
func CollectionKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "persona"
	}
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
