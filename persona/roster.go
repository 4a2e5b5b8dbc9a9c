package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownPersona = errors.New("persona: unknown persona")

// Roster is the ordered set of personas taking part in a simulation run.
type Roster struct {
	personas []Persona
	byKey    map[string]int // CollectionKey -> index
}

func NewRoster(personas []Persona) (*Roster, error) {
	r := &Roster{byKey: make(map[string]int, len(personas))}
	for i, p := range personas {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("persona %d name is required", i)
		}
		key := CollectionKey(p.Name)
		if j, exists := r.byKey[key]; exists {
			return nil, fmt.Errorf("duplicate persona name: %s collides with %s (key %q)", p.Name, r.personas[j].Name, key)
		}
		r.byKey[key] = len(r.personas)
		r.personas = append(r.personas, p)
	}
	return r, nil
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.personas)
}

// All returns a copy in roster order.
func (r *Roster) All() []Persona {
	if r == nil {
		return nil
	}
	return append([]Persona(nil), r.personas...)
}

func (r *Roster) At(i int) Persona {
	return r.personas[i]
}

func (r *Roster) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.personas))
	for i, p := range r.personas {
		out[i] = p.Name
	}
	return out
}

// Find looks a persona up by its collection key, so case and spacing are
// folded the same way memory collections are.
func (r *Roster) Find(name string) (Persona, error) {
	if r != nil && strings.TrimSpace(name) != "" {
		if i, ok := r.byKey[CollectionKey(name)]; ok {
			return r.personas[i], nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, name)
}

type rawProfile struct {
	Age               string   `yaml:"age"`
	Traits            []string `yaml:"traits"`
	Interests         []string `yaml:"interests"`
	EmotionalBaseline string   `yaml:"emotional_baseline"`
	LanguageStyle     string   `yaml:"language_style"`
}

type rawStructured struct {
	Profile         *rawProfile `yaml:"profile"`
	PoliticalStance Stance      `yaml:"political_stance"`
	BeliefAnchor    string      `yaml:"belief_anchor"`
}

type rawPersona struct {
	Name    string    `yaml:"name"`
	Model   string    `yaml:"model"`
	Persona yaml.Node `yaml:"persona"`

	rawStructured `yaml:",inline"`
}

// LoadRoster reads a persona list from a JSON or YAML file. Each entry either
// carries a legacy free-text "persona" string or structured profile fields,
// at the top level or nested under "persona".
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	roster, err := ParseRoster(data)
	if err != nil {
		return nil, fmt.Errorf("loading roster %s: %w", path, err)
	}
	return roster, nil
}

func ParseRoster(data []byte) (*Roster, error) {
	var raws []rawPersona
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}
	personas := make([]Persona, 0, len(raws))
	for i, raw := range raws {
		profile, err := resolveProfile(raw)
		if err != nil {
			return nil, fmt.Errorf("persona %d (%s): %w", i, raw.Name, err)
		}
		personas = append(personas, New(raw.Name, raw.Model, profile))
	}
	return NewRoster(personas)
}

func resolveProfile(raw rawPersona) (Profile, error) {
	switch raw.Persona.Kind {
	case yaml.ScalarNode:
		return LegacyProfile(raw.Persona.Value), nil
	case yaml.MappingNode:
		var nested rawStructured
		if err := raw.Persona.Decode(&nested); err != nil {
			return Profile{}, err
		}
		return structuredFrom(nested), nil
	case 0:
		if raw.Profile == nil && strings.TrimSpace(raw.BeliefAnchor) == "" {
			return LegacyProfile(""), nil
		}
		return structuredFrom(raw.rawStructured), nil
	default:
		return Profile{}, fmt.Errorf("unsupported persona shape")
	}
}

func structuredFrom(raw rawStructured) Profile {
	s := Structured{
		Stance:       raw.PoliticalStance,
		BeliefAnchor: strings.TrimSpace(raw.BeliefAnchor),
	}
	if raw.Profile != nil {
		s.Age = strings.TrimSpace(raw.Profile.Age)
		s.Traits = raw.Profile.Traits
		s.Interests = raw.Profile.Interests
		s.EmotionalBaseline = raw.Profile.EmotionalBaseline
		s.LanguageStyle = raw.Profile.LanguageStyle
	}
	return StructuredProfile(s)
}
