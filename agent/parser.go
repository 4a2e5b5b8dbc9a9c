package agent

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformedOutput is reported by the parsers when model text matches no
// known pattern. The value returned alongside it is the documented default.
var ErrMalformedOutput = errors.New("agent: malformed model output")

type Action string

const (
	ActionLike    Action = "LIKE"
	ActionComment Action = "COMMENT"
	ActionBoth    Action = "BOTH"
	ActionIgnore  Action = "IGNORE"
)

// Likes reports whether the action includes a like.
func (a Action) Likes() bool { return a == ActionLike || a == ActionBoth }

// Comments reports whether the action includes a comment.
func (a Action) Comments() bool { return a == ActionComment || a == ActionBoth }

type Decision struct {
	Action Action
	Reason string
}

func actionFromToken(tok string) (Action, bool) {
	switch strings.ToUpper(tok) {
	case "LIKE", "LIKES", "LIKED":
		return ActionLike, true
	case "COMMENT", "COMMENTS", "REPLY":
		return ActionComment, true
	case "BOTH":
		return ActionBoth, true
	case "IGNORE", "PASS", "SKIP", "NONE":
		return ActionIgnore, true
	}
	return "", false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// isNegation matches the word before a tag. words splits "don't" into
// "don" and "t", so the trailing "t" stands for any n't contraction.
func isNegation(w string) bool {
	switch strings.ToLower(w) {
	case "not", "never", "dont", "t":
		return true
	}
	return false
}

// stripLabel drops a leading "LABEL:" such as "DECISION:" or "REASON:".
func stripLabel(s string, labels ...string) string {
	s = strings.TrimSpace(s)
	for _, label := range labels {
		if len(s) > len(label) && strings.EqualFold(s[:len(label)], label) {
			rest := strings.TrimLeft(s[len(label):], " \t")
			if strings.HasPrefix(rest, ":") {
				return strings.TrimSpace(rest[1:])
			}
		}
	}
	return s
}

// ParseDecision reads the "DECISION | REASON" protocol. With a separator the
// first known tag on the left wins, except that a tag directly after a
// negation ("not", "don't", "never") is skipped; a left side holding only
// negated tags resolves to IGNORE. Without a separator only the first word
// counts and the rest of the text becomes the reason. Unknown tags resolve to
// IGNORE.
func ParseDecision(text string) (Decision, error) {
	text = strings.TrimSpace(firstLine(text))
	if text == "" {
		return Decision{Action: ActionIgnore}, ErrMalformedOutput
	}
	if left, right, ok := strings.Cut(text, "|"); ok {
		reason := stripLabel(right, "REASON")
		negated := false
		ws := words(stripLabel(left, "DECISION"))
		for i, w := range ws {
			action, ok := actionFromToken(w)
			if !ok {
				continue
			}
			if i > 0 && isNegation(ws[i-1]) {
				negated = true
				continue
			}
			return Decision{Action: action, Reason: reason}, nil
		}
		if negated {
			return Decision{Action: ActionIgnore, Reason: reason}, nil
		}
		return Decision{Action: ActionIgnore, Reason: reason}, ErrMalformedOutput
	}

	body := stripLabel(text, "DECISION")
	first, rest, _ := strings.Cut(body, " ")
	reason := strings.TrimSpace(strings.TrimLeft(rest, " -:,."))
	if ws := words(first); len(ws) > 0 {
		if action, ok := actionFromToken(ws[0]); ok {
			return Decision{Action: action, Reason: reason}, nil
		}
	}
	return Decision{Action: ActionIgnore, Reason: reason}, ErrMalformedOutput
}

// ParseYesNo reads the "YES/NO | REASON" protocol. Anything that is not a
// clear yes is a no.
func ParseYesNo(text string) (bool, string, error) {
	text = strings.TrimSpace(firstLine(text))
	head, reason, ok := strings.Cut(text, "|")
	if ok {
		reason = stripLabel(reason, "REASON")
	} else {
		var rest string
		head, rest, _ = strings.Cut(text, " ")
		reason = strings.TrimSpace(strings.TrimLeft(rest, " -:,."))
	}
	ws := words(stripLabel(head, "DECISION", "ANSWER"))
	if len(ws) == 0 {
		return false, reason, ErrMalformedOutput
	}
	switch strings.ToUpper(ws[0]) {
	case "YES", "Y", "TRUE":
		return true, reason, nil
	case "NO", "N", "FALSE":
		return false, reason, nil
	}
	return false, reason, ErrMalformedOutput
}

// ActionScores is a probability distribution over the four actions.
type ActionScores struct {
	Ignore  float64 `json:"ignore"`
	Like    float64 `json:"like"`
	Comment float64 `json:"comment"`
	Both    float64 `json:"both"`
}

func UniformScores() ActionScores {
	return ActionScores{Ignore: 0.25, Like: 0.25, Comment: 0.25, Both: 0.25}
}

// Best returns the most probable action; ties go to the earlier of IGNORE,
// LIKE, COMMENT, BOTH.
func (s ActionScores) Best() Action {
	best, bestScore := ActionIgnore, s.Ignore
	for _, c := range []struct {
		a Action
		v float64
	}{{ActionLike, s.Like}, {ActionComment, s.Comment}, {ActionBoth, s.Both}} {
		if c.v > bestScore {
			best, bestScore = c.a, c.v
		}
	}
	return best
}

const missingScorePrior = 0.1

var scoreRe = regexp.MustCompile(`(?i)\b(IGNORE|LIKE|COMMENT|BOTH)\s*[=:]\s*(-?\d+(?:\.\d+)?)`)

// ParseActionScores reads "IGNORE=x, LIKE=x, COMMENT=x, BOTH=x". Keys may be
// missing or reordered; missing keys take a small prior. The raw values are
// softmax-normalized. Text with no recognizable key yields a uniform
// distribution.
func ParseActionScores(text string) (ActionScores, error) {
	raw := map[Action]float64{}
	for _, m := range scoreRe.FindAllStringSubmatch(text, -1) {
		action := Action(strings.ToUpper(m[1]))
		if _, seen := raw[action]; seen {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		raw[action] = v
	}
	if len(raw) == 0 {
		return UniformScores(), ErrMalformedOutput
	}
	order := []Action{ActionIgnore, ActionLike, ActionComment, ActionBoth}
	vals := make([]float64, len(order))
	maxVal := math.Inf(-1)
	for i, a := range order {
		v, ok := raw[a]
		if !ok {
			v = missingScorePrior
		}
		vals[i] = v
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for i, v := range vals {
		vals[i] = math.Exp(v - maxVal)
		sum += vals[i]
	}
	return ActionScores{
		Ignore:  vals[0] / sum,
		Like:    vals[1] / sum,
		Comment: vals[2] / sum,
		Both:    vals[3] / sum,
	}, nil
}

var framingPrefixes = []string{"here's", "here is", "sure", "certainly", "okay", "of course"}

// CleanReply strips the framing models like to wrap around a reply: a lead-in
// such as "Here's a reply:" or "As <name>, ...:", a "<name>:" speaker tag and
// surrounding quotes.
func CleanReply(text string, name string) string {
	text = strings.TrimSpace(text)
	original := text
	lower := strings.ToLower(text)
	name = strings.TrimSpace(name)

	framed := false
	for _, p := range framingPrefixes {
		if strings.HasPrefix(lower, p) {
			framed = true
			break
		}
	}
	if !framed && strings.HasPrefix(lower, "as ") {
		framed = name == "" || strings.HasPrefix(lower[3:], strings.ToLower(name)) || strings.HasPrefix(lower[3:], "a ")
	}
	if framed {
		if _, after, ok := strings.Cut(text, ":"); ok && strings.TrimSpace(after) != "" {
			text = strings.TrimSpace(after)
		}
	}

	if name != "" {
		prefix := name + ":"
		if len(text) > len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}
	text = trimQuotes(text)
	if text == "" {
		return trimQuotes(original)
	}
	return text
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}, {"«", "»"}}
	for {
		trimmed := false
		for _, p := range pairs {
			if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
				s = strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
				trimmed = true
			}
		}
		if !trimmed {
			return s
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
