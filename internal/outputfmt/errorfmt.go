// Package outputfmt renders errors for the terminal.
package outputfmt

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/quailyquaily/socialsim/environment"
	"github.com/quailyquaily/socialsim/learner"
	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/persona"
	"github.com/quailyquaily/socialsim/post"
)

var urlInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)

var hints = []struct {
	target error
	hint   string
}{
	{llm.ErrUnavailable, "is Ollama running at llm.endpoint?"},
	{post.ErrNotFound, "check the id with `socialsim post list`"},
	{post.ErrConflict, "the post changed; reload it and retry"},
	{post.ErrDuplicate, "this author already wrote here"},
	{persona.ErrUnknownPersona, "check personas.path"},
	{learner.ErrIncompatibleArtifact, "retrain with `socialsim train`"},
	{environment.ErrInvalidAction, "see `socialsim generate --list`"},
}

// FormatErrorForDisplay returns the error text with URL credentials removed
// and, for known failures, a short hint appended.
func FormatErrorForDisplay(err error) string {
	if err == nil {
		return ""
	}
	text := SanitizeErrorText(err.Error())
	for _, h := range hints {
		if errors.Is(err, h.target) {
			return text + " (" + h.hint + ")"
		}
	}
	return text
}

// SanitizeErrorText strips user info and secret-looking query values from
// URLs embedded in raw.
func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return urlInTextRE.ReplaceAllStringFunc(raw, sanitizeURL)
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.User = nil
	if q := u.Query(); len(q) > 0 {
		for k := range q {
			if isSecretKey(k) {
				q.Set(k, "redacted")
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func isSecretKey(key string) bool {
	k := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	switch k {
	case "key", "apikey", "token", "accesstoken", "secret", "password":
		return true
	}
	return false
}
