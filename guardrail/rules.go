package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength blocks text longer than Limit runes.
type MaxLength struct {
	Limit int
}

func (r *MaxLength) Name() string { return "max_length" }

func (r *MaxLength) Check(_ context.Context, text string) (Result, error) {
	if n := utf8.RuneCountInString(text); n > r.Limit {
		return block(r.Name(), fmt.Sprintf("text is %d characters, limit is %d", n, r.Limit)), nil
	}
	return pass(r.Name()), nil
}

// Blocklist blocks text containing any of the given terms,
// case-insensitively.
type Blocklist struct {
	Terms []string
}

func NewBlocklist(terms ...string) *Blocklist { return &Blocklist{Terms: terms} }

func (r *Blocklist) Name() string { return "blocklist" }

func (r *Blocklist) Check(_ context.Context, text string) (Result, error) {
	lower := strings.ToLower(text)
	for _, term := range r.Terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return block(r.Name(), "blocked term: "+term), nil
		}
	}
	return pass(r.Name()), nil
}

// PIIRedactor replaces common personally identifiable patterns.
type PIIRedactor struct{}

var piiPatterns = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`\b(?:\d{4}[\s\-]?){3}\d{4}\b`), "[CARD]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
	{regexp.MustCompile(`\b(?:\+?1[\s\-]?)?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{4}\b`), "[PHONE]"},
}

func (r *PIIRedactor) Name() string { return "pii" }

func (r *PIIRedactor) Check(_ context.Context, text string) (Result, error) {
	sanitized := text
	hit := false
	for _, p := range piiPatterns {
		if p.pattern.MatchString(sanitized) {
			hit = true
			sanitized = p.pattern.ReplaceAllString(sanitized, p.replace)
		}
	}
	if !hit {
		return pass(r.Name()), nil
	}
	return redact(r.Name(), "personally identifiable information redacted", sanitized), nil
}

// SecretRedactor replaces credential-shaped strings before they reach a
// model or a transcript store.
type SecretRedactor struct{}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(AKIA|ASIA)[0-9A-Z]{16}`),
	regexp.MustCompile(`(ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9_]{36,255}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA|DSA|EC|OPENSSH|PGP|ENCRYPTED)?\s*PRIVATE KEY-----`),
	regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`),
}

func (r *SecretRedactor) Name() string { return "secrets" }

func (r *SecretRedactor) Check(_ context.Context, text string) (Result, error) {
	sanitized := text
	hit := false
	for _, p := range secretPatterns {
		if p.MatchString(sanitized) {
			hit = true
			sanitized = p.ReplaceAllString(sanitized, "[SECRET]")
		}
	}
	if !hit {
		return pass(r.Name()), nil
	}
	return redact(r.Name(), "credential material redacted", sanitized), nil
}
