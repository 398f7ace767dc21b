package http1

import (
	"strings"

	"github.com/indigo-web/reactor/http/headers"
	"github.com/indigo-web/reactor/http/status"
)

type fieldEntry struct {
	rule  *headerRule
	name  string
	value string
	lines int
}

// Normalizer converts raw header field lines into an ordered mapping of names onto
// ordered value tokens. Lines of headers outside the accepted set are validated, yet
// silently dropped afterwards.
type Normalizer struct {
	fields []fieldEntry
}

func NewNormalizer(prealloc int) *Normalizer {
	return &Normalizer{
		fields: make([]fieldEntry, 0, prealloc),
	}
}

// Add validates a single field line split by the first colon.
func (n *Normalizer) Add(name, value string) error {
	if !isHeaderName(name) {
		return status.ErrBadHeaderName
	}

	value = trimOWS(value)
	for i := 0; i < len(value); i++ {
		if isCTL(value[i]) {
			return status.ErrBadHeaderValue
		}
	}

	rule := lookupRule(name)
	if rule == nil {
		return nil
	}

	for i := range n.fields {
		field := &n.fields[i]
		if field.rule != rule {
			continue
		}

		if !rule.repeatable {
			return status.ErrDuplicateHeader
		}

		// values of repeated lines are joined with the header's own separator, so each
		// line keeps contributing separate tokens
		field.value += string(rule.separator) + value
		field.lines++

		return nil
	}

	n.fields = append(n.fields, fieldEntry{
		rule:  rule,
		name:  name,
		value: value,
		lines: 1,
	})

	return nil
}

// Finish splits collected values into tokens, validates them and stores into dst in the
// order of the first arrival. The normalizer is reset afterwards.
func (n *Normalizer) Finish(dst *headers.Headers) error {
	defer n.Reset()

	if !n.has("host") {
		return status.ErrNoHost
	}

	for _, field := range n.fields {
		tokens := split(field.value, field.rule.separator)
		if field.rule.singleton && len(tokens) != 1 {
			return status.ErrBadHeaderValue
		}

		if field.rule.restricted {
			for _, token := range tokens {
				if !validToken(token, field.rule) {
					return status.ErrBadHeaderValue
				}
			}
		}

		dst.Add(field.name, tokens...)
	}

	return nil
}

func (n *Normalizer) Reset() {
	n.fields = n.fields[:0]
}

func (n *Normalizer) has(lowerName string) bool {
	rule := rules[lowerName]
	for _, field := range n.fields {
		if field.rule == rule {
			return true
		}
	}

	return false
}

func validToken(token string, rule *headerRule) bool {
	for i := 0; i < len(token); i++ {
		if c := token[i]; delimiters[c] && !rule.exceptions[c] {
			return false
		}
	}

	return true
}

// split returns OWS-trimmed non-empty tokens.
func split(value string, sep byte) []string {
	tokens := make([]string, 0, strings.Count(value, string(sep))+1)

	for len(value) > 0 {
		var token string
		if i := strings.IndexByte(value, sep); i == -1 {
			token, value = value, ""
		} else {
			token, value = value[:i], value[i+1:]
		}

		if token = trimOWS(token); len(token) > 0 {
			tokens = append(tokens, token)
		}
	}

	return tokens
}

func isHeaderName(name string) bool {
	if len(name) == 0 {
		return false
	}

	for i := 0; i < len(name); i++ {
		if !headerNameChars[name[i]] {
			return false
		}
	}

	return true
}

func trimOWS(s string) string {
	for len(s) > 0 && isOWS(s[0]) {
		s = s[1:]
	}

	for len(s) > 0 && isOWS(s[len(s)-1]) {
		s = s[:len(s)-1]
	}

	return s
}
