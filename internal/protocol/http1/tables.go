package http1

import (
	"strings"
)

// headerRule describes how an accepted header is stored and validated.
type headerRule struct {
	// name is the canonical spelling, used only for documentation purposes, as the
	// first-seen casing is preserved.
	name string
	// repeatable headers may be presented by multiple field lines. Their values are joined
	// in the order of arrival before splitting.
	repeatable bool
	// singleton headers must result in exactly one value token.
	singleton bool
	// separator splits the value into tokens.
	separator byte
	// restricted headers mustn't contain delimiters in their tokens, except those listed
	// in exceptions.
	restricted bool
	exceptions [256]bool
}

// delimiters are the characters which aren't allowed in tokens of restricted headers
// (RFC 9110, 5.6.2), unless a header explicitly allows them.
var delimiters = charset(`"(),/:;<=>?@[\]{}`)

// rules is a table of accepted headers. Headers not listed here are silently dropped.
// Keys are lower-cased names.
var rules = func() map[string]*headerRule {
	list := []*headerRule{
		{name: "Host", singleton: true, restricted: true, exceptions: charset(":[]")},
		{name: "Content-Length", singleton: true, restricted: true},
		{name: "Transfer-Encoding", restricted: true},
		{name: "Connection", restricted: true},
		{name: "Content-Type", separator: ';', restricted: true, exceptions: charset(`/="`)},
		{name: "Content-Disposition", separator: ';'},
		{name: "Accept", repeatable: true, restricted: true, exceptions: charset("/;=")},
		{name: "Accept-Encoding", repeatable: true, restricted: true, exceptions: charset(";=")},
		{name: "Accept-Language", repeatable: true, restricted: true, exceptions: charset(";=")},
		{name: "Cache-Control", repeatable: true, separator: ';', restricted: true, exceptions: charset(`=,"`)},
		{name: "Cookie", repeatable: true, separator: ';'},
		{name: "Set-Cookie", repeatable: true, separator: ';'},
		{name: "If-None-Match", repeatable: true, restricted: true, exceptions: charset(`"/`)},
		{name: "Range", restricted: true, exceptions: charset("=")},
		{name: "User-Agent"},
		{name: "Referer"},
		{name: "Origin"},
		{name: "Authorization"},
	}

	table := make(map[string]*headerRule, len(list))
	for _, rule := range list {
		if rule.separator == 0 {
			rule.separator = ','
		}

		table[strings.ToLower(rule.name)] = rule
	}

	return table
}()

func lookupRule(name string) *headerRule {
	return rules[strings.ToLower(name)]
}

// headerNameChars are alphanumerics, hyphen, underscore and dot.
var headerNameChars = func() (table [256]bool) {
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		table[c] = true
	}
	for _, c := range "-_." {
		table[c] = true
	}

	return table
}()

// targetChars are alphanumerics plus the URI reserved and unreserved punctuation (RFC 3986)
// and the percent sign, which must be followed by two hex digits.
var targetChars = func() (table [256]bool) {
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		table[c] = true
	}
	for _, c := range "-._~:/?#[]@!$&'()*+,;=%" {
		table[c] = true
	}

	return table
}()

func charset(chars string) (table [256]bool) {
	for i := 0; i < len(chars); i++ {
		table[chars[i]] = true
	}

	return table
}

// isCTL reports whether the character is a control one, except horizontal tab which is
// allowed in field values.
func isCTL(c byte) bool {
	return (c < 0x20 && c != '\t') || c == 0x7f
}

func isOWS(c byte) bool {
	return c == ' ' || c == '\t'
}
