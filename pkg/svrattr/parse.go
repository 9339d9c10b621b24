package svrattr

import (
	"sort"
	"strings"
)

const escapeChar = '\\'

// ParseCommaString walks buf returning successive tokens separated by an
// unescaped comma or newline, trimming leading/trailing whitespace from
// each token, per spec.md §4.2. The escape character preserves a literal
// delimiter.
func ParseCommaString(buf string) []string {
	var tokens []string
	var cur strings.Builder
	escaped := false

	flush := func() {
		tokens = append(tokens, strings.TrimSpace(cur.String()))
		cur.Reset()
	}

	for _, r := range buf {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == escapeChar:
			escaped = true
		case r == ',' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// StrtokQuoted tokenizes src on delim, treating single- or double-quoted
// regions as delimiter-opaque. A quote with no matching close keeps every
// later delimiter inside the current token, so the rest of src becomes
// one token; it does not end at the next delimiter. Escape backslashes are pruned from the
// returned tokens in a final pass (pruneEscBackslash), per spec.md §4.2
// and §9's "stateful iterators returning borrowed slices" note — here
// expressed as a one-shot tokenizer since Go slices already alias the
// source where possible.
func StrtokQuoted(src string, delim byte) []string {
	var tokens []string
	var cur strings.Builder
	var quote byte
	escaped := false

	flush := func() {
		tokens = append(tokens, pruneEscBackslash(cur.String()))
		cur.Reset()
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == escapeChar:
			cur.WriteByte(c)
			escaped = true
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == delim:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// pruneEscBackslash removes escape backslashes from s, leaving the
// character that followed each one, per spec.md §4.2/§9.
func pruneEscBackslash(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !escaped && c == escapeChar && i+1 < len(s) {
			escaped = true
			continue
		}
		escaped = false
		out.WriteByte(c)
	}
	return out.String()
}

// EnvArrayToStr produces "k=v" pairs joined by delim, escaping any
// embedded delim or escape character inside values, per spec.md §4.2.
func EnvArrayToStr(env map[string]string, delim byte) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	// Deterministic order for stable wire output.
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+escapeEnvValue(env[k], delim))
	}
	return strings.Join(pairs, string(delim))
}

func escapeEnvValue(v string, delim byte) string {
	var out strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == delim || c == escapeChar {
			out.WriteByte(escapeChar)
		}
		out.WriteByte(c)
	}
	return out.String()
}
