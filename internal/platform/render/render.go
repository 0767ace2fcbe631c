// Package render substitutes flat {{key}} placeholders in email templates.
//
// There is no template logic: each placeholder is a literal token replaced
// by its value. Tokens without a value are left in the output untouched.
package render

import (
	"html"
	"strings"
)

// Pair is one placeholder binding.
type Pair struct {
	Key   string
	Value string
	raw   bool
}

// Vars is an ordered set of bindings. When a key is bound twice the first binding wins.
type Vars []Pair

// Var binds key to value. The value is HTML-escaped on render.
func Var(key, value string) Pair { return Pair{Key: key, Value: value} }

// Raw binds key to a trusted value that is inserted without escaping.
// Links built by this service use Raw; user-supplied text must not.
func Raw(key, value string) Pair { return Pair{Key: key, Value: value, raw: true} }

// Optional binds key to *value, or to fallback when value is nil or blank.
func Optional(key string, value *string, fallback string) Pair {
	if value == nil || strings.TrimSpace(*value) == "" {
		return Var(key, fallback)
	}
	return Var(key, *value)
}

// Token returns the literal placeholder for key.
func Token(key string) string { return "{{" + key + "}}" }

// Render replaces every occurrence of each bound placeholder in text.
// Replacement is a single pass, so substituted values are never re-scanned for tokens.
func Render(text string, vars Vars) string {
	if len(vars) == 0 {
		return text
	}
	oldnew := make([]string, 0, len(vars)*2)
	for _, p := range vars {
		if p.Key == "" {
			continue
		}
		v := p.Value
		if !p.raw {
			v = html.EscapeString(v)
		}
		oldnew = append(oldnew, Token(p.Key), v)
	}
	return strings.NewReplacer(oldnew...).Replace(text)
}

// Missing returns the placeholders in text that vars leaves unbound, in order of first appearance.
func Missing(text string, vars Vars) []string {
	bound := make(map[string]struct{}, len(vars))
	for _, p := range vars {
		bound[p.Key] = struct{}{}
	}
	var out []string
	seen := map[string]struct{}{}
	for {
		i := strings.Index(text, "{{")
		if i < 0 {
			return out
		}
		j := strings.Index(text[i+2:], "}}")
		if j < 0 {
			return out
		}
		key := text[i+2 : i+2+j]
		text = text[i+2+j+2:]
		if key == "" || strings.ContainsAny(key, "{} \t\n") {
			continue
		}
		if _, ok := bound[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
}
