// Package phrase normalizes assistant replies and matches them against
// keyword groups.
package phrase

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Group is a set of substrings that must all be present for a match.
type Group []string

// TerminationGroups are the keyword groups that signal the showroom entrance
// was released.
var TerminationGroups = []Group{
	{"entrada", "showroom", "liberad"},
	{"entrar", "showroom", "liberad"},
}

// Normalize decomposes text (NFD), drops combining marks and lowercases it.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.ToLower(out)
}

// ContainsAll reports whether every keyword of g is a substring of normalized.
// An empty group never matches.
func ContainsAll(normalized string, g Group) bool {
	if len(g) == 0 {
		return false
	}
	for _, kw := range g {
		if !strings.Contains(normalized, kw) {
			return false
		}
	}
	return true
}

// MatchAny normalizes text and reports whether any group matches.
func MatchAny(text string, groups []Group) bool {
	n := Normalize(text)
	for _, g := range groups {
		if ContainsAll(n, g) {
			return true
		}
	}
	return false
}

// IsTermination reports whether text announces the released entrance.
func IsTermination(text string) bool {
	return MatchAny(text, TerminationGroups)
}

// Slot is the piece of visitor data an assistant reply asks for.
type Slot string

const (
	SlotNone    Slot = "none"
	SlotName    Slot = "name"
	SlotProduct Slot = "product"
)

// Questions the receptionist asks for each slot, matched case-insensitively.
const (
	nameQuestion    = "seu nome"
	productQuestion = "qual tipo de produto"
)

// AsksName reports whether reply asks the visitor's name.
func AsksName(reply string) bool {
	return strings.Contains(strings.ToLower(reply), nameQuestion)
}

// AsksProduct reports whether reply asks which product the visitor wants.
func AsksProduct(reply string) bool {
	return strings.Contains(strings.ToLower(reply), productQuestion)
}

// AskedFor classifies reply. A reply asking both questions reports the name.
func AskedFor(reply string) Slot {
	switch {
	case AsksName(reply):
		return SlotName
	case AsksProduct(reply):
		return SlotProduct
	}
	return SlotNone
}
