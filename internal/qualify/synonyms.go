package qualify

import "strings"

// RoleSynonyms expands a target role into the phrasings that count as a match.
type RoleSynonyms interface {
	Variations(role string) []string
}

// StaticSynonyms is a fixed lookup from a canonical role to its variations.
// Keys are matched case-insensitively; roles missing from the table expand to
// themselves only.
type StaticSynonyms map[string][]string

// DefaultRoleSynonyms covers the roles callers ask for most often.
var DefaultRoleSynonyms = StaticSynonyms{
	"product manager":     {"product manager", "pm", "product lead", "product owner"},
	"software engineer":   {"software engineer", "swe", "software developer", "developer", "sde"},
	"engineering manager": {"engineering manager", "eng manager", "engineering lead"},
	"designer":            {"designer", "product designer", "ux designer", "ui designer", "ux/ui"},
	"data scientist":      {"data scientist", "machine learning engineer", "ml engineer"},
	"recruiter":           {"recruiter", "talent acquisition", "technical recruiter", "sourcer"},
	"marketing manager":   {"marketing manager", "growth manager", "product marketing manager", "pmm"},
	"founder":             {"founder", "co-founder", "cofounder", "ceo"},
}

// Variations returns the lowercase variations for role, always including the
// role itself.
func (s StaticSynonyms) Variations(role string) []string {
	key := normalize(role)
	if key == "" {
		return nil
	}
	out := []string{key}
	seen := map[string]struct{}{key: {}}
	for k, vs := range s {
		if normalize(k) != key {
			continue
		}
		for _, v := range vs {
			v = normalize(v)
			if _, dup := seen[v]; dup || v == "" {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
