package models

import "strings"

// Authority is a government or utility contact that can be notified about an issue.
type Authority struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// AuthorityKey identifies an authority by name and type. Two records from
// different fetches with the same name and type are the same authority.
type AuthorityKey struct {
	Name string
	Type string
}

func (a Authority) Key() AuthorityKey {
	return AuthorityKey{
		Name: strings.TrimSpace(a.Name),
		Type: strings.TrimSpace(a.Type),
	}
}

func (k AuthorityKey) String() string {
	return k.Type + "/" + k.Name
}

// AuthorityGroups maps an authority type to its candidate records.
type AuthorityGroups map[string][]Authority

// Flatten returns all records, types in lexical order.
func (g AuthorityGroups) Flatten() []Authority {
	var out []Authority
	for _, t := range sortedKeys(map[string][]Authority(g)) {
		for _, a := range g[t] {
			if a.Type == "" {
				a.Type = t
			}
			out = append(out, a)
		}
	}
	return out
}
