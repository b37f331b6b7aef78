// Package entity resolves capster and branch names found in free text or in
// ledger rows to their canonical identities.
package entity

import (
	"sort"
	"strings"

	"laporan/internal/core"
)

// AliasMap maps a case-folded name to every case-folded name known for the
// same person.
type AliasMap map[string][]string

// BuildAliasMap indexes each capster under its primary name and alias.
func BuildAliasMap(capsters []core.Capster) AliasMap {
	m := make(AliasMap)
	for _, c := range capsters {
		var names []string
		for _, n := range c.Names() {
			if n = fold(n); n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			continue
		}
		sort.Strings(names)
		for _, n := range names {
			m[n] = mergeNames(m[n], names)
		}
	}
	return m
}

// Expand returns every known name for name. Unknown names expand to
// themselves.
func (m AliasMap) Expand(name string) []string {
	key := fold(name)
	if names, ok := m[key]; ok {
		return append([]string(nil), names...)
	}
	if key == "" {
		return nil
	}
	return []string{key}
}

// Set expands every name and returns the union, ready for membership tests.
// A nil set means no filter.
func (m AliasMap) Set(names []string) NameSet {
	if len(names) == 0 {
		return nil
	}
	set := make(NameSet)
	for _, n := range names {
		for _, e := range m.Expand(n) {
			set[e] = struct{}{}
		}
	}
	return set
}

// NameSet is a set of case-folded names.
type NameSet map[string]struct{}

// Has reports whether name is in the set. A nil set contains every name.
func (s NameSet) Has(name string) bool {
	if s == nil {
		return true
	}
	_, ok := s[fold(name)]
	return ok
}

// BranchAlias maps a nickname to a canonical branch name.
type BranchAlias struct {
	Alias string
	Name  string
}

// DefaultBranchAliases are the location nicknames used at the counter.
var DefaultBranchAliases = []BranchAlias{
	{Alias: "denailla", Name: "Cabang Denailla"},
	{Alias: "mojosari", Name: "Cabang Denailla"},
	{Alias: "cabang a", Name: "Cabang Denailla"},
	{Alias: "sumput", Name: "Cabang Sumput"},
	{Alias: "cabang b", Name: "Cabang Sumput"},
}

// Resolver answers name questions against the current directory. It is
// read-only after construction.
type Resolver struct {
	capsters      []core.Capster
	aliases       AliasMap
	canonical     map[string]string
	branches      []core.BranchConfig
	branchAliases []BranchAlias
}

type Option func(*Resolver)

// WithBranchAliases replaces the default branch alias table.
func WithBranchAliases(aliases []BranchAlias) Option {
	return func(r *Resolver) { r.branchAliases = aliases }
}

func NewResolver(capsters []core.Capster, branches []core.BranchConfig, opts ...Option) *Resolver {
	r := &Resolver{
		capsters:      append([]core.Capster(nil), capsters...),
		aliases:       BuildAliasMap(capsters),
		canonical:     make(map[string]string),
		branches:      append([]core.BranchConfig(nil), branches...),
		branchAliases: DefaultBranchAliases,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, c := range capsters {
		for _, n := range c.Names() {
			if key := fold(n); key != "" {
				if _, seen := r.canonical[key]; !seen {
					r.canonical[key] = strings.TrimSpace(c.Name)
				}
			}
		}
	}
	return r
}

// Aliases returns a copy of the capster alias map.
func (r *Resolver) Aliases() AliasMap {
	out := make(AliasMap, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ExpandCapster returns all case-folded names of the person called name.
func (r *Resolver) ExpandCapster(name string) []string {
	return r.aliases.Expand(name)
}

// Canonical returns the primary display name for a recorded capster name,
// or the trimmed input when the name is unknown.
func (r *Resolver) Canonical(name string) string {
	if c, ok := r.canonical[fold(name)]; ok {
		return c
	}
	return strings.TrimSpace(name)
}

// CapstersIn returns the primary names of capsters mentioned in text, in
// directory order.
func (r *Resolver) CapstersIn(text string) []string {
	lower := fold(text)
	var out []string
	for _, c := range r.capsters {
		for _, n := range c.Names() {
			if n = fold(n); n != "" && containsWord(lower, n) {
				out = append(out, strings.TrimSpace(c.Name))
				break
			}
		}
	}
	return out
}

// BranchesIn returns canonical branch names mentioned in text. Nicknames are
// checked before configured names.
func (r *Resolver) BranchesIn(text string) []string {
	lower := fold(text)
	var out []string
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[fold(name)] {
			seen[fold(name)] = true
			out = append(out, name)
		}
	}
	for _, a := range r.branchAliases {
		if containsWord(lower, fold(a.Alias)) {
			add(a.Name)
		}
	}
	for _, b := range r.branches {
		if n := fold(b.Name); n != "" && containsWord(lower, n) {
			add(strings.TrimSpace(b.Name))
		}
	}
	return out
}

// ResolveBranch finds the configuration for a branch name. The alias table
// is consulted first, then exact and substring matches on name, short name
// and id. Unknown branches report false.
func (r *Resolver) ResolveBranch(name string) (core.BranchConfig, bool) {
	key := fold(name)
	if key == "" {
		return core.BranchConfig{}, false
	}
	for _, a := range r.branchAliases {
		if fold(a.Alias) == key {
			key = fold(a.Name)
			break
		}
	}
	for _, b := range r.branches {
		if fold(b.Name) == key || fold(b.Short) == key || fold(b.ID) == key {
			return b, true
		}
	}
	for _, b := range r.branches {
		n := fold(b.Name)
		if n != "" && (strings.Contains(n, key) || strings.Contains(key, n)) {
			return b, true
		}
	}
	return core.BranchConfig{}, false
}

// BranchName returns the canonical display name for a branch, falling back
// to the trimmed input.
func (r *Resolver) BranchName(name string) string {
	if b, ok := r.ResolveBranch(name); ok {
		return strings.TrimSpace(b.Name)
	}
	return strings.TrimSpace(name)
}

func (r *Resolver) Branches() []core.BranchConfig {
	return append([]core.BranchConfig(nil), r.branches...)
}

// CapsterNames lists every known capster name, aliases included.
func (r *Resolver) CapsterNames() []string {
	var out []string
	for _, c := range r.capsters {
		out = append(out, c.Names()...)
	}
	return out
}

func (r *Resolver) BranchNames() []string {
	out := make([]string, 0, len(r.branches))
	for _, b := range r.branches {
		out = append(out, strings.TrimSpace(b.Name))
	}
	return out
}

// containsWord reports whether word occurs in text on word boundaries, so a
// capster called "Gus" is not found inside "agustus".
func containsWord(text, word string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		if !isWordByte(text, start-1) && !isWordByte(text, end) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func mergeNames(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		set[n] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
