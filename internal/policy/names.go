package policy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed data/ranks.json
var ranksJSON []byte

// NameIndex is the known-name universe plus the ranked tier, used for
// hint resolution and rank checks.
type NameIndex struct {
	universe []string
	ranked   map[string]bool
}

// NewNameIndex builds an index over the given universe. Ranked names
// are part of the universe whether or not they appear in it.
func NewNameIndex(universe, ranked []string) *NameIndex {
	ix := &NameIndex{ranked: make(map[string]bool, len(ranked))}

	seen := make(map[string]bool, len(universe)+len(ranked))
	add := func(name string) {
		key := strings.ToLower(name)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		ix.universe = append(ix.universe, name)
	}
	for _, n := range universe {
		add(n)
	}
	for _, n := range ranked {
		add(n)
		ix.ranked[strings.ToLower(n)] = true
	}

	return ix
}

// Ranked reports whether name is in the ranked tier.
func (ix *NameIndex) Ranked(name string) bool {
	return ix.ranked[strings.ToLower(name)]
}

// RankedNames returns the built-in ranked tier, flattened across
// rank groups.
func RankedNames() ([]string, error) {
	var ranks map[string][]string
	if err := json.Unmarshal(ranksJSON, &ranks); err != nil {
		return nil, fmt.Errorf("parse embedded ranks: %w", err)
	}

	var names []string
	for _, group := range ranks {
		names = append(names, group...)
	}
	return names, nil
}

// LoadNames reads a newline-delimited name list.
func LoadNames(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read name list: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// ResolveHint matches a fill-in-the-blank pattern such as "P_k_ch_"
// against the universe. Underscores match any letter; revealed letters
// must agree case-insensitively and the lengths must be equal. The
// resolution succeeds only when exactly one name matches.
func (ix *NameIndex) ResolveHint(hint string) (string, bool) {
	var matches []string
	for _, name := range ix.universe {
		if hintMatches(hint, name) {
			matches = append(matches, name)
			if len(matches) > 1 {
				return "", false
			}
		}
	}
	if len(matches) != 1 {
		return "", false
	}
	return matches[0], true
}

func hintMatches(hint, name string) bool {
	h, n := []rune(hint), []rune(name)
	if len(h) != len(n) {
		return false
	}
	for i, c := range h {
		if c == '_' {
			continue
		}
		if !strings.EqualFold(string(c), string(n[i])) {
			return false
		}
	}
	return true
}
