// Package command parses and dispatches the in-chat command surface.
package command

import (
	"strconv"
	"strings"
)

// Invocation is one parsed chat command: a name, positional args and
// options. Tokens are whitespace-split; a token starting with "--"
// introduces an option, which consumes the following token as its
// value unless that token is itself an option, in which case it is a
// bare flag.
type Invocation struct {
	Name  string
	Args  []string
	Opts  map[string]string
	Flags map[string]bool
}

// Parse splits content into an invocation. The second return is false
// when content does not start with the prefix or carries no command
// name.
func Parse(content, prefix string) (*Invocation, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return nil, false
	}
	tokens := strings.Fields(content[len(prefix):])
	if len(tokens) == 0 {
		return nil, false
	}

	inv := &Invocation{
		Name:  strings.ToLower(tokens[0]),
		Opts:  make(map[string]string),
		Flags: make(map[string]bool),
	}
	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "--") {
			inv.Args = append(inv.Args, tok)
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(tok, "--"))
		if key == "" {
			continue
		}
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			inv.Opts[key] = tokens[i+1]
			i++
			continue
		}
		inv.Flags[key] = true
	}
	return inv, true
}

// Arg returns the positional argument at index, or "".
func (inv *Invocation) Arg(index int) string {
	if index < 0 || index >= len(inv.Args) {
		return ""
	}
	return inv.Args[index]
}

// Opt returns the valued option for key.
func (inv *Invocation) Opt(key string) (string, bool) {
	v, ok := inv.Opts[key]
	return v, ok
}

// OptInt returns the option for key parsed as an integer, or fallback.
func (inv *Invocation) OptInt(key string, fallback int64) int64 {
	v, ok := inv.Opts[key]
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// OptFloat returns the option for key parsed as a float, or fallback.
func (inv *Invocation) OptFloat(key string, fallback float64) float64 {
	v, ok := inv.Opts[key]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Flag reports whether the bare flag key was given.
func (inv *Invocation) Flag(key string) bool {
	return inv.Flags[key]
}
