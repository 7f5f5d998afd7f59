package catcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	levelPattern = regexp.MustCompile(`(?i)level\s(\d+)\s`)

	// Decorative noise stripped from listing lines before parsing.
	lineNoise = []*regexp.Regexp{
		regexp.MustCompile(`\x{00a0}+`),
		regexp.MustCompile(`\*+`),
		regexp.MustCompile(`•+`),
		regexp.MustCompile(`<[^>]+>\s`),
		regexp.MustCompile(`\s\s+`),
		regexp.MustCompile(`[♂♀\x{fe0f}]`),
	}

	// One line of the game bot's personal listing:
	// id, optional shiny sparkle, name, optional quoted nickname,
	// level and IV percent.
	pokemonLine = regexp.MustCompile(
		"`?\\s?(\\d+)`?\\s(?:(✨)\\s)?([\\w\\s'.\\-:%]+?)(?:\\s\"(.+)\")?\\sLvl\\.\\s(\\d+)\\s(\\d+\\.?\\d*)%",
	)
)

// PokemonLine is one parsed row of a personal listing embed.
type PokemonLine struct {
	ID       int64
	Shiny    bool
	Name     string
	Nickname *string
	Level    int
	IV       float64
}

// CleanLine strips markup and decorative characters, collapsing runs
// of whitespace.
func CleanLine(line string) string {
	line = strings.ReplaceAll(line, ":heart:", "")
	for _, re := range lineNoise {
		line = re.ReplaceAllString(line, " ")
	}
	return line
}

// ParsePokemonLine parses one cleaned listing row.
func ParsePokemonLine(line string) (PokemonLine, error) {
	m := pokemonLine.FindStringSubmatch(CleanLine(line))
	if m == nil {
		return PokemonLine{}, fmt.Errorf("unparseable listing line: %q", line)
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return PokemonLine{}, fmt.Errorf("listing id: %w", err)
	}
	level, err := strconv.Atoi(m[5])
	if err != nil {
		return PokemonLine{}, fmt.Errorf("listing level: %w", err)
	}
	iv, err := strconv.ParseFloat(m[6], 64)
	if err != nil {
		return PokemonLine{}, fmt.Errorf("listing iv: %w", err)
	}

	entry := PokemonLine{
		ID:    id,
		Shiny: m[2] != "",
		Name:  Title(strings.TrimSpace(m[3])),
		Level: level,
		IV:    iv,
	}
	if m[4] != "" {
		nick := m[4]
		entry.Nickname = &nick
	}
	return entry, nil
}

// ParseLevel extracts the level from a catch confirmation.
func ParseLevel(content string) (int, bool) {
	m := levelPattern.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	level, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return level, true
}

// FormattedName brackets the name, marking it shiny when the reply
// says so. A "chain" mention is the streak counter, not a shiny.
func FormattedName(replyContent, name string) string {
	content := strings.ToLower(replyContent)
	shiny := strings.Contains(content, "shiny") && !strings.Contains(content, "chain")
	if shiny || strings.Contains(content, "unusual") {
		return fmt.Sprintf("[Shiny %s]", name)
	}
	return fmt.Sprintf("[%s]", name)
}

// Title uppercases the first letter of every space-separated word.
func Title(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
