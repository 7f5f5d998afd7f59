package market

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"pokeball/internal/domain"
)

var (
	// Decorative noise stripped from listing lines before the grammar
	// is applied. Backticks stay: the id is delimited by them.
	marketNoise = []*regexp.Regexp{
		regexp.MustCompile(`\x{00a0}+`),
		regexp.MustCompile(`\*+`),
		regexp.MustCompile(`•+`),
		regexp.MustCompile(`<[^>]+>\s`),
		regexp.MustCompile(`\s\s+`),
		regexp.MustCompile(`[♂♀\x{fe0f}]`),
	}

	marketLine = regexp.MustCompile(
		"`(?P<id>.+)`.+Level\\s(?P<level>\\d+)\\s(?P<name>.+)\\s(?P<iv>.+)%\\s(?P<price>.+)pc",
	)
)

// CleanMarketLine strips markup and decorative characters from one
// marketplace row.
func CleanMarketLine(line string) string {
	for _, re := range marketNoise {
		line = re.ReplaceAllString(line, " ")
	}
	return line
}

// ParseMarketLine parses one marketplace row. The shiny sparkle is
// read before cleaning.
func ParseMarketLine(line string) (domain.Listing, error) {
	shiny := strings.Contains(line, "✨")

	m := marketLine.FindStringSubmatch(CleanMarketLine(line))
	if m == nil {
		return domain.Listing{}, fmt.Errorf("unparseable market line: %q", line)
	}
	groups := make(map[string]string, 5)
	for i, name := range marketLine.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}

	level, err := strconv.Atoi(groups["level"])
	if err != nil {
		return domain.Listing{}, fmt.Errorf("market level: %w", err)
	}
	iv, err := strconv.ParseFloat(strings.TrimSpace(groups["iv"]), 64)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("market iv: %w", err)
	}
	price, err := strconv.ParseInt(
		strings.ReplaceAll(strings.TrimSpace(groups["price"]), ",", ""), 10, 64)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("market price: %w", err)
	}

	name := strings.TrimSpace(groups["name"])
	name = strings.TrimPrefix(name, "✨ ")

	return domain.Listing{
		MarketID:  strings.TrimSpace(groups["id"]),
		Level:     level,
		Name:      name,
		IVPercent: iv,
		Price:     price,
		Shiny:     shiny,
	}, nil
}

// ParseListingEmbed parses every row of a marketplace embed
// description, skipping rows the grammar does not recognize.
func ParseListingEmbed(description string) []domain.Listing {
	var listings []domain.Listing
	for _, line := range strings.Split(description, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		listing, err := ParseMarketLine(line)
		if err != nil {
			continue
		}
		listings = append(listings, listing)
	}
	return listings
}
