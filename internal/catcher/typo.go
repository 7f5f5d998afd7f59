package catcher

import (
	"math/rand/v2"
	"strings"
)

// Keyboard rows for adjacent-key substitution. Row-boundary keys have
// no safe neighbour and are left alone.
var qwertyRows = []string{
	"0-=",
	"qwertyuiop[",
	"asdfghjkl;",
	"zxcvbnm,./",
}

// Typo lowercases name and, with rate percent probability, mistypes
// one or two letters with an adjacent key on the same keyboard row.
func Typo(name string, rate int) string {
	return typoWith(name, rate, rand.IntN, rand.NormFloat64)
}

func typoWith(name string, rate int, intN func(int) int, gauss func() float64) string {
	word := strings.ToLower(name)
	if rate <= intN(100)+1 {
		return word
	}

	letters := []rune(word)
	if len(letters) == 0 {
		return word
	}

	count := intN(2) + 1
	for i := 0; i < count; i++ {
		// The pick leans toward the early-middle of the word.
		pos := int(2 + 4*gauss())
		if pos < 0 {
			pos = 0
		}
		if pos > len(letters)-1 {
			pos = len(letters) - 1
		}
		old := letters[pos]
		replacement := typoChar(old, intN)
		word = strings.Replace(word, string(old), string(replacement), 1)
		letters = []rune(word)
	}
	return word
}

func typoChar(c rune, intN func(int) int) rune {
	for _, row := range qwertyRows {
		idx := strings.IndexRune(row, c)
		if idx < 0 {
			continue
		}
		if idx == 0 || idx == len(row)-1 {
			return c
		}
		if intN(2) == 0 {
			return rune(row[idx-1])
		}
		return rune(row[idx+1])
	}
	return c
}
