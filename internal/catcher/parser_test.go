package catcher

import "testing"

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("Congratulations! You caught a level 42 Snorlax!")
	if !ok || level != 42 {
		t.Errorf("ParseLevel = %d, %v; want 42", level, ok)
	}
	if _, ok := ParseLevel("no level here"); ok {
		t.Error("missing level should not parse")
	}
}

func TestFormattedName(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"You caught a level 3 Pikachu!", "[Pikachu]"},
		{"You caught a level 3 Pikachu! It seems to be shiny!", "[Shiny Pikachu]"},
		{"You caught a level 3 Pikachu! Shiny chain broken.", "[Pikachu]"},
		{"These colors seem unusual...", "[Shiny Pikachu]"},
	}
	for _, tc := range cases {
		if got := FormattedName(tc.content, "Pikachu"); got != tc.want {
			t.Errorf("FormattedName(%q) = %q, want %q", tc.content, got, tc.want)
		}
	}
}

func TestParsePokemonLine(t *testing.T) {
	entry, err := ParsePokemonLine("`4061`  ✨ **Butterfree**  •  Lvl. 36  91.32%")
	if err != nil {
		t.Fatalf("ParsePokemonLine: %v", err)
	}
	if entry.ID != 4061 || !entry.Shiny || entry.Name != "Butterfree" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Level != 36 || entry.IV != 91.32 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Nickname != nil {
		t.Errorf("nickname = %v, want nil", *entry.Nickname)
	}
}

func TestParsePokemonLineNickname(t *testing.T) {
	entry, err := ParsePokemonLine(`` + "`12`" + ` Eevee "Buddy" Lvl. 5 50.0%`)
	if err != nil {
		t.Fatalf("ParsePokemonLine: %v", err)
	}
	if entry.Nickname == nil || *entry.Nickname != "Buddy" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Name != "Eevee" {
		t.Errorf("name = %q, want Eevee", entry.Name)
	}
}

func TestParsePokemonLineGenderSign(t *testing.T) {
	entry, err := ParsePokemonLine("`7` Nidoran ♀ Lvl. 9 44.4%")
	if err != nil {
		t.Fatalf("ParsePokemonLine: %v", err)
	}
	if entry.Name != "Nidoran" {
		t.Errorf("name = %q, want Nidoran", entry.Name)
	}
}

func TestParsePokemonLineRejectsGarbage(t *testing.T) {
	if _, err := ParsePokemonLine("not a listing line"); err == nil {
		t.Error("garbage should not parse")
	}
}

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"pikachu":      "Pikachu",
		"MR. MIME":     "Mr. Mime",
		"tapu koko":    "Tapu Koko",
		"shiny eevee":  "Shiny Eevee",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}
