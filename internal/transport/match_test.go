package transport

import "testing"

func TestFoldASCII(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pokécoins", "pokcoins"},
		{"CONGRATULATIONS", "congratulations"},
		{"plain text", "plain text"},
		{"✨ Shiny ✨", " shiny "},
	}

	for _, tt := range tests {
		if got := foldASCII(tt.in); got != tt.want {
			t.Errorf("foldASCII(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainsAll(t *testing.T) {
	m := &Message{Content: "Congratulations @user! You caught a Level 12 Pidgey!"}

	if !ContainsAll("congratulations", "caught")(m) {
		t.Error("Expected match on both phrases")
	}
	if ContainsAll("congratulations", "wrong")(m) {
		t.Error("Should not match when one phrase is missing")
	}
}

func TestContainsAny(t *testing.T) {
	m := &Message{Content: "That is the wrong pokémon!"}

	if !ContainsAny("wrong", "caught")(m) {
		t.Error("Expected match on one of the phrases")
	}
	if ContainsAny("purchased", "listed")(m) {
		t.Error("Should not match when no phrase is present")
	}
}

func TestMentions(t *testing.T) {
	m := &Message{Content: "Congratulations <@111>! You caught a Level 12 Pidgey!"}

	if !Mentions("111")(m) {
		t.Error("Expected match on the mention tag")
	}
	if Mentions("222")(m) {
		t.Error("Should not match another user's mention")
	}
	if Mentions("11")(m) {
		t.Error("Should not match a prefix of the mentioned id")
	}
	if !Mentions("333")(&Message{Content: "Welcome back, <@!333>."}) {
		t.Error("Expected match on the nickname mention form")
	}
}

func TestEmbedMatchers(t *testing.T) {
	m := &Message{Embeds: []Embed{{
		Title:       "Pokétwo Marketplace",
		Description: "`101` Level 12 Pidgey 54.21% 450pc",
		Fields:      []EmbedField{{Name: "Pokécoins", Value: "12,345"}},
	}}}

	if !EmbedTitleContains("marketplace")(m) {
		t.Error("Expected embed title match")
	}
	if !EmbedDescContains("pidgey")(m) {
		t.Error("Expected embed description match")
	}
	if !EmbedFieldValue("Pokécoins")(m) {
		t.Error("Expected embed field match")
	}
	if EmbedTitleContains("balance")(m) {
		t.Error("Should not match absent title")
	}
}

func TestAndOr(t *testing.T) {
	m := &Message{ChannelID: "c1", AuthorID: "bot", Content: "caught"}

	combined := And(InChannel("c1"), FromAuthor("bot"), ContainsAny("wrong", "caught"))
	if !combined(m) {
		t.Error("Expected combined predicate to match")
	}

	if And(InChannel("c2"), FromAuthor("bot"))(m) {
		t.Error("And should fail on channel mismatch")
	}
	if !Or(InChannel("c2"), FromAuthor("bot"))(m) {
		t.Error("Or should pass on author match")
	}
}

func TestButtons(t *testing.T) {
	m := &Message{Components: []Component{
		{Label: "Confirm", CustomID: "confirm_1"},
		{Label: "Cancel", CustomID: "cancel_1"},
	}}

	buttons := Buttons(m)
	if len(buttons) != 2 {
		t.Fatalf("Expected 2 buttons, got %d", len(buttons))
	}
	if buttons["Confirm"].CustomID != "confirm_1" {
		t.Errorf("Confirm button mismatch: %+v", buttons["Confirm"])
	}

	if Buttons(nil) != nil {
		t.Error("Expected nil for nil message")
	}
}
