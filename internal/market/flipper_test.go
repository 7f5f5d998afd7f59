package market

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"pokeball/internal/domain"
)

func TestRelistPrice(t *testing.T) {
	cases := []struct {
		price  int64
		markup int
		want   int64
	}{
		{100, 50, 150},
		{99, 50, 149},
		{1, 50, 2},
		{200, 25, 250},
		{100, 100, 200},
	}
	for _, tc := range cases {
		if got := RelistPrice(tc.price, tc.markup); got != tc.want {
			t.Errorf("RelistPrice(%d, %d) = %d, want %d", tc.price, tc.markup, got, tc.want)
		}
	}
}

func TestFlipperRun(t *testing.T) {
	f := newMarketFixture(t)
	f.session.SetAutocatcher(true)
	f.messenger.QueueReply("bal", balanceReply("5,000"))
	f.messenger.QueueReply("info", infoReply("Displaying pokémon 41."))
	f.messenger.QueueReply("m s", marketplaceReply(
		"`10`  •  Level 10 **Pikachu** • 60.5% • 100pc\n"+
			"`11`  •  Level 12 **Eevee** • 70.5% • 300pc"))

	// Buy negotiations for both listings.
	f.messenger.QueueReply("m b 10",
		confirmPrompt("Are you sure you want to buy this **Pikachu** for 100 Pokécoins?"))
	f.messenger.QueueReply("m b 11",
		confirmPrompt("Are you sure you want to buy this **Eevee** for 300 Pokécoins?"))
	f.messenger.QueueClickReply("Confirm", gameText("Purchased a Pikachu!"))
	f.messenger.QueueClickReply("Confirm", gameText("Purchased an Eevee!"))

	// Relist negotiations: ids continue from the info footer.
	f.messenger.QueueReply("m add 42 150",
		gameText("Are you sure you want to list your Pikachu for 150 Pokécoins?"))
	f.messenger.QueueReply("m add 43 450",
		gameText("Are you sure you want to list your Eevee for 450 Pokécoins?"))
	f.messenger.QueueReply("y", gameText("Listed your Pikachu on the market."))
	f.messenger.QueueReply("y", gameText("Listed your Eevee on the market."))

	flipper := NewFlipper(f.client, f.session, zerolog.Nop())
	profit, err := flipper.Run(context.Background(), domain.SnipeFilter{
		Name:      "pikachu",
		MaxInvest: 450,
		Markup:    50,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if profit != 200 {
		t.Errorf("profit = %d, want 200", profit)
	}
	if !f.session.Autocatcher() {
		t.Error("autocatcher must be restored after the buy phase")
	}

	var relists []string
	for _, text := range f.messenger.SentTexts(marketChannel) {
		if strings.Contains(text, "m add") {
			relists = append(relists, text)
		}
	}
	if len(relists) != 2 {
		t.Fatalf("relists = %v, want 2", relists)
	}
	if !strings.Contains(relists[0], "m add 42 150") || !strings.Contains(relists[1], "m add 43 450") {
		t.Errorf("relists = %v", relists)
	}
}

func TestFlipperRequiresInvestment(t *testing.T) {
	f := newMarketFixture(t)
	flipper := NewFlipper(f.client, f.session, zerolog.Nop())

	if _, err := flipper.Run(context.Background(), domain.SnipeFilter{Name: "pikachu"}); err == nil {
		t.Fatal("expected an error without a max investment")
	}
}

func TestFlipperInsufficientBalance(t *testing.T) {
	f := newMarketFixture(t)
	f.session.SetBalance(100)
	flipper := NewFlipper(f.client, f.session, zerolog.Nop())

	_, err := flipper.Run(context.Background(), domain.SnipeFilter{Name: "pikachu", MaxInvest: 1_000})
	if err == nil {
		t.Fatal("expected an error when the balance cannot cover the investment")
	}
}
