package market

import "testing"

func TestParseMarketLine(t *testing.T) {
	line := "`1023`  •  Level 30 **✨ Butterfree** • 91.32% • 1,500pc"

	listing, err := ParseMarketLine(line)
	if err != nil {
		t.Fatalf("ParseMarketLine: %v", err)
	}
	if listing.MarketID != "1023" {
		t.Errorf("market id = %q, want 1023", listing.MarketID)
	}
	if listing.Level != 30 {
		t.Errorf("level = %d, want 30", listing.Level)
	}
	if listing.Name != "Butterfree" {
		t.Errorf("name = %q, want Butterfree", listing.Name)
	}
	if listing.IVPercent != 91.32 {
		t.Errorf("iv = %v, want 91.32", listing.IVPercent)
	}
	if listing.Price != 1500 {
		t.Errorf("price = %d, want 1500", listing.Price)
	}
	if !listing.Shiny {
		t.Error("expected shiny")
	}
}

func TestParseMarketLinePlain(t *testing.T) {
	listing, err := ParseMarketLine("`88`  •  Level 12 **Rattata** • 45.1% • 200pc")
	if err != nil {
		t.Fatalf("ParseMarketLine: %v", err)
	}
	if listing.Shiny {
		t.Error("unexpected shiny")
	}
	if listing.Name != "Rattata" || listing.Price != 200 {
		t.Errorf("got %+v", listing)
	}
}

func TestParseMarketLineGenderSign(t *testing.T) {
	listing, err := ParseMarketLine("`9`  •  Level 5 **Nidoran♀** • 50.2% • 100pc")
	if err != nil {
		t.Fatalf("ParseMarketLine: %v", err)
	}
	if listing.Name != "Nidoran" {
		t.Errorf("name = %q, want Nidoran", listing.Name)
	}
}

func TestParseMarketLineRejectsGarbage(t *testing.T) {
	if _, err := ParseMarketLine("Use `m b <id>` to purchase a listing."); err == nil {
		t.Fatal("expected an error for a non-listing line")
	}
}

func TestParseListingEmbed(t *testing.T) {
	desc := "`1`  •  Level 10 **Pikachu** • 60.5% • 300pc\n" +
		"not a listing row\n" +
		"\n" +
		"`2`  •  Level 20 **Eevee** • 70.5% • 500pc"

	listings := ParseListingEmbed(desc)
	if len(listings) != 2 {
		t.Fatalf("parsed %d listings, want 2", len(listings))
	}
	if listings[0].Name != "Pikachu" || listings[1].Name != "Eevee" {
		t.Errorf("got %+v", listings)
	}
}
