package scraper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"schadescout/config"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestParseMarktplaatsListings_CurrentCards(t *testing.T) {
	html := loadFixture(t, "marktplaats_cards.html")

	candidates, err := parseMarktplaatsListings(html, "https://www.marktplaats.nl")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Volkswagen Polo 1.2 TSI met lakschade" {
		t.Fatalf("unexpected title: %q", c.Title)
	}
	if !strings.Contains(c.PriceText, "2.900") {
		t.Fatalf("unexpected price text: %q", c.PriceText)
	}
	if c.URL != "https://www.marktplaats.nl/v/auto-s/volkswagen/m2052876101-volkswagen-polo-1-2-tsi-lakschade" {
		t.Fatalf("unexpected url: %q", c.URL)
	}
	if !strings.Contains(c.Description, "lakschade aan de voorbumper") {
		t.Fatalf("unexpected description: %q", c.Description)
	}
	if !strings.Contains(c.MileageText, "125.000 km") {
		t.Fatalf("mileage text missing: %q", c.MileageText)
	}
	if !strings.Contains(c.YearText, "2016") {
		t.Fatalf("year text missing: %q", c.YearText)
	}
	if len(c.Photos) != 1 || !strings.HasPrefix(c.Photos[0], "https://images.marktplaats.com") {
		t.Fatalf("unexpected photos: %v", c.Photos)
	}

	if candidates[1].URL != "https://www.marktplaats.nl/v/auto-s/volkswagen/m2052876102-polo-parkeerschade" {
		t.Fatalf("absolute url mangled: %q", candidates[1].URL)
	}
}

func TestParseMarktplaatsListings_LegacyMarkup(t *testing.T) {
	html := loadFixture(t, "marktplaats_legacy.html")

	candidates, err := parseMarktplaatsListings(html, "https://www.marktplaats.nl")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Opel Corsa 1.4 hagelschade" {
		t.Fatalf("unexpected title: %q", c.Title)
	}
	if !strings.Contains(c.PriceText, "1.250") {
		t.Fatalf("unexpected price text: %q", c.PriceText)
	}
	if !strings.Contains(c.Description, "Hagelschade op motorkap") {
		t.Fatalf("unexpected description: %q", c.Description)
	}
}

func TestParseMarktplaatsListings_FreeTextFallback(t *testing.T) {
	html := loadFixture(t, "marktplaats_freetext.html")

	candidates, err := parseMarktplaatsListings(html, "https://www.marktplaats.nl")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 fallback candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if !strings.Contains(strings.ToLower(c.Title), "schadeauto opel agila") {
		t.Fatalf("unexpected title: %q", c.Title)
	}
	if !strings.Contains(c.PriceText, "950") {
		t.Fatalf("unexpected price text: %q", c.PriceText)
	}
	if c.URL != "" {
		t.Fatalf("fallback candidate should have no url, got %q", c.URL)
	}
}

func TestParseSchadevoertuigenResults(t *testing.T) {
	html := loadFixture(t, "schadevoertuigen_results.html")

	candidates := parseSchadevoertuigenResults(html, "schadevoertuigen")
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	c := candidates[0]
	if c.URL != "https://www.schadevoertuigen.nl/voertuig/12345" {
		t.Fatalf("unexpected url: %q", c.URL)
	}
	if c.Source != "schadevoertuigen" {
		t.Fatalf("unexpected source: %q", c.Source)
	}
	if !strings.Contains(c.Title, "Volkswagen Polo") {
		t.Fatalf("unexpected title: %q", c.Title)
	}
	if !strings.Contains(c.PriceText, "2.450") {
		t.Fatalf("unexpected price text: %q", c.PriceText)
	}
	if !strings.Contains(c.YearText, "2015") {
		t.Fatalf("year text missing: %q", c.YearText)
	}
	if !strings.Contains(c.MileageText, "112.000 km") {
		t.Fatalf("mileage text missing: %q", c.MileageText)
	}

	if candidates[1].URL != "https://www.schadevoertuigen.nl/voertuig/12346" {
		t.Fatalf("unexpected second url: %q", candidates[1].URL)
	}
}

func TestParseSchadeautosListing(t *testing.T) {
	html := loadFixture(t, "schadeautos_listing.html")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	listingURL := "https://www.schadeautos.nl/nl/schade/personenautos/toyota/yaris/o/12345"
	c := parseSchadeautosListing(doc, "schadeautos", listingURL)

	if c.Title != "Toyota Yaris 1.0 VVT-i met plaatschade" {
		t.Fatalf("unexpected title: %q", c.Title)
	}
	if c.URL != listingURL {
		t.Fatalf("unexpected url: %q", c.URL)
	}
	if !strings.Contains(c.PriceText, "2.650") {
		t.Fatalf("unexpected price text: %q", c.PriceText)
	}
	if !strings.Contains(c.MileageText, "96.000 km") {
		t.Fatalf("unexpected mileage text: %q", c.MileageText)
	}
	if !strings.Contains(c.YearText, "2015") {
		t.Fatalf("unexpected year text: %q", c.YearText)
	}
	if !strings.Contains(c.Description, "Plaatschade rechtsvoor") {
		t.Fatalf("unexpected description: %q", c.Description)
	}
	if len(c.Photos) != 2 {
		t.Fatalf("expected 2 photos, got %d: %v", len(c.Photos), c.Photos)
	}
}

func TestSchadeautosLinkRegex(t *testing.T) {
	matching := []string{
		"/nl/schade/personenautos/volkswagen/polo/o/829101",
		"https://www.schadeautos.nl/nl/schade/personenautos/toyota/yaris/o/12345",
	}
	for _, u := range matching {
		if !schadeautosLinkRegex.MatchString(u) {
			t.Errorf("expected match: %s", u)
		}
	}

	nonMatching := []string{
		"/nl/schade/personenautos",
		"/nl/schade/bedrijfswagens/ford/transit/o/4444",
		"/nl/contact",
	}
	for _, u := range nonMatching {
		if schadeautosLinkRegex.MatchString(u) {
			t.Errorf("unexpected match: %s", u)
		}
	}
}

func testTarget() config.Target {
	return config.Target{
		Make:       "Volkswagen",
		Model:      "Polo",
		SearchTerm: "polo schade",
		YearFrom:   2010,
		YearTo:     2020,
		MinPrice:   250,
		MaxPrice:   3450,
	}
}

func TestMarktplaatsSearchURL(t *testing.T) {
	u := marktplaatsSearchURL("https://www.marktplaats.nl", testTarget(), 2016)

	for _, part := range []string{
		"/l/auto-s/volkswagen/#q:polo%20schade",
		"PriceCentsFrom:25000",
		"PriceCentsTo:345000",
		"constructionYearFrom:2016",
		"constructionYearTo:2016",
		"sortBy:PRICE",
	} {
		if !strings.Contains(u, part) {
			t.Errorf("search url missing %q: %s", part, u)
		}
	}
}

func TestDetectBlock(t *testing.T) {
	blocked := []string{
		"<html><head><title>Blocked</title></head><body>Incapsula incident ID: 449001</body></html>",
		"<html><body>Je bent bijna op de pagina die je zoekt</body></html>",
		"<html><body>Vul de captcha in om verder te gaan</body></html>",
	}
	for _, html := range blocked {
		if detectBlock(html) == "" {
			t.Errorf("expected block detection for %q", html)
		}
	}

	if got := detectBlock("<html><body>Volkswagen Polo lakschade € 2.900</body></html>"); got != "" {
		t.Errorf("false positive block detection: %s", got)
	}
}
