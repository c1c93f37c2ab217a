package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"schadescout/config"
	"schadescout/models"
	"schadescout/normalize"
)

// Result cards move between frontend releases; try the current class
// first and fall back to older ones.
var marktplaatsCardSelectors = []string{
	".hz-Listing",
	"[data-listing-id]",
	"article[class*='listing']",
	".mp-listing",
}

const minDescriptionLen = 30

var freeTextListingRegex = regexp.MustCompile(`(?i)(schade[^€]{0,120})€\s*([\d.,]+)`)

func marktplaatsSearchURL(baseURL string, target config.Target, year int) string {
	brand := strings.ToLower(target.Make)
	term := url.PathEscape(target.SearchTerm)

	return fmt.Sprintf(
		"%s/l/auto-s/%s/#q:%s|mileageTo:200001|PriceCentsFrom:%d|PriceCentsTo:%d|constructionYearFrom:%d|constructionYearTo:%d|sortBy:PRICE|sortOrder:INCREASING",
		baseURL, brand, term,
		int(target.MinPrice*100), int(target.MaxPrice*100),
		year, year,
	)
}

// marktplaatsSampleURL searches undamaged cars of a model/year for market
// price sampling. No damage term, wider price band.
func marktplaatsSampleURL(baseURL, make, model string, year int) string {
	brand := strings.ToLower(make)
	term := url.PathEscape(strings.ToLower(model))

	return fmt.Sprintf(
		"%s/l/auto-s/%s/#q:%s|mileageTo:200001|constructionYearFrom:%d|constructionYearTo:%d|sortBy:PRICE|sortOrder:INCREASING",
		baseURL, brand, term, year, year,
	)
}

func (h *BrowserHandler) scrapeMarktplaats(ctx context.Context, target config.Target) ([]models.CarCandidate, error) {
	var all []models.CarCandidate

	for year := target.YearFrom; year <= target.YearTo; year++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		searchURL := marktplaatsSearchURL(h.cfg.BaseURL, target, year)
		log.Printf("marktplaats: %s %s %d", target.Make, target.Model, year)

		page, err := h.openPage(ctx, searchURL)
		if err != nil {
			log.Printf("marktplaats: page failed: %v", err)
			if rerr := h.recordFailure(); rerr != nil {
				return all, rerr
			}
			continue
		}

		content, _ := page.Content()
		page.Close()
		h.recordSuccess()

		candidates, err := parseMarktplaatsListings(content, h.cfg.BaseURL)
		if err != nil {
			log.Printf("marktplaats: parse failed for %s %d: %v", target.Model, year, err)
			continue
		}
		log.Printf("marktplaats: %s %d: %d cards", target.Model, year, len(candidates))

		for i := range candidates {
			candidates[i].Source = h.cfg.ID
			if candidates[i].YearText == "" {
				candidates[i].YearText = fmt.Sprintf("%d", year)
			}
		}

		all = append(all, h.enrichThinListings(ctx, candidates)...)
		h.pageDelay()
	}

	return all, nil
}

// enrichThinListings visits the detail page of candidates whose card text
// is too short to classify damage from.
func (h *BrowserHandler) enrichThinListings(ctx context.Context, candidates []models.CarCandidate) []models.CarCandidate {
	for i := range candidates {
		c := &candidates[i]
		if len(c.Description) >= minDescriptionLen || c.URL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}

		page, err := h.openPage(ctx, c.URL)
		if err != nil {
			log.Printf("marktplaats: detail page failed for %s: %v", c.URL, err)
			if rerr := h.recordFailure(); rerr != nil {
				break
			}
			continue
		}

		content, _ := page.Content()
		page.Close()
		h.recordSuccess()

		if desc := parseMarktplaatsDescription(content); desc != "" {
			c.Description = desc
		}
		h.pageDelay()
	}
	return candidates
}

// SamplePrices collects live asking prices for undamaged cars of the
// given model and year. Used by the market price estimator.
func (h *BrowserHandler) SamplePrices(ctx context.Context, make, model string, year int) ([]float64, error) {
	sampleURL := marktplaatsSampleURL(h.cfg.BaseURL, make, model, year)

	page, err := h.openPage(ctx, sampleURL)
	if err != nil {
		if rerr := h.recordFailure(); rerr != nil {
			return nil, rerr
		}
		return nil, err
	}

	content, _ := page.Content()
	page.Close()
	h.recordSuccess()
	h.pageDelay()

	candidates, err := parseMarktplaatsListings(content, h.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	var prices []float64
	lowerModel := strings.ToLower(model)
	for _, c := range candidates {
		if !strings.Contains(strings.ToLower(c.Title), lowerModel) {
			continue
		}
		// Damaged cars would drag the market estimate down
		if strings.Contains(strings.ToLower(c.Title+" "+c.Description), "schade") {
			continue
		}
		if price, ok := normalize.ParsePrice(c.PriceText); ok {
			prices = append(prices, price)
		}
	}
	return prices, nil
}

// parseMarktplaatsListings extracts candidate cars from a search result
// page, trying each card selector in turn and finally a free-text scan.
func parseMarktplaatsListings(html, baseURL string) ([]models.CarCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	for _, selector := range marktplaatsCardSelectors {
		cards := doc.Find(selector)
		if cards.Length() == 0 {
			continue
		}

		var candidates []models.CarCandidate
		cards.Each(func(_ int, card *goquery.Selection) {
			c := parseMarktplaatsCard(card, baseURL)
			if c.Title != "" && c.URL != "" {
				candidates = append(candidates, c)
			}
		})
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	return parseMarktplaatsFreeText(doc), nil
}

func parseMarktplaatsCard(card *goquery.Selection, baseURL string) models.CarCandidate {
	var c models.CarCandidate

	c.Title = strings.TrimSpace(card.Find(".hz-Listing-title, h3, [class*='title']").First().Text())
	c.PriceText = strings.TrimSpace(card.Find(".hz-Listing-price, [class*='price']").First().Text())
	c.Description = strings.TrimSpace(card.Find(".hz-Listing-description, [class*='description']").First().Text())

	attrs := strings.TrimSpace(card.Find(".hz-Listing-attributes, [class*='attribute']").Text())
	c.MileageText = attrs
	c.YearText = attrs

	href, _ := card.Find("a[href]").First().Attr("href")
	if href == "" {
		href, _ = card.Attr("href")
	}
	c.URL = absoluteURL(baseURL, href)

	card.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && strings.HasPrefix(src, "http") {
			c.Photos = append(c.Photos, src)
		}
	})

	return c
}

// parseMarktplaatsFreeText is the last-ditch fallback when no card
// selector matches: scan the body text for damage mentions with a price.
func parseMarktplaatsFreeText(doc *goquery.Document) []models.CarCandidate {
	body := doc.Find("body").Text()

	var candidates []models.CarCandidate
	for _, m := range freeTextListingRegex.FindAllStringSubmatch(body, 20) {
		title := strings.TrimSpace(m[1])
		if len(title) < 10 {
			continue
		}
		candidates = append(candidates, models.CarCandidate{
			Title:     title,
			PriceText: "€" + m[2],
		})
	}
	return candidates
}

func parseMarktplaatsDescription(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	selectors := []string{
		".Description-description",
		"[class*='Description']",
		"#description",
		".description",
	}
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func absoluteURL(baseURL, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimSuffix(baseURL, "/") + href
}
