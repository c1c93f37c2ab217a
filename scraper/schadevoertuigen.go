package scraper

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"schadescout/config"
	"schadescout/models"
)

// Result rows carry their detail link in an onclick handler:
// onclick="location='https://...'"
var onclickURLRegex = regexp.MustCompile(`location\s*=\s*'([^']+)'`)

const schadevoertuigenMinPrice = "850"

func (h *BrowserHandler) scrapeSchadevoertuigen(ctx context.Context, target config.Target) ([]models.CarCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := h.openPage(ctx, h.cfg.BaseURL)
	if err != nil {
		if rerr := h.recordFailure(); rerr != nil {
			return nil, rerr
		}
		return nil, err
	}
	defer page.Close()

	if err := h.submitSearchForm(page, target.Make); err != nil {
		if rerr := h.recordFailure(); rerr != nil {
			return nil, rerr
		}
		return nil, fmt.Errorf("search form: %w", err)
	}
	h.recordSuccess()

	content, _ := page.Content()
	candidates := parseSchadevoertuigenResults(content, h.cfg.ID)
	log.Printf("schadevoertuigen: %s: %d rows", target.Make, len(candidates))

	h.pageDelay()
	return candidates, nil
}

// submitSearchForm drives the site's legacy search form: brand dropdown,
// vehicle type, petrol only, minimum price, then a JS submit.
func (h *BrowserHandler) submitSearchForm(page playwright.Page, brand string) error {
	brandSelect := page.Locator("select[name='search[merk]'], select[name='merk']").First()
	if visible, _ := brandSelect.IsVisible(); !visible {
		return fmt.Errorf("brand dropdown not found")
	}

	if _, err := brandSelect.SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{brand},
	}); err != nil {
		// Some brands are listed lowercase
		if _, err2 := brandSelect.SelectOption(playwright.SelectOptionValues{
			Labels: &[]string{strings.ToLower(brand)},
		}); err2 != nil {
			return fmt.Errorf("select brand %s: %w", brand, err)
		}
	}
	h.humanDelay(300, 700)

	typeSelect := page.Locator("select[name='search[type]']").First()
	if visible, _ := typeSelect.IsVisible(); visible {
		typeSelect.SelectOption(playwright.SelectOptionValues{Values: &[]string{"personenauto"}})
		h.humanDelay(200, 500)
	}

	fuelSelect := page.Locator("select[name='search[brandstof]']").First()
	if visible, _ := fuelSelect.IsVisible(); visible {
		fuelSelect.SelectOption(playwright.SelectOptionValues{Values: &[]string{"benzine"}})
		h.humanDelay(200, 500)
	}

	priceSelect := page.Locator("select[name='search[min_prijs]']").First()
	if visible, _ := priceSelect.IsVisible(); visible {
		priceSelect.SelectOption(playwright.SelectOptionValues{Values: &[]string{schadevoertuigenMinPrice}})
		h.humanDelay(200, 500)
	}

	if _, err := page.Evaluate(`document.zoek_voertuig.submit()`); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(30000),
	})
	h.humanDelay(1000, 2000)
	return nil
}

// parseSchadevoertuigenResults reads the result table rows. Each row
// links to its detail page via an onclick location assignment.
func parseSchadevoertuigenResults(html, source string) []models.CarCandidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var candidates []models.CarCandidate
	doc.Find("tr[onclick], div[onclick]").Each(func(_ int, row *goquery.Selection) {
		onclick, _ := row.Attr("onclick")
		m := onclickURLRegex.FindStringSubmatch(onclick)
		if m == nil {
			return
		}

		text := strings.Join(strings.Fields(row.Text()), " ")
		c := models.CarCandidate{
			Source:      source,
			URL:         m[1],
			Title:       text,
			Description: text,
			YearText:    text,
			MileageText: text,
		}

		row.Find("td, span, div").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			cellText := strings.TrimSpace(cell.Text())
			if strings.Contains(cellText, "€") && c.PriceText == "" {
				c.PriceText = cellText
				return false
			}
			return true
		})
		if c.PriceText == "" && strings.Contains(text, "€") {
			c.PriceText = text[strings.Index(text, "€"):]
		}

		candidates = append(candidates, c)
	})
	return candidates
}
