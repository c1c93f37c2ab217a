package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"schadescout/config"
	"schadescout/httputil"
	"schadescout/models"
	"schadescout/normalize"
)

// schadeautos.nl renders server-side, so a plain client with goquery is
// enough. Listing detail links share one path shape.
var schadeautosLinkRegex = regexp.MustCompile(`/nl/schade/personenautos/.+/o/\d+`)

type StaticHandler struct {
	cfg     *config.SourceConfig
	clients *httputil.Clients
	limiter *httputil.HostLimiter
}

func NewStaticHandler(cfg *config.SourceConfig, clients *httputil.Clients) *StaticHandler {
	interval := time.Duration(cfg.RateLimitMS) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StaticHandler{
		cfg:     cfg,
		clients: clients,
		limiter: httputil.NewHostLimiter(interval, 1),
	}
}

func (h *StaticHandler) ID() string {
	return h.cfg.ID
}

func (h *StaticHandler) Scrape(ctx context.Context, target config.Target) ([]models.CarCandidate, error) {
	maxPages := h.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	seen := make(map[string]bool)
	var all []models.CarCandidate

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		pageURL := h.categoryURL(target, page)
		links, err := h.fetchListingLinks(ctx, pageURL)
		if err != nil {
			// A flaky page should not cost the remaining pages
			log.Printf("schadeautos: page %d: %v", page, err)
			continue
		}

		newLinks := 0
		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			newLinks++

			candidate, err := h.fetchListing(ctx, link)
			if err != nil {
				log.Printf("schadeautos: listing %s: %v", link, err)
				continue
			}
			all = append(all, candidate)
		}

		// Pagination ends when a page stops producing new links
		if newLinks == 0 {
			break
		}
	}

	return all, nil
}

func (h *StaticHandler) categoryURL(target config.Target, page int) string {
	brand := strings.ToLower(target.Make)
	u := fmt.Sprintf("%s/nl/schade/personenautos/%s", h.cfg.BaseURL, brand)
	if page > 1 {
		u = fmt.Sprintf("%s?page=%d", u, page)
	}
	return u
}

func (h *StaticHandler) fetchListingLinks(ctx context.Context, pageURL string) ([]string, error) {
	doc, err := h.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !schadeautosLinkRegex.MatchString(href) {
			return
		}
		full := absoluteURL(h.cfg.BaseURL, href)
		if !seen[full] {
			seen[full] = true
			links = append(links, full)
		}
	})
	return links, nil
}

func (h *StaticHandler) fetchListing(ctx context.Context, listingURL string) (models.CarCandidate, error) {
	doc, err := h.fetchDocument(ctx, listingURL)
	if err != nil {
		return models.CarCandidate{}, err
	}
	return parseSchadeautosListing(doc, h.cfg.ID, listingURL), nil
}

func (h *StaticHandler) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := h.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	httputil.PrepareScrapeRequest(req)

	resp, err := h.clients.Scraping.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

func parseSchadeautosListing(doc *goquery.Document, source, listingURL string) models.CarCandidate {
	c := models.CarCandidate{
		Source: source,
		URL:    listingURL,
	}

	c.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find("td, dt, dd, li, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		lower := strings.ToLower(text)
		switch {
		case c.PriceText == "" && strings.Contains(text, "€"):
			c.PriceText = text
		case c.MileageText == "" && strings.Contains(lower, "km"):
			c.MileageText = text
		case c.YearText == "" && (strings.Contains(lower, "bouwjaar") || strings.Contains(lower, "jaar")):
			// Skip label-only cells like "Bouwjaar"
			if _, ok := normalize.ParseYear(text); ok {
				c.YearText = text
			}
		}
		return !(c.PriceText != "" && c.MileageText != "" && c.YearText != "")
	})

	c.Description = strings.TrimSpace(doc.Find(".description, #description, [class*='omschrijving'], p").First().Text())
	if c.YearText == "" {
		c.YearText = c.Title
	}

	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if strings.HasPrefix(src, "http") && strings.Contains(src, "foto") {
			c.Photos = append(c.Photos, src)
		}
	})

	return c
}
