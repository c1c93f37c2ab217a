package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"schadescout/config"
	"schadescout/models"
	"schadescout/vpn"
)

// BrowserHandler drives a Chromium session for sources that need
// JavaScript or form submission (marktplaats, schadevoertuigen).
type BrowserHandler struct {
	cfg        *config.SourceConfig
	scraperCfg *config.ScraperConfig
	vpnClient  *vpn.ExpressVPN

	pw          *playwright.Playwright
	context     playwright.BrowserContext
	mu          sync.Mutex
	initialized bool

	consecutiveFailures int
	restarts            int
}

func NewBrowserHandler(cfg *config.SourceConfig, scraperCfg *config.ScraperConfig) *BrowserHandler {
	return &BrowserHandler{cfg: cfg, scraperCfg: scraperCfg}
}

// SetVPN enables network identity rotation when restarts stop helping.
func (h *BrowserHandler) SetVPN(v *vpn.ExpressVPN) {
	h.vpnClient = v
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

func (h *BrowserHandler) Scrape(ctx context.Context, target config.Target) ([]models.CarCandidate, error) {
	switch h.cfg.ID {
	case "marktplaats":
		return h.scrapeMarktplaats(ctx, target)
	case "schadevoertuigen":
		return h.scrapeSchadevoertuigen(ctx, target)
	}
	return nil, fmt.Errorf("unknown browser source: %s", h.cfg.ID)
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	h.context, err = h.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(h.scraperCfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}

// recordFailure counts consecutive page failures and restarts the browser
// when the threshold is hit. After the browser has been bounced twice in
// one run the exit IP is likely burned, so the VPN gets rotated too.
func (h *BrowserHandler) recordFailure() error {
	h.consecutiveFailures++
	if h.consecutiveFailures < h.scraperCfg.FailureThreshold {
		return nil
	}

	log.Printf("%s: %d consecutive failures, restarting browser", h.cfg.ID, h.consecutiveFailures)
	h.Close()
	h.consecutiveFailures = 0
	h.restarts++

	if h.restarts >= 2 && h.vpnClient != nil {
		if err := h.vpnClient.Rotate(); err != nil {
			log.Printf("%s: VPN rotation failed: %v", h.cfg.ID, err)
		}
		h.restarts = 0
	}

	return h.ensureBrowser()
}

func (h *BrowserHandler) recordSuccess() {
	h.consecutiveFailures = 0
}

func (h *BrowserHandler) humanDelay(minMs, maxMs int) {
	if maxMs <= minMs {
		maxMs = minMs + 1
	}
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}

// pageDelay sleeps the configured randomized inter-request delay.
func (h *BrowserHandler) pageDelay() {
	h.humanDelay(h.scraperCfg.MinDelayMS, h.scraperCfg.MaxDelayMS)
}

func (h *BrowserHandler) simulateHumanBehavior(page playwright.Page) {
	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))
	page.Mouse().Move(float64(400+rand.Intn(300)), float64(300+rand.Intn(200)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))

	scrollAmount := 100 + rand.Intn(300)
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, scrollAmount))
}

func (h *BrowserHandler) handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"button:has-text('Accepteren')",
		"button:has-text('Alles accepteren')",
		"button:has-text('Akkoord')",
		"#didomi-notice-agree-button",
		"button[id*='accept']",
		"button[class*='accept']",
		"button[class*='consent']",
		"button:has-text('Accept')",
		"button:has-text('Accept All')",
		"button:has-text('Agree')",
		"button:has-text('OK')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("Clicking consent button: %s", selector)
			btn.Click()
			page.WaitForTimeout(1500)
			break
		}
	}
}

// detectBlock returns a non-empty trigger when the page looks like a
// bot-protection interstitial instead of a result page.
func detectBlock(content string) string {
	triggers := []string{
		"Request unsuccessful. Incapsula",
		"Incapsula incident ID",
		"Access Denied",
		"This request was blocked",
		"Je bent bijna op de pagina die je zoekt",
		"captcha",
	}
	for _, t := range triggers {
		if strings.Contains(content, t) {
			return t
		}
	}
	return ""
}

func (h *BrowserHandler) openPage(ctx context.Context, url string) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := h.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(45000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	h.humanDelay(1500, 3000)
	h.handleConsent(page)
	h.simulateHumanBehavior(page)

	content, _ := page.Content()
	if trigger := detectBlock(content); trigger != "" {
		page.Close()
		return nil, fmt.Errorf("blocked at %s (trigger: %s)", url, trigger)
	}

	return page, nil
}
