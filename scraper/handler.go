package scraper

import (
	"context"

	"schadescout/config"
	"schadescout/httputil"
	"schadescout/models"
)

type Handler interface {
	ID() string
	Scrape(ctx context.Context, target config.Target) ([]models.CarCandidate, error)
}

func NewHandler(sourceCfg *config.SourceConfig, scraperCfg *config.ScraperConfig, clients *httputil.Clients) Handler {
	switch sourceCfg.Handler {
	case "browser":
		return NewBrowserHandler(sourceCfg, scraperCfg)
	case "static":
		return NewStaticHandler(sourceCfg, clients)
	default:
		return NewStaticHandler(sourceCfg, clients)
	}
}
