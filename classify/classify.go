// Package classify decides how badly a listed car is damaged based on
// the damage vocabulary used in Dutch and English listing text.
package classify

import (
	"strings"

	"schadescout/models"
)

// DefaultSevere marks structural or drivetrain damage that makes a car
// uneconomical to flip.
var DefaultSevere = []string{
	"motorschade",
	"niet rijdend",
	"niet rijdbaar",
	"total loss",
	"totalloss",
	"frameschade",
	"frame schade",
	"chassis schade",
	"chassisschade",
	"waterschade",
	"brandschade",
	"airbags uit",
	"airbag schade",
	"airbags eruit",
	"versnellingsbak kapot",
	"bak kapot",
	"distributie gesprongen",
	"engine damage",
	"engine broken",
	"not driving",
	"non runner",
	"flood damage",
	"water damage",
	"fire damage",
	"structural damage",
	"frame damage",
	"salvage",
	"gearbox broken",
	"transmission broken",
}

// DefaultCosmetic marks paint and panel damage.
var DefaultCosmetic = []string{
	"lakschade",
	"deukjes",
	"deukje",
	"deuk",
	"deuken",
	"krassen",
	"kras",
	"hagelschade",
	"parkeerdeuk",
	"parkeerschade",
	"bumperdeuk",
	"bumperschade",
	"cosmetische schade",
	"lichte schade",
	"kleine schade",
	"plaatschade",
	"paint damage",
	"dents",
	"dent",
	"scratches",
	"scratch",
	"hail damage",
	"minor damage",
	"cosmetic damage",
	"light damage",
}

// DefaultExclude marks trade ads, wanted ads and parts ads that are not
// actual cars for sale.
var DefaultExclude = []string{
	"inkoop",
	"gezocht",
	"gevraagd",
	"auctim",
	"onderdelen",
	"parts",
	"te huur",
	"sloop",
}

// DefaultPositive marks phrases sellers use to say the car still drives
// despite the damage. Informational only; they never change severity.
var DefaultPositive = []string{
	"rijdt prima",
	"rijdt goed",
	"rijdt perfect",
	"rijdt nog",
	"rijdt en schakelt",
	"technisch in orde",
	"technisch goed",
	"technisch prima",
	"loopt goed",
	"drives fine",
	"drives well",
	"runs well",
	"runs fine",
	"runs and drives",
}

const (
	reasonNoKeywords = "no damage keywords found"
	reasonCosmetic   = "cosmetic damage"
)

type Classifier struct {
	severe   []string
	cosmetic []string
	exclude  []string
}

// New builds a classifier. Empty lists fall back to the default lexicons.
func New(severe, cosmetic, exclude []string) *Classifier {
	if len(severe) == 0 {
		severe = DefaultSevere
	}
	if len(cosmetic) == 0 {
		cosmetic = DefaultCosmetic
	}
	if len(exclude) == 0 {
		exclude = DefaultExclude
	}
	return &Classifier{severe: severe, cosmetic: cosmetic, exclude: exclude}
}

// Classify returns the damage verdict for the given listing text.
// Severe keywords win over cosmetic ones when both are present.
func (c *Classifier) Classify(text string) models.DamageVerdict {
	lower := strings.ToLower(text)

	if kws := matchAll(lower, c.severe); len(kws) > 0 {
		return models.DamageVerdict{Severity: models.DamageSevere, Keywords: kws}
	}
	if kws := matchAll(lower, c.cosmetic); len(kws) > 0 {
		reason := reasonCosmetic
		if sig := firstMatch(lower, DefaultPositive); sig != "" {
			reason = reasonCosmetic + ", seller notes " + sig
		}
		return models.DamageVerdict{Severity: models.DamageCosmetic, Keywords: kws, Reason: reason}
	}
	return models.DamageVerdict{Severity: models.DamageNone, Reason: reasonNoKeywords}
}

// Excluded reports whether the text looks like a trade, wanted or parts ad.
func (c *Classifier) Excluded(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range c.exclude {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

func firstMatch(lower string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

func matchAll(lower string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}
