// Package vehicle extracts a make and model from listing titles.
package vehicle

import "strings"

const Unknown = "Unknown"

var brandAliases = map[string]string{
	"volkswagen": "Volkswagen",
	"vw":         "Volkswagen",
	"opel":       "Opel",
	"toyota":     "Toyota",
	"ford":       "Ford",
	"renault":    "Renault",
	"kia":        "Kia",
	"fiat":       "Fiat",
	"suzuki":     "Suzuki",
	"hyundai":    "Hyundai",
	"citroen":    "Citroen",
	"citroën":    "Citroen",
	"peugeot":    "Peugeot",
	"seat":       "Seat",
	"skoda":      "Skoda",
	"nissan":     "Nissan",
	"mazda":      "Mazda",
	"honda":      "Honda",
}

// Words that follow the brand in titles but are never the model name.
var stopWords = map[string]bool{
	"met":      true,
	"auto":     true,
	"auto's":   true,
	"schade":   true,
	"te":       true,
	"koop":     true,
	"nette":    true,
	"mooie":    true,
	"leuke":    true,
	"zuinige":  true,
	"inruil":   true,
	"export":   true,
	"benzine":  true,
	"diesel":   true,
	"airco":    true,
	"apk":      true,
	"nieuwe":   true,
	"bouwjaar": true,
	"uit":      true,
	"van":      true,
	"en":       true,
	"de":       true,
}

// ParseMakeModel finds the first known brand token in the title and takes
// the next usable token as the model. Either side can come back Unknown.
func ParseMakeModel(title string) (make, model string) {
	make, model = Unknown, Unknown

	tokens := strings.Fields(strings.ToLower(title))
	for i, tok := range tokens {
		tok = strings.Trim(tok, ".,!()[]\"'")
		brand, ok := brandAliases[tok]
		if !ok {
			continue
		}
		make = brand

		for _, next := range tokens[i+1:] {
			next = strings.Trim(next, ".,!()[]\"'")
			if next == "" || stopWords[next] {
				continue
			}
			// Damage words are never model names
			if strings.Contains(next, "schade") || strings.Contains(next, "deuk") || strings.Contains(next, "kras") {
				continue
			}
			// Year tokens are not models
			if len(next) == 4 && isDigits(next) && (strings.HasPrefix(next, "19") || strings.HasPrefix(next, "20")) {
				continue
			}
			model = capitalize(next)
			return make, model
		}
		return make, model
	}

	return make, model
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if isDigits(s) {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
