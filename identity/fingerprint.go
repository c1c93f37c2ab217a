package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// mileageBucket groups odometer readings so the same car photographed a
// few hundred kilometers apart still fingerprints identically.
const mileageBucket = 5000

// Fingerprint derives a stable identity for a vehicle across sources.
// Cars with the same make, model, year and mileage bucket are considered
// candidates for the same physical car.
func Fingerprint(make, model string, year, mileage int) string {
	bucket := -1
	if mileage > 0 {
		bucket = mileage / mileageBucket
	}

	input := fmt.Sprintf("%s|%s|%d|%d",
		normalize(make),
		normalize(model),
		year,
		bucket,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
