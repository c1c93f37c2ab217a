package classify

import (
	"reflect"
	"testing"

	"schadescout/models"
)

func TestClassifySevere(t *testing.T) {
	c := New(nil, nil, nil)

	tests := []string{
		"Volkswagen Golf met motorschade, loopt niet",
		"Auto is niet rijdend, total loss verklaard",
		"Fiat 500 waterschade na overstroming",
		"Opel Corsa engine damage, does not start",
	}
	for _, text := range tests {
		v := c.Classify(text)
		if v.Severity != models.DamageSevere {
			t.Errorf("Classify(%q).Severity = %s, want severe", text, v.Severity)
		}
		if len(v.Keywords) == 0 {
			t.Errorf("Classify(%q) returned no keywords", text)
		}
	}
}

func TestClassifyCosmetic(t *testing.T) {
	c := New(nil, nil, nil)

	tests := []string{
		"Toyota Yaris met lakschade en wat krassen",
		"Kia Picanto, kleine parkeerdeuk achter",
		"Suzuki Swift hagelschade, rijdt perfect",
	}
	for _, text := range tests {
		v := c.Classify(text)
		if v.Severity != models.DamageCosmetic {
			t.Errorf("Classify(%q).Severity = %s, want cosmetic", text, v.Severity)
		}
	}
}

func TestClassifyCosmeticReason(t *testing.T) {
	c := New(nil, nil, nil)

	v := c.Classify("Suzuki Swift hagelschade, rijdt perfect")
	if v.Severity != models.DamageCosmetic {
		t.Fatalf("severity = %s, want cosmetic", v.Severity)
	}
	if v.Reason != "cosmetic damage, seller notes rijdt perfect" {
		t.Fatalf("reason = %q, want the positive signal noted", v.Reason)
	}

	v = c.Classify("Kia Picanto, kleine parkeerdeuk achter")
	if v.Reason != "cosmetic damage" {
		t.Fatalf("reason = %q, want plain cosmetic reason", v.Reason)
	}
}

func TestClassifySevereWinsOverCosmetic(t *testing.T) {
	c := New(nil, nil, nil)

	v := c.Classify("Polo met motorschade en lakschade")
	if v.Severity != models.DamageSevere {
		t.Fatalf("severity = %s, want severe when both buckets match", v.Severity)
	}
}

func TestClassifyNone(t *testing.T) {
	c := New(nil, nil, nil)

	v := c.Classify("Nette Volkswagen Up, eerste eigenaar, rijdt prima")
	if v.Severity != models.DamageNone {
		t.Fatalf("severity = %s, want none", v.Severity)
	}
	if v.Reason != "no damage keywords found" {
		t.Fatalf("reason = %q", v.Reason)
	}
	if len(v.Keywords) != 0 {
		t.Fatalf("keywords = %v, want empty", v.Keywords)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := New(nil, nil, nil)

	text := "Renault Clio met deukjes en krassen, motorschade"
	first := c.Classify(text)
	second := c.Classify(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("classification not stable: %+v vs %+v", first, second)
	}
}

func TestExcluded(t *testing.T) {
	c := New(nil, nil, nil)

	tests := []struct {
		text string
		want bool
	}{
		{"INKOOP van schade autos, bel ons", true},
		{"Gezocht: Toyota Aygo met schade", true},
		{"Peugeot 107 onderdelen te koop", true},
		{"Hyundai i10 met lichte schade", false},
	}
	for _, tt := range tests {
		_, got := c.Excluded(tt.text)
		if got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
