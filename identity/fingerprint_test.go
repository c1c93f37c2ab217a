package identity

import "testing"

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("Volkswagen", "Polo", 2016, 85000)
	b := Fingerprint("volkswagen", " polo ", 2016, 85000)
	if a != b {
		t.Fatal("fingerprint should ignore case and whitespace")
	}
}

func TestFingerprintMileageBucket(t *testing.T) {
	a := Fingerprint("Volkswagen", "Polo", 2016, 85000)
	b := Fingerprint("Volkswagen", "Polo", 2016, 86500)
	if a != b {
		t.Fatal("mileage within the same bucket should match")
	}

	c := Fingerprint("Volkswagen", "Polo", 2016, 95000)
	if a == c {
		t.Fatal("different mileage bucket should not match")
	}
}

func TestFingerprintDistinguishesYear(t *testing.T) {
	a := Fingerprint("Volkswagen", "Polo", 2016, 85000)
	b := Fingerprint("Volkswagen", "Polo", 2017, 85000)
	if a == b {
		t.Fatal("different year should not match")
	}
}
