package normalize

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"€2.900,-", 2900, true},
		{"€ 12.500,00", 12500, true},
		{"2900", 2900, true},
		{"€ 3.200,-", 3200, true},
		{"1.250", 1250, true},
		{"29.5", 29.5, true},
		{"2900,50", 2900.50, true},
		{"2,900", 2900, true},
		{"€ 850", 850, true},
		{"EUR 1.999", 1999, true},
		{"n.o.t.k.", 0, false},
		{"", 0, false},
		{"bieden", 0, false},
		{"gratis af te halen", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		if ok != tt.ok {
			t.Errorf("ParsePrice(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseMileage(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"125.000 km", 125000, true},
		{"1,234km", 1234, true},
		{"85.000", 85000, true},
		{"200000 km", 200000, true},
		{"km stand onbekend", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseMileage(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseMileage(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseMileage(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Volkswagen Polo 2016", 2016, true},
		{"bouwjaar: 1998", 1998, true},
		{"Fiat 500 uit 2012, 90.000 km", 2012, true},
		{"Peugeot 107", 0, false},
		{"telefoon 0612345678", 0, false},
		{"1959 classic", 0, false},
		{"Kever oldtimer uit 1975, lakschade", 0, false},
		{"Opel Kadett 1985 met deukjes", 1985, true},
		{"2099 futuristisch, bouwjaar 2015", 2015, true},
	}

	for _, tt := range tests {
		got, ok := ParseYear(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseYear(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseYear(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
