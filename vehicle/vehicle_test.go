package vehicle

import "testing"

func TestParseMakeModel(t *testing.T) {
	tests := []struct {
		title     string
		wantMake  string
		wantModel string
	}{
		{"Volkswagen Polo 1.2 TSI met lakschade", "Volkswagen", "Polo"},
		{"VW Golf 2015 schade", "Volkswagen", "Golf"},
		{"Nette Toyota Yaris 1.0", "Toyota", "Yaris"},
		{"Fiat 500 met deukjes", "Fiat", "500"},
		{"Peugeot 107, bouwjaar 2010", "Peugeot", "107"},
		{"Citroën C1 te koop", "Citroen", "C1"},
		{"Opel met schade", "Opel", "Unknown"},
		{"Volkswagen met lakschade 2016", "Volkswagen", "Unknown"},
		{"Schadeauto zonder merk", "Unknown", "Unknown"},
		{"Kia Picanto 2012 airco", "Kia", "Picanto"},
		{"Hyundai 2014 i10", "Hyundai", "I10"},
	}

	for _, tt := range tests {
		gotMake, gotModel := ParseMakeModel(tt.title)
		if gotMake != tt.wantMake || gotModel != tt.wantModel {
			t.Errorf("ParseMakeModel(%q) = (%s, %s), want (%s, %s)",
				tt.title, gotMake, gotModel, tt.wantMake, tt.wantModel)
		}
	}
}
