package normalize

import "testing"

func TestPhoneKeepsLastNineDigits(t *testing.T) {
	a := Phone("+351 912-345-678")
	b := Phone("912345678")
	if a != b || a != "912345678" {
		t.Fatalf("want 912345678 for both, got %q and %q", a, b)
	}
}

func TestPhoneTooShort(t *testing.T) {
	if got := Phone("12345"); got != "" {
		t.Fatalf("short input must normalize to empty, got %q", got)
	}
	if got := Phone(""); got != "" {
		t.Fatalf("empty input must normalize to empty, got %q", got)
	}
}

func TestPhoneGeneric(t *testing.T) {
	cases := map[string]string{
		"+55 11 91234-5678": "5511912345678",
		"0034912345678":     "34912345678",
		"011 34 912345678":  "34912345678",
		"1234567 ramal 22":  "1234567",
		"1234567x9":         "1234567",
		"765-4321":          "7654321",
	}
	for in, want := range cases {
		if got := PhoneGeneric(in); got != want {
			t.Errorf("PhoneGeneric(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPhonesMatchSuffix(t *testing.T) {
	if !PhonesMatch("0034912345678", "+351 34912345678") {
		t.Fatal("expected suffix match across country-code variants")
	}
	if !PhonesMatch("912345678", "912345678") {
		t.Fatal("expected exact match")
	}
	if PhonesMatch("912345678", "") {
		t.Fatal("empty side must never match")
	}
	if PhonesMatch("1234567", "7654321") {
		t.Fatal("unrelated short numbers must not match")
	}
}

func TestNameFold(t *testing.T) {
	if got, want := Name("João   Da  Silva"), Name("joao da silva"); got != want {
		t.Fatalf("got %q vs %q", got, want)
	}
	if got := Name("  María José "); got != "maria jose" {
		t.Fatalf("got %q", got)
	}
}

func TestCityFold(t *testing.T) {
	if got := City("São Paulo"); got != "sao paulo" {
		t.Fatalf("got %q", got)
	}
}

func TestParsePrice(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want float64
		ok   bool
	}{
		{"49.90", 49.9, true},
		{"R$ 49,90", 49.9, true},
		{"1.234,56", 1234.56, true},
		{"", 0, false},
		{"n/a", 0, false},
	} {
		got, ok := ParsePrice(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParsePrice(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPricesClose(t *testing.T) {
	if !PricesClose(49.99, 50.9, 1) {
		t.Fatal("0.91 gap within tolerance 1")
	}
	if PricesClose(49.99, 52, 1) {
		t.Fatal("2.01 gap must exceed tolerance 1")
	}
}
