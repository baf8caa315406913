package util

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "upper", input: "Sameer Syed", want: "SAMEER SYED"},
		{name: "hyphen", input: "Jean-Luc  Picard", want: "JEAN LUC PICARD"},
		{name: "apostrophe", input: "o'brien, miles", want: "OBRIEN MILES"},
		{name: "empty", input: "  ", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeName(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestDigitsAndAlnum(t *testing.T) {
	if got := DigitsOnly("1990-11-12"); got != "19901112" {
		t.Fatalf("digits=%q", got)
	}
	if got := AlnumOnly("S9-639 0260.903311"); got != "S96390260903311" {
		t.Fatalf("alnum=%q", got)
	}
	if got := AlnumOnly("ab-Cd"); got != "abCd" {
		t.Fatalf("case not preserved: %q", got)
	}
	if got := NormalizeLicense("s9-639"); got != "S9639" {
		t.Fatalf("license=%q", got)
	}
}

func TestJoinNonEmpty(t *testing.T) {
	cases := []struct {
		values []string
		want   string
	}{
		{values: []string{"A", "", "C"}, want: "A C"},
		{values: []string{"", "", ""}, want: ""},
		{values: []string{"", "B"}, want: "B"},
	}
	for _, tc := range cases {
		if got := JoinNonEmpty(" ", tc.values...); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestDiceCoefficient(t *testing.T) {
	if DiceCoefficient("SYED", "SYED") != 1 {
		t.Fatal("identical strings must score 1")
	}
	if DiceCoefficient("", "SYED") != 0 {
		t.Fatal("empty string must score 0")
	}
	if s := DiceCoefficient("SAMEER SYED", "SAMIR SYED"); s <= 0.5 || s >= 1 {
		t.Fatalf("score=%v", s)
	}
}
