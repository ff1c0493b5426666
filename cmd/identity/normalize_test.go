package identity

import "testing"

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Bob@Example.COM\t"); got != "bob@example.com" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
}

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"a@b.co":          true,
		"first.last@x.io": true,
		"":                false,
		"no-at.example":   false,
		"@example.com":    false,
		"a@@example.com":  false,
		"a@example":       false,
		"a b@example.com": false,
		"a@example.":      false,
	}
	for in, want := range cases {
		if got := ValidEmail(in); got != want {
			t.Fatalf("ValidEmail(%q)=%v want %v", in, got, want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"alice@example.com": "al***@example.com",
		"ab@x.io":           "ab***@x.io",
		"a@x.io":            "***",
		"a@b":               "***",
		"":                  "***",
		"noatsignhere":      "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q)=%q want %q", in, got, want)
		}
	}
}
