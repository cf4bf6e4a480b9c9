package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  Album [MP3 CBR 320] ": "Album [MP3 CBR 320]",
		"AC/DC: Live":            "AC-DC- Live",
		"What?":                  "What",
		"Tabs\tand\nnewlines":    "Tabs and newlines",
		"Vol. 2...":              "Vol. 2",
		"Bjo\u0308rk":            "Bj\u00f6rk",
		"Bell\x07":               "Bell",
		"":                       "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
