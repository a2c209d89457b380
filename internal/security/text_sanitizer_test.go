package security

import "testing"

// TestTextSanitizer_StripsTags はHTMLタグが除去されることを検証する。
func TestTextSanitizer_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "ResortPass Gold ist verfügbar!", "ResortPass Gold ist verfügbar!"},
		{"script tag", `Jetzt kaufen<script>alert(1)</script>`, "Jetzt kaufen"},
		{"markup", "<b>Eilmeldung</b>: wieder da", "Eilmeldung: wieder da"},
		{"entity decoded", "Gold &amp; Silver", "Gold & Silver"},
		{"whitespace trimmed", "  hallo  ", "hallo"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestTextSanitizer_Idempotent は同一入力に対して冪等であることを検証する。
func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	in := "<i>ResortPass</i> Silver ist ausverkauft"
	once := s.Sanitize(in)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("sanitize not idempotent: %q != %q", once, twice)
	}
}
