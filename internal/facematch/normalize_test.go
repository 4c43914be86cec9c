package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"IMG_0001.jpg", "IMG_0001.jpg"},
		{"Dovolená u moře.JPG", "Dovolena_u_more.JPG"},
		{"../../etc/passwd", "passwd"},
		{"dir\\photo.png", "photo.png"},
		{"", "fallback"},
		{"***", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := SafeFileName(tt.input, "fallback")
			if result != tt.expected {
				t.Errorf("SafeFileName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
