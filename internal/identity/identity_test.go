package identity

import "testing"

func TestFromFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice.jpg", "alice"},
		{"known_faces/EMP-001.PNG", "EMP-001"},
		{"bob.smith.jpeg", "bob.smith"},
		{"Jiří.png", "Jiří"},
		{" spaced .jpg", "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := FromFilename(tt.input)
			if result != tt.expected {
				t.Errorf("FromFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
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

func TestCanonical(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"jan_novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := Canonical(tt.input)
			if result != tt.expected {
				t.Errorf("Canonical(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if !Equal("Jan-Novák", "jan novak") {
		t.Error("expected identities to be equal")
	}
	if Equal("alice", "bob") {
		t.Error("expected identities to differ")
	}
}
