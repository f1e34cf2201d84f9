package util

import (
	"strings"
	"testing"
)

func TestPkToHash(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple string",
			input:    "test",
			expected: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PkToHash(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestPkToHashDifferentInputs(t *testing.T) {
	if PkToHash("input1") == PkToHash("input2") {
		t.Error("Different inputs should produce different hashes")
	}
}

func TestGetNameAndVersion(t *testing.T) {
	result := GetNameAndVersion()
	if !strings.HasPrefix(result, Name+" / ") {
		t.Errorf("Expected prefix '%s / ', got '%s'", Name, result)
	}
	if GetVersion() == "" {
		t.Error("Embedded version should not be empty")
	}
	if strings.ContainsAny(GetVersion(), " \n") {
		t.Errorf("Version should be trimmed, got %q", GetVersion())
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); ua != "fedcal/"+GetVersion() {
		t.Errorf("Unexpected user agent %s", ua)
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcd", "****"},
		{"secret-token", "********oken"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MaskToken(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPrettyPrint(t *testing.T) {
	out := PrettyPrint(map[string]int{"a": 1})
	if !strings.Contains(out, `"a": 1`) {
		t.Errorf("Unexpected output %s", out)
	}
}
