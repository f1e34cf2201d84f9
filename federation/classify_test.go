package federation

import "testing"

func TestIsHandleLike(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"   ", false},
		{"plain text", false},
		{"alice", false},
		{"@alice", false},
		{"https://x", true},
		{"http://example.org/@alice", true},
		{"HTTPS://Example.org", true},
		{"a@b", true},
		{"@alice@mastodon.social", true},
		{"user@example.org", true},
		{"  user@example.org  ", true},
		{"a@b@c", true},
		{"mastodon.social/@alice", true},
		{"@", false},
		{"a@", false},
		{"@b", false},
		{"hello user@example.org", false},
		{"user@example.org trailing", false},
		{"@alice@mastodon.social hi", false},
		{"a@b@c d", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsHandleLike(tt.input); got != tt.want {
				t.Errorf("IsHandleLike(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
