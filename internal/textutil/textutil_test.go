package textutil

import "testing"

func TestContainsCJK(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"hello world", false},
		{"こんにちは", true},
		{"カタカナ", true},
		{"漢字です", true},
		{"한국어", true},
		{"mixed 日本語 text", true},
		{"", false},
		{"123 !?", false},
	}
	for _, tc := range cases {
		if got := ContainsCJK(tc.in); got != tc.want {
			t.Errorf("ContainsCJK(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestHashIsStable(t *testing.T) {
	a := Hash("same input")
	b := Hash("same input")
	if a != b {
		t.Fatalf("hash must be deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if Hash("other input") == a {
		t.Errorf("different inputs must not collide trivially")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("short strings pass through, got %q", got)
	}
	if got := Truncate("0123456789", 4); got != "0123..." {
		t.Errorf("got %q", got)
	}
}
