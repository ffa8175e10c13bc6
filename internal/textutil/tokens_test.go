package textutil

import (
	"math"
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	got := Tokens("The invoice #42 isn't PAID.")
	want := []string{"the", "invoice", "42", "isn't", "paid"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
	content := ContentTokens("The invoice is paid")
	if !reflect.DeepEqual(content, []string{"invoice", "paid"}) {
		t.Errorf("ContentTokens() = %v", content)
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "   ", nil},
		{"no punctuation", " just words ", []string{"just words"}},
		{"two sentences", "First one. Second one!", []string{"First one.", "Second one!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sentences(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOchiai(t *testing.T) {
	q := TokenSet("alpha beta")
	if got := Ochiai(q, "alpha beta"); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical sets = %v, want 1", got)
	}
	if got := Ochiai(q, "gamma"); got != 0 {
		t.Errorf("disjoint sets = %v, want 0", got)
	}
	if got := Ochiai(q, "alpha gamma"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("half overlap = %v, want 0.5", got)
	}
	if got := Overlap(q, "alpha alpha beta"); got != 2 {
		t.Errorf("Overlap = %d, want 2", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"日本語", 1, "日"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
