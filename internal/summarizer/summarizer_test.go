package summarizer

import (
	"context"
	"strings"
	"testing"

	"docqa/internal/llm"
)

const report = "Pallets arrived at the warehouse on Monday. " +
	"The weather was mild. " +
	"Warehouse staff counted the pallets and signed the warehouse receipt. " +
	"Lunch was served at noon."

func TestFrequencySummarize(t *testing.T) {
	got, err := NewFrequency(2).Summarize(context.Background(), "logistics", report)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	want := "Pallets arrived at the warehouse on Monday. Warehouse staff counted the pallets and signed the warehouse receipt."
	if got != want {
		t.Errorf("Summarize = %q, want %q", got, want)
	}
}

func TestFrequencySummarizeEdgeCases(t *testing.T) {
	s := NewFrequency(0)
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "  ", ""},
		{"no punctuation", "  just a fragment ", "just a fragment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Summarize(context.Background(), "general", tt.text)
			if err != nil || got != tt.want {
				t.Errorf("Summarize(%q) = %q, %v; want %q", tt.text, got, err, tt.want)
			}
		})
	}
}

func TestExtractiveAnswer(t *testing.T) {
	e := NewExtractive(1)
	ctx := context.Background()

	got, err := e.Answer(ctx, report+"\n\n"+report, "Who signed the receipt?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if got != "Warehouse staff counted the pallets and signed the warehouse receipt." {
		t.Errorf("Answer = %q", got)
	}

	for _, c := range []string{"", llm.NoContext} {
		if got, _ := e.Answer(ctx, c, "anything?"); got != NoAnswer {
			t.Errorf("Answer with context %q = %q", c, got)
		}
	}
	if got, _ := e.Answer(ctx, report, "Quantum chromodynamics?"); got != NoAnswer {
		t.Errorf("unrelated question answered: %q", got)
	}
}

func TestExtractiveKeepsDocumentOrder(t *testing.T) {
	got, err := NewExtractive(3).Answer(context.Background(), report, "pallets warehouse")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.HasPrefix(got, "Pallets arrived") || strings.Contains(got, "Lunch") {
		t.Errorf("Answer = %q", got)
	}
}
