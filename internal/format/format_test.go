package format

import "testing"

func TestDefaultFormats(t *testing.T) {
	formats := DefaultFormats()
	if len(formats) == 0 {
		t.Fatal("no formats")
	}
	for _, f := range formats {
		if f.OpeningPrompt == "" || f.ResponsePrompt == "" || f.ClosingPrompt == "" {
			t.Errorf("format %s is missing prompts", f.ID)
		}
		if len(f.TurnCounts) == 0 {
			t.Errorf("format %s has no turn counts", f.ID)
		}
	}
}

func TestGet(t *testing.T) {
	t.Run("TurnBased", func(t *testing.T) {
		f := Get("turn-based")
		if f == nil {
			t.Fatal("format not found")
		}
		if !f.ValidTurnCount(3) || !f.ValidTurnCount(5) {
			t.Error("turn-based should allow 3 and 5 turns")
		}
		if f.ValidTurnCount(4) || f.ValidTurnCount(0) {
			t.Error("unexpected turn count accepted")
		}
	})

	t.Run("Nonexistent", func(t *testing.T) {
		if Get("lincoln-douglas") != nil {
			t.Error("expected nil for unknown format")
		}
		if Valid("lincoln-douglas") {
			t.Error("unknown format should be invalid")
		}
	})

	if Default() == nil || Default().ID != "turn-based" {
		t.Error("unexpected default format")
	}
	if len(List()) != len(DefaultFormats()) {
		t.Error("List and DefaultFormats disagree")
	}
}

func TestPromptFor(t *testing.T) {
	f := Default()

	tests := []struct {
		turn, count int
		want        string
	}{
		{0, 3, f.OpeningPrompt},
		{1, 3, f.ResponsePrompt},
		{2, 3, f.ClosingPrompt},
		{3, 5, f.ResponsePrompt},
		{4, 5, f.ClosingPrompt},
	}
	for _, tt := range tests {
		if got := f.PromptFor(tt.turn, tt.count); got != tt.want {
			t.Errorf("PromptFor(%d, %d) returned the wrong template", tt.turn, tt.count)
		}
	}
}
