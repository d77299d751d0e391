package stream

import "testing"

func TestReconstructFromSections(t *testing.T) {
	t.Run("sorted by start line", func(t *testing.T) {
		sections := []Section{
			{Name: "footer", Content: "goodbye", StartLine: 20},
			{Name: "header", Content: "hello", StartLine: 1},
			{Name: "body", Content: "middle", StartLine: 10},
		}
		got := ReconstructFromSections(sections)
		want := "hello\nmiddle\ngoodbye"
		if got != want {
			t.Errorf("ReconstructFromSections = %q, want %q", got, want)
		}
	})

	t.Run("missing start lines keep encounter order", func(t *testing.T) {
		sections := []Section{
			{Name: "first", Content: "a"},
			{Name: "second", Content: "b"},
			{Name: "positioned", Content: "c", StartLine: 5},
		}
		got := ReconstructFromSections(sections)
		want := "a\nb\nc"
		if got != want {
			t.Errorf("ReconstructFromSections = %q, want %q", got, want)
		}
	})

	t.Run("literal escape sequences become line breaks", func(t *testing.T) {
		sections := []Section{{Name: "only", Content: `line1\nline2`}}
		if got := ReconstructFromSections(sections); got != "line1\nline2" {
			t.Errorf("ReconstructFromSections = %q, want %q", got, "line1\nline2")
		}
	})

	t.Run("no double newline at joints", func(t *testing.T) {
		sections := []Section{
			{Name: "a", Content: "first\n", StartLine: 1},
			{Name: "b", Content: "second", StartLine: 2},
		}
		if got := ReconstructFromSections(sections); got != "first\nsecond" {
			t.Errorf("ReconstructFromSections = %q, want %q", got, "first\nsecond")
		}
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		sections := []Section{
			{Name: "b", Content: "beta", StartLine: 2},
			{Name: "a", Content: "alpha", StartLine: 1},
			{Name: "x", Content: "loose"},
		}
		first := ReconstructFromSections(sections)
		for i := 0; i < 10; i++ {
			if got := ReconstructFromSections(sections); got != first {
				t.Fatalf("run %d = %q, want %q", i, got, first)
			}
		}
	})

	t.Run("input slice untouched", func(t *testing.T) {
		sections := []Section{
			{Name: "b", Content: "b", StartLine: 2},
			{Name: "a", Content: "a", StartLine: 1},
		}
		ReconstructFromSections(sections)
		if sections[0].Name != "b" {
			t.Errorf("sections[0].Name = %q, input was reordered", sections[0].Name)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := ReconstructFromSections(nil); got != "" {
			t.Errorf("ReconstructFromSections(nil) = %q, want \"\"", got)
		}
	})
}

func TestDecodeSectionsOrder(t *testing.T) {
	raw := []byte(`{"zeta": "z", "alpha": "a", "mid": {"content": "m", "start_line": 3}}`)
	sections, err := decodeSections(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("len = %d, want 3", len(sections))
	}
	wantNames := []string{"zeta", "alpha", "mid"}
	for i, want := range wantNames {
		if sections[i].Name != want {
			t.Errorf("sections[%d].Name = %q, want %q", i, sections[i].Name, want)
		}
	}
	if sections[2].StartLine != 3 {
		t.Errorf("sections[2].StartLine = %d, want 3", sections[2].StartLine)
	}
}
