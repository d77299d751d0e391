package stream

import "testing"

func TestClassify(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		for _, payload := range []string{
			"just some prose",
			"",
			"{not json at all",
			`{"chunk": "no filename here"}`,
			`{"filename": ""}`,
		} {
			if c := Classify(payload); c.Kind != KindPlainText {
				t.Errorf("Classify(%q).Kind = %v, want %v", payload, c.Kind, KindPlainText)
			}
		}
	})

	t.Run("truncated descriptor is plain text", func(t *testing.T) {
		c := Classify(`{"filename": "app.js", "content": "const x =`)
		if c.Kind != KindPlainText {
			t.Errorf("Kind = %v, want %v", c.Kind, KindPlainText)
		}
	})

	t.Run("file descriptor with content", func(t *testing.T) {
		c := Classify(`{"id": "file-1", "filename": "app.js", "language": "javascript", "content": "const x = 1;"}`)
		if c.Kind != KindFileDescriptor {
			t.Fatalf("Kind = %v, want %v", c.Kind, KindFileDescriptor)
		}
		if c.File.Filename != "app.js" {
			t.Errorf("Filename = %q, want %q", c.File.Filename, "app.js")
		}
		if !c.File.HasContent || c.File.Content != "const x = 1;" {
			t.Errorf("Content = %q (has=%v), want %q", c.File.Content, c.File.HasContent, "const x = 1;")
		}
	})

	t.Run("empty content still counts as content", func(t *testing.T) {
		c := Classify(`{"filename": "empty.txt", "content": ""}`)
		if c.Kind != KindFileDescriptor {
			t.Fatalf("Kind = %v, want %v", c.Kind, KindFileDescriptor)
		}
		if !c.File.HasContent {
			t.Error("HasContent = false, want true for explicit empty content")
		}
	})

	t.Run("sectioned file descriptor", func(t *testing.T) {
		c := Classify(`{"filename": "style.css", "sections": {"header": {"content": "h1 {}", "start_line": 1}, "footer": "footer {}"}}`)
		if c.Kind != KindFileDescriptor {
			t.Fatalf("Kind = %v, want %v", c.Kind, KindFileDescriptor)
		}
		if len(c.File.Sections) != 2 {
			t.Fatalf("len(Sections) = %d, want 2", len(c.File.Sections))
		}
		if c.File.Sections[0].Name != "header" || c.File.Sections[0].StartLine != 1 {
			t.Errorf("Sections[0] = %+v, want header at line 1", c.File.Sections[0])
		}
		if c.File.Sections[1].Name != "footer" || c.File.Sections[1].Content != "footer {}" {
			t.Errorf("Sections[1] = %+v, want footer shorthand", c.File.Sections[1])
		}
	})

	t.Run("partial update", func(t *testing.T) {
		c := Classify(`{"filename": "style.css", "update_type": "partial", "sections_modified": {"base_styles": {"content": "body { margin: 0; }", "change_summary": "tighter"}}, "sections_added": {"hero": "header {}"}, "sections_removed": ["legacy"]}`)
		if c.Kind != KindPartialUpdate {
			t.Fatalf("Kind = %v, want %v", c.Kind, KindPartialUpdate)
		}
		u := c.Update
		if u.Filename != "style.css" {
			t.Errorf("Filename = %q, want %q", u.Filename, "style.css")
		}
		if len(u.Modified) != 1 || u.Modified[0].Name != "base_styles" {
			t.Fatalf("Modified = %+v, want one base_styles entry", u.Modified)
		}
		if u.Modified[0].ChangeSummary != "tighter" {
			t.Errorf("ChangeSummary = %q, want %q", u.Modified[0].ChangeSummary, "tighter")
		}
		if len(u.Added) != 1 || u.Added[0].Content != "header {}" {
			t.Fatalf("Added = %+v, want one hero entry", u.Added)
		}
		if len(u.Removed) != 1 || u.Removed[0] != "legacy" {
			t.Errorf("Removed = %v, want [legacy]", u.Removed)
		}
	})

	t.Run("non-partial update_type is a file descriptor", func(t *testing.T) {
		c := Classify(`{"filename": "a.txt", "update_type": "full", "content": "x"}`)
		if c.Kind != KindFileDescriptor {
			t.Errorf("Kind = %v, want %v", c.Kind, KindFileDescriptor)
		}
	})

	t.Run("surrounding whitespace tolerated", func(t *testing.T) {
		c := Classify("\n  {\"filename\": \"a.txt\", \"content\": \"x\"}  \n")
		if c.Kind != KindFileDescriptor {
			t.Errorf("Kind = %v, want %v", c.Kind, KindFileDescriptor)
		}
	})
}
