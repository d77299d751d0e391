package stream

import (
	"errors"
	"testing"
)

func TestEngineStart(t *testing.T) {
	t.Run("registers and infers metadata", func(t *testing.T) {
		e := NewEngine()
		f, created := e.Start(FileMeta{ID: "file-1", Filename: "main.py"})
		if !created {
			t.Fatal("created = false, want true")
		}
		if f.Language != "python" {
			t.Errorf("Language = %q, want %q", f.Language, "python")
		}
		if f.Extension != "py" {
			t.Errorf("Extension = %q, want %q", f.Extension, "py")
		}
		if !f.IsStreaming() {
			t.Error("IsStreaming() = false, want true after Start")
		}
	})

	t.Run("duplicate start is a no-op", func(t *testing.T) {
		e := NewEngine()
		first, _ := e.Start(FileMeta{ID: "file-1", Filename: "a.txt"})
		second, created := e.Start(FileMeta{ID: "file-1", Filename: "other.txt"})
		if created {
			t.Error("created = true for duplicate id")
		}
		if second != first {
			t.Error("duplicate Start returned a different file")
		}
		if e.Len() != 1 {
			t.Errorf("Len() = %d, want 1", e.Len())
		}
	})

	t.Run("server metadata wins over inference", func(t *testing.T) {
		e := NewEngine()
		f, _ := e.Start(FileMeta{ID: "file-1", Filename: "script.py", Language: "python3", Type: "document"})
		if f.Language != "python3" {
			t.Errorf("Language = %q, want %q", f.Language, "python3")
		}
		if f.Type != "document" {
			t.Errorf("Type = %q, want %q", f.Type, "document")
		}
	})
}

func TestEngineAppendRaw(t *testing.T) {
	t.Run("chunks concatenate", func(t *testing.T) {
		e := NewEngine()
		e.Start(FileMeta{ID: "file-1", Filename: "a.txt"})
		e.AppendRaw("file-1", "hello ", false)
		f, err := e.AppendRaw("file-1", "world", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Content != "hello world" {
			t.Errorf("Content = %q, want %q", f.Content, "hello world")
		}
		if f.State != FileFinalized {
			t.Errorf("State = %v, want %v", f.State, FileFinalized)
		}
	})

	t.Run("unknown id is reported, not fatal", func(t *testing.T) {
		e := NewEngine()
		_, err := e.AppendRaw("file-missing", "chunk", false)
		if !errors.Is(err, ErrUnknownFile) {
			t.Errorf("error = %v, want ErrUnknownFile", err)
		}
	})
}

func TestEngineLookup(t *testing.T) {
	e := NewEngine()
	e.Start(FileMeta{ID: "file-1", Filename: "app.js"})
	e.Start(FileMeta{ID: "2", Filename: "style.css"})

	t.Run("exact id", func(t *testing.T) {
		if _, ok := e.Lookup("file-1"); !ok {
			t.Error("exact lookup failed")
		}
	})

	t.Run("prefix added", func(t *testing.T) {
		f, ok := e.Lookup("1")
		if !ok || f.ID != "file-1" {
			t.Errorf("Lookup(\"1\") = %v, %v, want file-1", f, ok)
		}
	})

	t.Run("prefix stripped", func(t *testing.T) {
		f, ok := e.Lookup("file-2")
		if !ok || f.ID != "2" {
			t.Errorf("Lookup(\"file-2\") = %v, %v, want file 2", f, ok)
		}
	})

	t.Run("filename among streaming files", func(t *testing.T) {
		f, ok := e.Lookup("style.css")
		if !ok || f.ID != "2" {
			t.Errorf("Lookup(\"style.css\") = %v, %v, want file 2", f, ok)
		}
	})

	t.Run("miss", func(t *testing.T) {
		if _, ok := e.Lookup("nope"); ok {
			t.Error("Lookup(\"nope\") succeeded, want miss")
		}
	})
}

func TestEngineRegisterDescriptor(t *testing.T) {
	t.Run("new file finalized on arrival", func(t *testing.T) {
		e := NewEngine()
		f, created := e.RegisterDescriptor(&FileDescriptor{
			Filename: "hello.py", Content: "print('hi')", HasContent: true,
		})
		if !created {
			t.Fatal("created = false, want true")
		}
		if f.State != FileFinalized {
			t.Errorf("State = %v, want %v", f.State, FileFinalized)
		}
		if f.ID == "" {
			t.Error("ID is empty, want generated id")
		}
		if f.Content != "print('hi')" {
			t.Errorf("Content = %q, want %q", f.Content, "print('hi')")
		}
	})

	t.Run("same filename updates in place", func(t *testing.T) {
		e := NewEngine()
		e.RegisterDescriptor(&FileDescriptor{Filename: "a.txt", Content: "v1", HasContent: true})
		f, created := e.RegisterDescriptor(&FileDescriptor{Filename: "a.txt", Content: "v2", HasContent: true})
		if created {
			t.Error("created = true for known filename")
		}
		if f.Content != "v2" {
			t.Errorf("Content = %q, want %q (last write wins)", f.Content, "v2")
		}
		if e.Len() != 1 {
			t.Errorf("Len() = %d, want 1", e.Len())
		}
	})

	t.Run("merged records are not resolution targets", func(t *testing.T) {
		e := NewEngine()
		base, _ := e.RegisterDescriptor(&FileDescriptor{Filename: "a.txt", Content: "v1", HasContent: true})
		e.Add(&File{
			ID:             NewFileID(),
			Filename:       "a.txt",
			Content:        "v1 merged",
			State:          FileFinalized,
			IsUpdate:       true,
			OriginalFileID: base.ID,
		})

		f, created := e.RegisterDescriptor(&FileDescriptor{Filename: "a.txt", Content: "v1", HasContent: true})
		if created {
			t.Error("created = true for known filename")
		}
		if f.ID != base.ID {
			t.Errorf("resolved ID = %q, want base %q", f.ID, base.ID)
		}
		merged, _ := e.ByFilename("a.txt")
		if merged.Content != "v1 merged" {
			t.Errorf("merged Content = %q, want %q", merged.Content, "v1 merged")
		}
	})

	t.Run("sectioned descriptor reconstructs content", func(t *testing.T) {
		e := NewEngine()
		f, _ := e.RegisterDescriptor(&FileDescriptor{
			Filename: "doc.md",
			Sections: []Section{
				{Name: "end", Content: "bye", StartLine: 9},
				{Name: "start", Content: "hi", StartLine: 1},
			},
		})
		if f.Content != "hi\nbye" {
			t.Errorf("Content = %q, want %q", f.Content, "hi\nbye")
		}
	})
}

func TestEngineApplySectioned(t *testing.T) {
	e := NewEngine()
	e.Start(FileMeta{ID: "file-1", Filename: "style.css"})

	d := &FileDescriptor{
		Filename: "style.css",
		Sections: []Section{
			{Name: "base", Content: "body {}", StartLine: 1},
			{Name: "header", Content: "h1 {}", StartLine: 5},
		},
	}
	f, err := e.ApplySectioned("file-1", d, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Content != "body {}\nh1 {}" {
		t.Errorf("Content = %q, want %q", f.Content, "body {}\nh1 {}")
	}
	if f.State != FileFinalized {
		t.Errorf("State = %v, want %v", f.State, FileFinalized)
	}
}

func TestEngineFilesOrder(t *testing.T) {
	e := NewEngine()
	e.Start(FileMeta{ID: "file-1", Filename: "first.txt"})
	e.Start(FileMeta{ID: "file-2", Filename: "second.txt"})
	e.RegisterDescriptor(&FileDescriptor{Filename: "third.txt", Content: "x", HasContent: true})

	files := e.Files()
	if len(files) != 3 {
		t.Fatalf("len(Files()) = %d, want 3", len(files))
	}
	wantOrder := []string{"first.txt", "second.txt", "third.txt"}
	for i, want := range wantOrder {
		if files[i].Filename != want {
			t.Errorf("Files()[%d].Filename = %q, want %q", i, files[i].Filename, want)
		}
	}
}

func TestEngineByFilename(t *testing.T) {
	e := NewEngine()
	e.Start(FileMeta{ID: "file-1", Filename: "app.js"})
	merged := &File{ID: NewFileID(), Filename: "app.js", Content: "v2", State: FileFinalized}
	e.Add(merged)

	f, ok := e.ByFilename("app.js")
	if !ok {
		t.Fatal("ByFilename miss")
	}
	if f.ID != merged.ID {
		t.Errorf("ByFilename returned %q, want newest %q", f.ID, merged.ID)
	}
}
