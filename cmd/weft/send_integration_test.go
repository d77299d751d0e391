package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/youruser/weft/internal/config"
	"github.com/youruser/weft/internal/state"
	"github.com/youruser/weft/internal/stream"
)

// sendFixture wires a full turn against a scripted stream server: temp
// store, temp output dir, config pointing at the server.
func sendFixture(t *testing.T, frames []string) (*config.Config, *state.Store) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, fr := range frames {
			fmt.Fprint(w, fr)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)

	timeout := 5
	save := true
	cfg := &config.Config{
		APIKey:                   "test-key",
		BaseURL:                  srv.URL,
		DefaultModel:             "test-model",
		OutputDir:                filepath.Join(t.TempDir(), "out"),
		InactivityTimeoutSeconds: &timeout,
		SaveFiles:                &save,
	}

	store := state.NewStore(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	t.Cleanup(store.Close)
	if _, err := store.New(""); err != nil {
		t.Fatalf("store new failed: %v", err)
	}
	return cfg, store
}

func TestSendPersistsTurn(t *testing.T) {
	cfg, store := sendFixture(t, []string{
		"event: text_chunk\ndata: {\"chunk\": \"Here is your page.\"}\n\n",
		"event: file_start\ndata: {\"file\": {\"id\": \"file-1\", \"filename\": \"index.html\"}}\n\n",
		"event: file_chunk\ndata: {\"file_id\": \"file-1\", \"chunk\": \"<html></html>\", \"is_complete\": true}\n\n",
		"event: stream_complete\ndata: {\"response\": \"Here is your page.\"}\n\n",
	})

	if err := send(cfg, store, "test-model", "make a page"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if len(store.Active.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(store.Active.Messages))
	}
	assistant := store.Active.Messages[1]
	if assistant.Role != "assistant" {
		t.Errorf("Role = %q, want assistant", assistant.Role)
	}
	if assistant.Content != "Here is your page." {
		t.Errorf("Content = %q", assistant.Content)
	}
	if len(assistant.OutputFiles) != 1 || assistant.OutputFiles[0] != "index.html" {
		t.Errorf("OutputFiles = %v, want [index.html]", assistant.OutputFiles)
	}

	f, err := store.FileByName("index.html")
	if err != nil {
		t.Fatalf("FileByName failed: %v", err)
	}
	if f.Content != "<html></html>" {
		t.Errorf("stored Content = %q", f.Content)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "index.html"))
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Errorf("output content = %q", data)
	}
}

func TestSendCrossTurnUpdate(t *testing.T) {
	cfg, store := sendFixture(t, []string{
		"event: text_chunk\ndata: {\"chunk\": \"Tweaking the styles.\\n{\\\"filename\\\": \\\"style.css\\\", \\\"update_type\\\": \\\"partial\\\", \\\"sections_modified\\\": {\\\"base_styles\\\": \\\"body { color: blue; }\\\"}}\"}\n\n",
		"event: stream_complete\ndata: {}\n\n",
	})

	// The merge target comes from an earlier turn.
	store.UpsertFile(state.StoredFile{
		ID:       "file-css",
		Filename: "style.css",
		Content:  "body { color: red; }",
	})

	if err := send(cfg, store, "test-model", "make it blue"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	f, err := store.FileByName("style.css")
	if err != nil {
		t.Fatalf("FileByName failed: %v", err)
	}
	if f.Content != "body { color: blue; }" {
		t.Errorf("Content = %q, want merged result", f.Content)
	}
	if f.ID == "file-css" {
		t.Error("stored file still has the original id, merge result not persisted")
	}
}

func TestSendRejectedWhileBusy(t *testing.T) {
	cfg, store := sendFixture(t, []string{
		"event: stream_complete\ndata: {}\n\n",
	})

	if !activeStream.Reserve("held") {
		t.Fatal("could not reserve the admission slot")
	}
	defer activeStream.Clear("held")

	if err := send(cfg, store, "test-model", "hello"); !errors.Is(err, stream.ErrBusy) {
		t.Fatalf("send error = %v, want %v", err, stream.ErrBusy)
	}
	if len(store.Active.Messages) != 0 {
		t.Errorf("len(Messages) = %d, want 0 for a rejected send", len(store.Active.Messages))
	}
}

func TestSendErrorLeavesNoAssistantMessage(t *testing.T) {
	cfg, store := sendFixture(t, []string{
		"event: error\ndata: {\"error\": \"model overloaded\"}\n\n",
	})

	if err := send(cfg, store, "test-model", "hello"); err == nil {
		t.Fatal("send succeeded, want error")
	}

	for _, m := range store.Active.Messages {
		if m.Role == "assistant" {
			t.Error("assistant message persisted for a failed turn")
		}
	}
}
