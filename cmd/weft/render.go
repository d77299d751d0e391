package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/youruser/weft/internal/stream"
)

// renderer streams response text to stdout as it grows. Text normally only
// ever extends, so each update prints the fresh suffix. When the display
// text is rewritten instead (an embedded descriptor got stripped out, or a
// completion snapshot replaced the tail), a plain terminal cannot take back
// what is already printed; the renderer stops streaming and reprints the
// final text once at the end.
type renderer struct {
	printed  string
	diverged bool
}

func newRenderer() *renderer {
	return &renderer{}
}

func (r *renderer) firstContent() {
	fmt.Fprintln(os.Stderr, "streaming...")
}

func (r *renderer) textUpdated(text string) {
	if r.diverged {
		return
	}
	if strings.HasPrefix(text, r.printed) {
		fmt.Print(text[len(r.printed):])
		r.printed = text
		return
	}
	r.diverged = true
}

func (r *renderer) fileRegistered(f *stream.File) {
	fmt.Fprintf(os.Stderr, "file: %s\n", f.Filename)
}

func (r *renderer) fileUpdated(f *stream.File) {
	if f.IsUpdate {
		fmt.Fprintf(os.Stderr, "updated: %s\n", f.Filename)
	}
}

// finish reconciles the terminal with the session's final text.
func (r *renderer) finish(session *stream.Session) {
	final := session.Text()
	if r.diverged && final != r.printed {
		if r.printed != "" {
			fmt.Println()
		}
		fmt.Print(final)
		r.printed = final
	}
	if r.printed != "" && !strings.HasSuffix(r.printed, "\n") {
		fmt.Println()
	}
}
