package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/youruser/weft/internal/config"
	"github.com/youruser/weft/internal/llm"
	"github.com/youruser/weft/internal/logging"
	"github.com/youruser/weft/internal/merge"
	"github.com/youruser/weft/internal/state"
	"github.com/youruser/weft/internal/stream"
)

//go:embed version.txt
var version string

// buildCommit is set via -ldflags or falls back to VCS info from debug.ReadBuildInfo.
var buildCommit string

var log = logging.Get()

// activeStream admits one in-flight stream per process.
var activeStream stream.Tracker

// getBuildCommit returns the short commit hash, resolving from VCS build info if needed.
func getBuildCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func versionString() string {
	v := strings.TrimSpace(version)
	if commit := getBuildCommit(); commit != "" {
		return v + " (" + commit + ")"
	}
	return v
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: weft [flags] <prompt>

Send a prompt to the streaming chat API, render the response as it arrives
and save any generated files.

flags:
  -model string   model to use (default: from config)
  -new            start a new conversation
  -list           list conversations and exit
  -version        print version and exit
`)
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version and exit")
		modelFlag   = flag.String("model", "", "model to use")
		newConv     = flag.Bool("new", false, "start a new conversation")
		listConvs   = flag.Bool("list", false, "list conversations and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("weft %s\n", versionString())
		return
	}

	if err := run(*modelFlag, *newConv, *listConvs, strings.Join(flag.Args(), " ")); err != nil {
		fmt.Fprintf(os.Stderr, "weft: %v\n", err)
		os.Exit(1)
	}
}

func run(model string, newConv, listConvs bool, prompt string) error {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrNoConfig) {
			return fmt.Errorf("no config found; create ~/.config/weft/config.json with at least {\"api_key\": \"...\"}")
		}
		return err
	}

	store := state.NewStore("")
	if err := store.Init(); err != nil {
		return err
	}
	defer store.Close()

	if listConvs {
		return printConversations(store)
	}

	if prompt == "" {
		usage()
		return errors.New("no prompt given")
	}

	if store.Active == nil || newConv {
		if _, err := store.New(""); err != nil {
			return err
		}
	}

	if model == "" {
		model = cfg.DefaultModel
	}

	return send(cfg, store, model, prompt)
}

func printConversations(store *state.Store) error {
	list, err := store.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no conversations")
		return nil
	}
	for _, c := range list {
		name := c.Name
		if name == "" {
			name = "(untitled)"
		}
		fmt.Printf("%s  %s  %d messages, %d files\n",
			c.ID[:8], name, c.Messages, c.Files)
	}
	return nil
}

// send runs one full turn: admission, streaming, rendering, persistence.
func send(cfg *config.Config, store *state.Store, model, prompt string) error {
	renderer := newRenderer()

	session := stream.NewSession(merge.New(), stream.Hooks{
		OnFirstContent:   renderer.firstContent,
		OnTextUpdated:    renderer.textUpdated,
		OnFileRegistered: renderer.fileRegistered,
		OnFileUpdated:    renderer.fileUpdated,
	})

	if !activeStream.Reserve(session.ID) {
		return stream.ErrBusy
	}
	defer activeStream.Clear(session.ID)

	// Files from earlier turns are merge targets for this one.
	seeded := make(map[string]bool)
	for _, sf := range store.Active.Files {
		f := &stream.File{
			ID:       sf.ID,
			Filename: sf.Filename,
			Language: sf.Language,
			Type:     sf.Type,
			Content:  sf.Content,
			MimeType: sf.MimeType,
			State:    stream.FileFinalized,
		}
		f.InferMeta()
		session.SeedFile(f)
		seeded[f.ID] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	activeStream.SetCancel(session.ID, cancel)

	// Ctrl-C aborts the stream instead of killing the process mid-write.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		activeStream.Cancel(session.ID)
	}()

	messages := buildMessages(store, prompt)

	client := llm.NewClient(cfg.BaseURL, cfg.APIKey,
		time.Duration(*cfg.InactivityTimeoutSeconds)*time.Second)

	start := time.Now()
	streamErr := client.ChatStream(ctx, model, messages, session)
	renderer.finish(session)

	if err := store.AddMessage(state.Message{Role: "user", Content: prompt}); err != nil {
		log.Error("persisting user message: %v", err)
	}

	switch session.State() {
	case stream.StateComplete:
		return finishTurn(cfg, store, model, session, seeded, time.Since(start))
	case stream.StateAborted:
		fmt.Fprintln(os.Stderr, "\naborted")
		return nil
	default:
		return streamErr
	}
}

// finishTurn saves finalized files and persists the assistant message.
func finishTurn(cfg *config.Config, store *state.Store, model string, session *stream.Session, seeded map[string]bool, elapsed time.Duration) error {
	var saved []string
	for _, f := range session.Files() {
		if seeded[f.ID] {
			continue // carried over unchanged from an earlier turn
		}
		if *cfg.SaveFiles {
			path, err := state.SaveOutput(cfg.OutputDir, f.Filename, f.Content, f.IsExecutable)
			if err != nil {
				fmt.Fprintf(os.Stderr, "weft: not saving %q: %v\n", f.Filename, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "saved %s\n", path)
		}
		saved = append(saved, f.Filename)

		if err := store.UpsertFile(state.StoredFile{
			ID:       f.ID,
			Filename: f.Filename,
			Language: f.Language,
			Type:     f.Type,
			Content:  f.Content,
			MimeType: f.MimeType,
		}); err != nil {
			log.Error("persisting file %q: %v", f.Filename, err)
		}
	}

	if err := store.AddMessage(state.Message{
		Role:        "assistant",
		Model:       model,
		Content:     session.Text(),
		OutputFiles: saved,
		Tokens:      llm.EstimateTokensSimple(session.Text()),
	}); err != nil {
		log.Error("persisting assistant message: %v", err)
	}

	log.Info("Turn complete in %s: %d files, %d chars of text",
		elapsed.Round(time.Millisecond), len(saved), len(session.Text()))
	return nil
}

// buildMessages assembles the request history: prior turns from the store,
// then the new prompt.
func buildMessages(store *state.Store, prompt string) []llm.Message {
	var messages []llm.Message
	for _, m := range store.Active.Messages {
		if m.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: prompt})
}
