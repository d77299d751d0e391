package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/youruser/weft/internal/logging"
	"github.com/youruser/weft/internal/sse"
	"github.com/youruser/weft/internal/stream"
)

var (
	ErrRequestFailed     = errors.New("API request failed")
	ErrStreamError       = errors.New("stream error")
	ErrInactivityTimeout = errors.New("stream inactivity timeout")
	log                  = logging.Get()
)

const defaultInactivityTimeout = 60 * time.Second

// Client handles communication with the chat streaming API.
type Client struct {
	baseURL           string
	apiKey            string
	httpClient        *http.Client
	inactivityTimeout time.Duration
}

// NewClient creates a new streaming client. An inactivityTimeout of zero
// falls back to the default.
func NewClient(baseURL, apiKey string, inactivityTimeout time.Duration) *Client {
	if inactivityTimeout <= 0 {
		inactivityTimeout = defaultInactivityTimeout
	}
	return &Client{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		apiKey:            apiKey,
		httpClient:        &http.Client{},
		inactivityTimeout: inactivityTimeout,
	}
}

// ChatStream sends a chat request and drives the session with every parsed
// frame until the stream ends. Transport failures and inactivity fail the
// session; context cancellation aborts it; end-of-stream without an explicit
// completion frame synthesizes one. The session is always terminal when
// ChatStream returns.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, session *stream.Session) error {
	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	// Child context: the inactivity watchdog cancels it to unblock the
	// body read.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/stream", bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Debug("HTTP POST %s/chat/stream (model: %s, messages: %d)", c.baseURL, model, len(messages))

	session.Begin()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			session.Abort()
			return ctx.Err()
		}
		log.Error("HTTP request failed: %v", err)
		session.Fail(err)
		return err
	}
	defer resp.Body.Close()

	log.Debug("HTTP response status: %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, string(body))
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		session.Fail(err)
		return err
	}

	return c.processStream(ctx, cancel, resp.Body, session)
}

// processStream reads body bytes, feeds them through the frame parser and
// dispatches every frame to the session.
func (c *Client) processStream(ctx context.Context, cancel context.CancelFunc, body io.Reader, session *stream.Session) error {
	parser := sse.NewParser()

	var timedOut atomic.Bool
	watchdog := time.AfterFunc(c.inactivityTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			watchdog.Reset(c.inactivityTimeout)
			for _, fr := range parser.Feed(buf[:n]) {
				session.HandleFrame(fr)
			}
			switch session.State() {
			case stream.StateComplete:
				return nil
			case stream.StateFailed:
				return fmt.Errorf("%w: %v", ErrStreamError, session.Err())
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				for _, fr := range parser.Flush() {
					session.HandleFrame(fr)
				}
				// No completion frame seen; never leave the caller
				// hanging.
				session.FinishEOF()
				return nil
			}
			if timedOut.Load() {
				err := fmt.Errorf("%w after %s", ErrInactivityTimeout, c.inactivityTimeout)
				session.Fail(err)
				return err
			}
			if ctx.Err() != nil {
				// User abort closes the body mid-read; no further
				// state mutation happens after this point.
				session.Abort()
				return ctx.Err()
			}
			log.Error("stream read error: %v", readErr)
			session.Fail(readErr)
			return readErr
		}
	}
}
