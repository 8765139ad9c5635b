package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jnickg/my-whisper-dictation/internal/domain"
	"github.com/jnickg/my-whisper-dictation/internal/ports"
)

var (
	ErrAlreadyStreaming = errors.New("already streaming")
	ErrNotStreaming     = errors.New("not streaming")
)

// Config controls session behavior.
type Config struct {
	StreamHost  string
	StreamPort  int
	InputMethod string

	// ReaderJoinTimeout bounds how long Stop waits for the stream reader
	// after the pipeline is closed. Past it the reader is abandoned.
	ReaderJoinTimeout time.Duration
}

// SessionController owns the single dictation session. All state
// transitions run under one mutex: start, stop and toggle never interleave,
// and status never observes a half-built session. The mutex is not held
// mid-session; the stream reader runs concurrently and appends through the
// transcript's own lock.
type SessionController struct {
	opener   ports.PipelineOpener
	injector ports.Injector
	logger   *log.Logger
	cfg      Config

	mu      sync.Mutex
	current *activeSession
}

type activeSession struct {
	handle     ports.PipelineHandle
	cancel     context.CancelFunc
	readerDone chan struct{}
	text       *transcript
}

// transcript accumulates segment text in arrival order. It carries its own
// lock so the reader can append while the controller mutex is free.
type transcript struct {
	mu sync.Mutex
	b  strings.Builder
}

func (t *transcript) append(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.WriteString(s)
}

func (t *transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.b.String()
}

func NewSessionController(opener ports.PipelineOpener, injector ports.Injector, logger *log.Logger, cfg Config) *SessionController {
	if cfg.ReaderJoinTimeout <= 0 {
		cfg.ReaderJoinTimeout = 3 * time.Second
	}
	return &SessionController{
		opener:   opener,
		injector: injector,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start opens the capture pipeline and begins streaming. Fails with
// ErrAlreadyStreaming when a session is active.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

func (c *SessionController) startLocked(ctx context.Context) error {
	if c.current != nil {
		return ErrAlreadyStreaming
	}

	handle, err := c.opener.Open(ctx, c.cfg.StreamHost, c.cfg.StreamPort)
	if err != nil {
		return err
	}

	// The session outlives the control connection that started it, so the
	// reader gets its own context rather than the request's.
	sessionCtx, cancel := context.WithCancel(context.Background())

	active := &activeSession{
		handle:     handle,
		cancel:     cancel,
		readerDone: make(chan struct{}),
		text:       &transcript{},
	}

	// One goroutine calls the sink sequentially, so injection order always
	// matches accumulation order even when the input tool is slow.
	sink := func(seg domain.Segment) {
		active.text.append(seg.Text)
		c.injector.Type(seg.Text)
	}
	go readSegments(sessionCtx, handle.Output(), sink, active.readerDone)

	c.current = active
	c.logger.Info("streaming started", "host", c.cfg.StreamHost, "port", c.cfg.StreamPort)
	return nil
}

// Stop tears the session down and returns the accumulated transcript.
// Fails with ErrNotStreaming when idle. State is reset to idle even when
// the pipeline shutdown reports an error; the partial transcript is
// returned alongside it.
func (c *SessionController) Stop() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *SessionController) stopLocked() (string, error) {
	if c.current == nil {
		return "", ErrNotStreaming
	}
	active := c.current

	// Ordered teardown: flag the reader, stop the capturer so the relay
	// flushes the final segment and exits, then join the reader.
	active.cancel()
	closeErr := active.handle.Close()
	if closeErr != nil {
		c.logger.Error("capture pipeline shutdown failed", "error", closeErr)
	}

	select {
	case <-active.readerDone:
	case <-time.After(c.cfg.ReaderJoinTimeout):
		c.logger.Warn("stream reader did not exit in time, abandoning it")
	}

	text := active.text.String()
	c.current = nil
	c.logger.Info("streaming stopped", "chars", len(text))
	return text, closeErr
}

// Toggle stops the active session or starts a new one. started reports
// which way it went; text is only meaningful on a stop.
func (c *SessionController) Toggle(ctx context.Context) (started bool, text string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		text, err = c.stopLocked()
		return false, text, err
	}
	return true, "", c.startLocked(ctx)
}

// Status reports the session state together with a live server probe. It
// never mutates the session.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	st := domain.Status{
		Streaming:   c.current != nil,
		StreamHost:  c.cfg.StreamHost,
		StreamPort:  c.cfg.StreamPort,
		InputMethod: c.cfg.InputMethod,
	}
	if c.current != nil {
		st.Text = c.current.text.String()
	}
	c.mu.Unlock()

	// Probed outside the lock: a slow dial must not block start/stop.
	st.ServerAvailable = c.opener.Probe(c.cfg.StreamHost, c.cfg.StreamPort) == nil
	return st
}

// Shutdown tears down any active session. Safe when idle and safe to call
// more than once; it is the daemon-exit path.
func (c *SessionController) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	if _, err := c.stopLocked(); err != nil {
		c.logger.Error("session teardown on shutdown failed", "error", err)
	}
}
