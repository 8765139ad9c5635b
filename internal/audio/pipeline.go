package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jnickg/my-whisper-dictation/internal/ports"
)

const (
	probeTimeout = time.Second

	// How long the capturer gets to flush after an interrupt before it is
	// killed, and how long the relay gets to exit on its own afterwards.
	captureStopWait = 1200 * time.Millisecond
	relayExitWait   = 2 * time.Second
)

// ServerUnavailableError reports a failed reachability probe.
type ServerUnavailableError struct {
	Host string
	Port int
}

func (e *ServerUnavailableError) Error() string {
	return fmt.Sprintf("Streaming server not available at %s:%d (is the whisper server running?)", e.Host, e.Port)
}

// ToolMissingError reports a pipeline executable that is not installed.
type ToolMissingError struct {
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("required tool not found: %s", e.Tool)
}

// StreamPipeline spawns the microphone capturer and the relay that carries
// its PCM to the streaming server. It implements ports.PipelineOpener.
type StreamPipeline struct {
	captureCommand string
	relayCommand   string
	cfg            ports.AudioConfig
	logger         *log.Logger
}

func NewStreamPipeline(captureCommand string, relayCommand string, cfg ports.AudioConfig, logger *log.Logger) *StreamPipeline {
	if captureCommand == "" {
		captureCommand = "ffmpeg"
	}
	if relayCommand == "" {
		relayCommand = "nc"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return &StreamPipeline{
		captureCommand: captureCommand,
		relayCommand:   relayCommand,
		cfg:            cfg,
		logger:         logger,
	}
}

// Probe dials the streaming server with a short timeout.
func (p *StreamPipeline) Probe(host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return &ServerUnavailableError{Host: host, Port: port}
	}
	_ = conn.Close()
	return nil
}

// Open probes the server, then starts the capturer and the relay with the
// capturer's stdout wired into the relay's stdin.
func (p *StreamPipeline) Open(ctx context.Context, host string, port int) (ports.PipelineHandle, error) {
	if err := p.Probe(host, port); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture := exec.Command(p.captureCommand, captureArgs(p.cfg)...)
	var captureStderr bytes.Buffer
	capture.Stderr = &captureStderr

	captureOut, err := capture.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create capture stdout pipe: %w", err)
	}

	// The relay writes into a pipe we make ourselves: exec.Cmd.Wait closes
	// the read end of its own StdoutPipe when the process exits, which
	// discards any transcript lines still buffered there. With our pipe the
	// stream reader keeps the read end until it has drained everything.
	relayRead, relayWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create relay stdout pipe: %w", err)
	}

	relay := exec.Command(p.relayCommand, host, strconv.Itoa(port))
	relay.Stdin = captureOut
	relay.Stdout = relayWrite
	var relayStderr bytes.Buffer
	relay.Stderr = &relayStderr

	if err := capture.Start(); err != nil {
		_ = relayRead.Close()
		_ = relayWrite.Close()
		return nil, startError(p.captureCommand, err)
	}
	if err := relay.Start(); err != nil {
		_ = relayRead.Close()
		_ = relayWrite.Close()
		_ = capture.Process.Kill()
		_ = capture.Wait()
		return nil, startError(p.relayCommand, err)
	}
	// The child owns its copy of the write end now; drop ours so the read
	// end sees EOF once the relay exits.
	_ = relayWrite.Close()

	captureWait := make(chan error, 1)
	go func() {
		captureWait <- capture.Wait()
		close(captureWait)
	}()
	relayWait := make(chan error, 1)
	go func() {
		relayWait <- relay.Wait()
		close(relayWait)
	}()

	// Catch capturers that die immediately (bad device, bad arguments).
	select {
	case err := <-captureWait:
		_ = relay.Process.Kill()
		<-relayWait
		_ = relayRead.Close()
		if err != nil {
			return nil, fmt.Errorf("capture process exited before streaming started: %w: %s", err, trimmed(&captureStderr))
		}
		return nil, errors.New("capture process exited before streaming started")
	case <-time.After(250 * time.Millisecond):
	}

	p.logger.Debug("capture pipeline started",
		"capture", p.captureCommand, "relay", p.relayCommand, "host", host, "port", port)

	return &pipeline{
		capture:       capture,
		relay:         relay,
		out:           relayRead,
		captureStderr: &captureStderr,
		relayStderr:   &relayStderr,
		captureWait:   captureWait,
		relayWait:     relayWait,
		logger:        p.logger,
	}, nil
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

func startError(tool string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &ToolMissingError{Tool: tool}
	}
	return fmt.Errorf("failed to start %s: %w", tool, err)
}

type pipeline struct {
	capture *exec.Cmd
	relay   *exec.Cmd
	out     io.ReadCloser

	captureStderr *bytes.Buffer
	relayStderr   *bytes.Buffer

	captureWait <-chan error
	relayWait   <-chan error

	logger *log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Output is the relay's stdout. The consumer owns the stream: it keeps
// reading past Close to drain buffered segments and closes it at EOF.
func (p *pipeline) Output() io.ReadCloser {
	return p.out
}

// Close stops the capturer first so the relay sees end-of-input and flushes
// the server's final segment, then waits for the relay to exit on its own.
func (p *pipeline) Close() error {
	p.closeOnce.Do(func() {
		if p.capture.Process != nil {
			_ = p.capture.Process.Signal(os.Interrupt)
		}
		select {
		case err, ok := <-p.captureWait:
			if ok {
				p.closeErr = normalizeExitErr(err)
			}
		case <-time.After(captureStopWait):
			_ = p.capture.Process.Kill()
			err, ok := <-p.captureWait
			if ok {
				p.closeErr = normalizeExitErr(err)
			}
		}
		if p.closeErr != nil && p.captureStderr.Len() > 0 {
			p.closeErr = fmt.Errorf("%w: %s", p.closeErr, trimmed(p.captureStderr))
		}

		select {
		case err, ok := <-p.relayWait:
			// Unlike the capturer we just interrupted, the relay exiting
			// non-zero on its own means the stream to the server broke.
			if ok && err != nil {
				if p.relayStderr.Len() > 0 {
					err = fmt.Errorf("%w: %s", err, trimmed(p.relayStderr))
				}
				p.logger.Error("relay exited with an error", "error", err)
				if p.closeErr == nil {
					p.closeErr = fmt.Errorf("relay failed: %w", err)
				}
			}
		case <-time.After(relayExitWait):
			p.logger.Warn("relay did not exit after capture stopped, killing it")
			_ = p.relay.Process.Kill()
			err, ok := <-p.relayWait
			if ok && p.closeErr == nil {
				p.closeErr = normalizeExitErr(err)
			}
		}
	})
	return p.closeErr
}

// normalizeExitErr drops plain non-zero exit statuses: the capturer dying to
// our own interrupt or kill is the expected shutdown path, not a failure.
func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(buf *bytes.Buffer) string {
	return string(bytes.TrimSpace(buf.Bytes()))
}
