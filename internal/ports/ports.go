package ports

import (
	"context"
	"io"

	"github.com/jnickg/my-whisper-dictation/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// PipelineHandle owns a live capture-and-relay subprocess pair.
type PipelineHandle interface {
	// Output is the relay's stdout: newline-delimited transcript segments.
	// The consumer owns the stream and closes it once drained; Close leaves
	// it open so buffered segments survive teardown.
	Output() io.ReadCloser

	// Close tears the pair down in order: the capturer is stopped first so
	// the relay sees its input close and flushes the final segment, then
	// the relay is given a bounded wait to exit on its own.
	Close() error
}

// PipelineOpener creates capture pipelines bound to a streaming server.
type PipelineOpener interface {
	Open(ctx context.Context, host string, port int) (PipelineHandle, error)

	// Probe checks server reachability without spawning anything.
	Probe(host string, port int) error
}

// Injector delivers text to the focused window.
type Injector interface {
	// Type sends text as keystrokes. No-op on empty input; failures are
	// logged, never returned, because a dropped keystroke must not abort
	// the session that produced it.
	Type(text string)

	// DeleteBack sends count backspace key events. No-op when count <= 0.
	DeleteBack(count int)
}

// SegmentSink receives parsed segments in arrival order.
type SegmentSink func(seg domain.Segment)

// SessionCommands is the surface the command server dispatches onto.
type SessionCommands interface {
	Start(ctx context.Context) error
	Stop() (string, error)
	Toggle(ctx context.Context) (started bool, text string, err error)
	Status() domain.Status
}
