package usecase

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/jnickg/my-whisper-dictation/internal/ports"
)

// linePipe feeds the stream reader one line at a time with real blocking
// semantics, like a relay's stdout.
type linePipe struct {
	w *io.PipeWriter
}

func newBlockingLinePipe() (io.ReadCloser, *linePipe) {
	r, w := io.Pipe()
	return r, &linePipe{w: w}
}

func (l *linePipe) writeLine(s string) {
	_, _ = l.w.Write([]byte(s + "\n"))
}

func (l *linePipe) close() {
	_ = l.w.Close()
}

// fakePipeline is a PipelineHandle whose output is test-controlled.
type fakePipeline struct {
	out   io.ReadCloser
	lines *linePipe

	mu         sync.Mutex
	closeCalls int
	closeErr   error

	// When true, Close leaves the output open so the reader never sees
	// EOF. Exercises the abandon-on-timeout path.
	leaveOutputOpen bool
}

func newFakePipeline() *fakePipeline {
	out, lines := newBlockingLinePipe()
	return &fakePipeline{out: out, lines: lines}
}

func (p *fakePipeline) Output() io.ReadCloser { return p.out }

func (p *fakePipeline) Close() error {
	p.mu.Lock()
	p.closeCalls++
	p.mu.Unlock()
	if !p.leaveOutputOpen {
		p.lines.close()
	}
	return p.closeErr
}

func (p *fakePipeline) closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// fakeOpener hands out prepared pipelines.
type fakeOpener struct {
	mu        sync.Mutex
	pipelines []*fakePipeline
	openErr   error
	probeErr  error
	opens     int
}

func (o *fakeOpener) Open(_ context.Context, _ string, _ int) (ports.PipelineHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	if len(o.pipelines) == 0 {
		return nil, errors.New("fakeOpener: no pipelines left")
	}
	p := o.pipelines[0]
	o.pipelines = o.pipelines[1:]
	o.opens++
	return p, nil
}

func (o *fakeOpener) Probe(_ string, _ int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.probeErr
}

// fakeInjector records typed text in call order.
type fakeInjector struct {
	mu      sync.Mutex
	typed   []string
	deletes []int
	typedC  chan string
}

func newFakeInjector() *fakeInjector {
	return &fakeInjector{typedC: make(chan string, 16)}
}

func (f *fakeInjector) Type(text string) {
	f.mu.Lock()
	f.typed = append(f.typed, text)
	f.mu.Unlock()
	f.typedC <- text
}

func (f *fakeInjector) DeleteBack(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, count)
}

func (f *fakeInjector) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}
