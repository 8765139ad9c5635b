package usecase

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/jnickg/my-whisper-dictation/internal/domain"
	"github.com/jnickg/my-whisper-dictation/internal/ports"
)

// parseSegment turns one server line "<startMs> <endMs> <text>" into a
// Segment. Everything after the second separator is kept verbatim, so a
// segment whose text begins with a space keeps it. Lines with fewer than
// three fields or non-numeric timestamps parse to a zero Segment.
func parseSegment(line string) domain.Segment {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return domain.Segment{}
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return domain.Segment{}
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.Segment{}
	}
	return domain.Segment{StartMs: start, EndMs: end, Text: parts[2]}
}

// maxLineBytes bounds a single server line. Lines past this end the stream.
const maxLineBytes = 1 << 20

// readSegments consumes the relay's output line by line and hands each
// parsed segment to sink, in arrival order, until end-of-stream or
// cancellation. The cancellation check sits between reads: a line already
// in flight when the context is cancelled is still delivered, which is how
// the final segment flushed during shutdown reaches the transcript. The
// reader owns the stream and closes it on the way out.
func readSegments(ctx context.Context, r io.ReadCloser, sink ports.SegmentSink, done chan struct{}) {
	defer close(done)
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Read errors end the stream the same way EOF does.
		if !scanner.Scan() {
			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		seg := parseSegment(line)
		if seg.Text == "" {
			continue
		}
		sink(seg)
	}
}
