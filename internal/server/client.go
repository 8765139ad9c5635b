package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/jnickg/my-whisper-dictation/internal/domain"
)

// DefaultClientTimeout covers the slowest command, a stop that waits for
// the pipeline to drain.
const DefaultClientTimeout = 30 * time.Second

// Send connects to the daemon's control socket, writes one command token
// and decodes the JSON response that comes back.
func Send(socketPath string, cmd string, timeout time.Duration) (domain.Response, error) {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}

	if _, err := os.Stat(socketPath); err != nil {
		return domain.Response{}, errors.New("daemon not running (socket not found)")
	}

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return domain.Response{}, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return domain.Response{}, fmt.Errorf("failed to send command: %w", err)
	}

	// The daemon writes one JSON object and closes the connection.
	data, err := io.ReadAll(conn)
	if err != nil {
		return domain.Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	var resp domain.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.Response{}, fmt.Errorf("malformed response from daemon: %w", err)
	}
	return resp, nil
}
