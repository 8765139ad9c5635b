package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jnickg/my-whisper-dictation/internal/domain"
	"github.com/jnickg/my-whisper-dictation/internal/ports"
	"github.com/jnickg/my-whisper-dictation/internal/usecase"
)

// A command is a single bare token with no framing; anything past this is
// not a command we know.
const maxCommandBytes = 1024

// Server accepts control connections on a unix socket and dispatches each
// command onto the session controller. It holds no session state of its
// own: correctness under concurrent connections is the controller's job.
type Server struct {
	socketPath string
	session    ports.SessionCommands
	logger     *log.Logger

	ln net.Listener
	wg sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func New(socketPath string, session ports.SessionCommands, logger *log.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		session:    session,
		logger:     logger,
	}
}

// Listen binds the control socket, replacing a stale one left behind by an
// unclean shutdown, and restricts it to the owning user.
func (s *Server) Listen() error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket %s: %w", s.socketPath, err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to bind control socket %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	s.ln = ln
	return nil
}

// Serve accepts connections until Close. Each connection is handled on its
// own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("server is not listening")
	}
	s.logger.Info("daemon listening", "socket", s.socketPath)

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Close stops accepting, waits for in-flight commands and removes the
// socket file. Idempotent.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.ln != nil {
			s.closeErr = s.ln.Close()
		}
		s.wg.Wait()
		if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			if s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, maxCommandBytes)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			s.logger.Error("client read failed", "error", err)
		}
		return
	}

	cmd := strings.ToLower(strings.TrimSpace(string(buf[:n])))
	resp := s.dispatch(ctx, cmd)

	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		return
	}
	if _, err := conn.Write(payload); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, cmd string) domain.Response {
	switch cmd {
	case "start":
		if err := s.session.Start(ctx); err != nil {
			return domain.ErrorResponse(err.Error())
		}
		return domain.OKResponse("Recording started")

	case "stop":
		text, err := s.session.Stop()
		return stopResponse(text, err)

	case "toggle":
		started, text, err := s.session.Toggle(ctx)
		if started {
			if err != nil {
				return domain.ErrorResponse(err.Error())
			}
			return domain.OKResponse("Recording started")
		}
		return stopResponse(text, err)

	case "status":
		st := s.session.Status()
		resp := domain.Response{
			Status:          domain.StatusOK,
			Streaming:       &st.Streaming,
			ServerAvailable: &st.ServerAvailable,
			StreamHost:      st.StreamHost,
			StreamPort:      st.StreamPort,
			InputMethod:     st.InputMethod,
		}
		if st.Streaming {
			resp.Text = &st.Text
		}
		return resp

	case "ping":
		return domain.OKResponse("pong")

	default:
		return domain.ErrorResponse("Unknown command: " + cmd)
	}
}

func stopResponse(text string, err error) domain.Response {
	if err != nil {
		if errors.Is(err, usecase.ErrNotStreaming) {
			return domain.ErrorResponse(err.Error())
		}
		// The session was still torn down; hand over whatever was
		// transcribed before the failure.
		resp := domain.ErrorResponse("stopped with errors: " + err.Error())
		resp.Text = &text
		return resp
	}

	resp := domain.Response{Status: domain.StatusOK, Message: "Transcribed", Text: &text}
	if text == "" {
		resp.Message = "No speech detected"
	}
	return resp
}
