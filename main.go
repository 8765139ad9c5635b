package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jnickg/my-whisper-dictation/internal/bootstrap"
	"github.com/jnickg/my-whisper-dictation/internal/config"
	"github.com/jnickg/my-whisper-dictation/internal/domain"
	"github.com/jnickg/my-whisper-dictation/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "dictate",
	Short: "Streaming whisper dictation for the focused window",
	Long: `dictate runs a background daemon that streams microphone audio to a
whisper server and types the recognized text into the focused window.
Without a subcommand it toggles recording, which is what you want on a
hotkey.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd.OutOrStdout(), "toggle")
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the dictation daemon",
	RunE:  runDaemon,
}

func clientCmd(token string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   token,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.OutOrStdout(), token)
		},
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(clientCmd("start", "Start streaming dictation"))
	rootCmd.AddCommand(clientCmd("stop", "Stop streaming and print the transcript"))
	rootCmd.AddCommand(clientCmd("toggle", "Toggle streaming dictation"))
	rootCmd.AddCommand(clientCmd("status", "Show daemon status"))
	rootCmd.AddCommand(clientCmd("ping", "Check that the daemon is alive"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "dictate",
	})

	services, err := bootstrap.Build(logger)
	if err != nil {
		return err
	}

	srv := services.Server
	if err := srv.Listen(); err != nil {
		// Bind failure is fatal; nothing to clean up yet.
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-serveErr:
	}

	stopDaemon(srv, services.Controller, logger)
	return runErr
}

type shutdowner interface {
	Shutdown()
}

// stopDaemon removes the control endpoint before tearing down the session.
// Close drains in-flight commands, so once it returns no late start can slip
// in behind the teardown and orphan a fresh pipeline.
func stopDaemon(srv *server.Server, session shutdowner, logger *log.Logger) {
	if closeErr := srv.Close(); closeErr != nil {
		logger.Error("control socket cleanup failed", "error", closeErr)
	}
	session.Shutdown()
}

func runClient(out io.Writer, token string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	resp, err := server.Send(cfg.Socket, token, server.DefaultClientTimeout)
	if err != nil {
		return err
	}
	return renderResponse(out, resp)
}

// renderResponse prints a daemon response for a human and turns error
// responses into a non-zero exit.
func renderResponse(w io.Writer, resp domain.Response) error {
	if resp.Status != domain.StatusOK {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return errors.New(msg)
	}

	if resp.Streaming != nil {
		fmt.Fprintf(w, "streaming: %v\n", *resp.Streaming)
		fmt.Fprintf(w, "server: %s:%d (available: %v)\n", resp.StreamHost, resp.StreamPort, boolValue(resp.ServerAvailable))
		fmt.Fprintf(w, "input method: %s\n", resp.InputMethod)
		if resp.Text != nil && *resp.Text != "" {
			fmt.Fprintf(w, "transcript so far: %s\n", *resp.Text)
		}
		return nil
	}

	msg := resp.Message
	if msg == "" {
		msg = "OK"
	}
	if resp.Text != nil && *resp.Text != "" {
		fmt.Fprintf(w, "%s: %s\n", msg, *resp.Text)
	} else {
		fmt.Fprintln(w, msg)
	}
	return nil
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
