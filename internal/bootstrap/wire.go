package bootstrap

import (
	"github.com/charmbracelet/log"

	"github.com/jnickg/my-whisper-dictation/internal/audio"
	"github.com/jnickg/my-whisper-dictation/internal/config"
	"github.com/jnickg/my-whisper-dictation/internal/inject"
	"github.com/jnickg/my-whisper-dictation/internal/ports"
	"github.com/jnickg/my-whisper-dictation/internal/server"
	"github.com/jnickg/my-whisper-dictation/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Server     *server.Server
	Config     config.Config
}

// Build wires all daemon dependencies from the environment.
func Build(logger *log.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	typer := inject.NewTyper(cfg.Input.Method, logger)

	pipeline := audio.NewStreamPipeline(
		cfg.Audio.CaptureCommand,
		cfg.Audio.RelayCommand,
		ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		logger,
	)

	controller := usecase.NewSessionController(pipeline, typer, logger, usecase.Config{
		StreamHost:  cfg.Stream.Host,
		StreamPort:  cfg.Stream.Port,
		InputMethod: cfg.Input.Method,
	})

	return Services{
		Controller: controller,
		Server:     server.New(cfg.Socket, controller, logger),
		Config:     cfg,
	}, nil
}
