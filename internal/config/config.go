package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// All settings come from JNICKG_DICTATE_* environment variables, matching
// how the daemon is configured from a systemd unit.
const envPrefix = "JNICKG_DICTATE"

// Config stores the daemon's runtime configuration.
type Config struct {
	Socket string
	Stream StreamConfig
	Input  InputConfig
	Audio  AudioConfig
}

type StreamConfig struct {
	Host string
	Port int
}

type InputConfig struct {
	Method string
}

type AudioConfig struct {
	CaptureCommand string
	RelayCommand   string
	InputFormat    string
	InputDevice    string
	SampleRate     int
	Channels       int
}

// Load resolves configuration from the environment with sensible defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("socket", "/tmp/jnickg-dictate.sock")
	v.SetDefault("stream_host", "127.0.0.1")
	v.SetDefault("stream_port", 43007)
	v.SetDefault("input_method", "ydotool")
	v.SetDefault("capture_command", "ffmpeg")
	v.SetDefault("relay_command", "nc")
	v.SetDefault("audio_input_format", "pulse")
	v.SetDefault("audio_input_device", "default")
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("channels", 1)

	cfg := Config{
		Socket: strings.TrimSpace(v.GetString("socket")),
		Stream: StreamConfig{
			Host: strings.TrimSpace(v.GetString("stream_host")),
			Port: v.GetInt("stream_port"),
		},
		Input: InputConfig{
			Method: strings.TrimSpace(strings.ToLower(v.GetString("input_method"))),
		},
		Audio: AudioConfig{
			CaptureCommand: strings.TrimSpace(v.GetString("capture_command")),
			RelayCommand:   strings.TrimSpace(v.GetString("relay_command")),
			InputFormat:    v.GetString("audio_input_format"),
			InputDevice:    v.GetString("audio_input_device"),
			SampleRate:     v.GetInt("sample_rate"),
			Channels:       v.GetInt("channels"),
		},
	}

	if cfg.Socket == "" {
		return Config{}, fmt.Errorf("%s_SOCKET must not be empty", envPrefix)
	}
	if cfg.Stream.Host == "" {
		return Config{}, fmt.Errorf("%s_STREAM_HOST must not be empty", envPrefix)
	}
	if cfg.Stream.Port <= 0 || cfg.Stream.Port > 65535 {
		return Config{}, fmt.Errorf("%s_STREAM_PORT is not a valid port", envPrefix)
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}

	return cfg, nil
}
