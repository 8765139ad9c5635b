package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Socket != "/tmp/jnickg-dictate.sock" {
		t.Fatalf("unexpected socket: %q", cfg.Socket)
	}
	if cfg.Stream.Host != "127.0.0.1" || cfg.Stream.Port != 43007 {
		t.Fatalf("unexpected stream defaults: %+v", cfg.Stream)
	}
	if cfg.Input.Method != "ydotool" {
		t.Fatalf("unexpected input method: %q", cfg.Input.Method)
	}
	if cfg.Audio.CaptureCommand != "ffmpeg" || cfg.Audio.RelayCommand != "nc" {
		t.Fatalf("unexpected pipeline commands: %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
}

func TestLoadHonorsEnvironment(t *testing.T) {
	t.Setenv("JNICKG_DICTATE_SOCKET", "/run/user/1000/dictate.sock")
	t.Setenv("JNICKG_DICTATE_STREAM_HOST", "stt.local")
	t.Setenv("JNICKG_DICTATE_STREAM_PORT", "9000")
	t.Setenv("JNICKG_DICTATE_INPUT_METHOD", "WType")
	t.Setenv("JNICKG_DICTATE_SAMPLE_RATE", "48000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Socket != "/run/user/1000/dictate.sock" {
		t.Fatalf("socket override ignored: %q", cfg.Socket)
	}
	if cfg.Stream.Host != "stt.local" || cfg.Stream.Port != 9000 {
		t.Fatalf("stream override ignored: %+v", cfg.Stream)
	}
	if cfg.Input.Method != "wtype" {
		t.Fatalf("input method not normalized: %q", cfg.Input.Method)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Fatalf("sample rate override ignored: %d", cfg.Audio.SampleRate)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("JNICKG_DICTATE_STREAM_PORT", "not-a-port")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "STREAM_PORT") {
		t.Fatalf("expected port error, got %v", err)
	}
}

func TestLoadRejectsEmptySocket(t *testing.T) {
	t.Setenv("JNICKG_DICTATE_SOCKET", "   ")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SOCKET") {
		t.Fatalf("expected socket error, got %v", err)
	}
}

func TestLoadClampsBadAudioValues(t *testing.T) {
	t.Setenv("JNICKG_DICTATE_CHANNELS", "-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("bad channel count not clamped: %d", cfg.Audio.Channels)
	}
}
