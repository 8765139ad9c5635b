package inject

import (
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Supported text input methods.
const (
	MethodYdotool = "ydotool"
	MethodWtype   = "wtype"
	MethodXdotool = "xdotool"
)

// Typer injects text into the focused window by shelling out to the
// configured input tool. All failures are absorbed and logged: a lost
// keystroke must never take the surrounding session down with it.
type Typer struct {
	method string
	logger *log.Logger

	run func(name string, args ...string) error
}

func NewTyper(method string, logger *log.Logger) *Typer {
	return &Typer{
		method: strings.TrimSpace(strings.ToLower(method)),
		logger: logger,
		run:    runTool,
	}
}

// Type sends text to the focused window. No-op on empty input.
func (t *Typer) Type(text string) {
	if text == "" {
		return
	}

	name, args, ok := typeCommand(t.method, text)
	if !ok {
		t.logger.Warn("unknown input method, text dropped", "method", t.method)
		return
	}
	t.exec(name, args)
}

// DeleteBack sends count backspace key events. No-op when count <= 0.
func (t *Typer) DeleteBack(count int) {
	if count <= 0 {
		return
	}

	name, args, ok := deleteCommand(t.method, count)
	if !ok {
		t.logger.Warn("unknown input method, delete dropped", "method", t.method)
		return
	}
	t.exec(name, args)
}

func (t *Typer) exec(name string, args []string) {
	if err := t.run(name, args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			t.logger.Error("text input tool not found", "tool", name)
			return
		}
		t.logger.Error("text input failed", "tool", name, "error", err)
	}
}

func typeCommand(method string, text string) (string, []string, bool) {
	switch method {
	case MethodYdotool:
		return "ydotool", []string{"type", "--", text}, true
	case MethodWtype:
		return "wtype", []string{"--", text}, true
	case MethodXdotool:
		return "xdotool", []string{"type", "--clearmodifiers", "--", text}, true
	default:
		return "", nil, false
	}
}

func deleteCommand(method string, count int) (string, []string, bool) {
	switch method {
	case MethodYdotool:
		// Key code 14 is backspace; each event needs a press and a release.
		args := []string{"key"}
		for i := 0; i < count; i++ {
			args = append(args, "14:1", "14:0")
		}
		return "ydotool", args, true
	case MethodWtype:
		args := make([]string, 0, count*4)
		for i := 0; i < count; i++ {
			args = append(args, "-P", "backspace", "-p", "backspace")
		}
		return "wtype", args, true
	case MethodXdotool:
		return "xdotool", []string{"key", "--clearmodifiers", "--repeat", strconv.Itoa(count), "BackSpace"}, true
	default:
		return "", nil, false
	}
}

func runTool(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}
