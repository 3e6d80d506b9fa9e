// Package notify sends desktop notifications about threads waiting for the
// user.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultCommand is the notification helper on freedesktop systems.
const DefaultCommand = "notify-send"

// Notifier delivers a single notification.
type Notifier interface {
	Notify(ctx context.Context, name, body string) error
}

// Message formats a notification the way the desktop helper receives it.
func Message(name, body string) string {
	return fmt.Sprintf("%s: %s", name, body)
}

// Desktop shells out to a notify-send compatible command.
type Desktop struct {
	Command string
}

// NewDesktop returns a Desktop notifier using command, or notify-send when
// command is empty.
func NewDesktop(command string) *Desktop {
	if command == "" {
		command = DefaultCommand
	}
	return &Desktop{Command: command}
}

func (d *Desktop) Notify(ctx context.Context, name, body string) error {
	cmd := exec.CommandContext(ctx, d.Command, Message(name, body))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run %s: %w: %s", d.Command, err, strings.TrimSpace(string(out)))
	}
	log.Debug().Str("name", name).Msg("notification sent")
	return nil
}

// Noop drops every notification.
type Noop struct{}

func (Noop) Notify(context.Context, string, string) error { return nil }
