package display

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/genricoloni/spotline/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const commandTimeout = 5 * time.Second

// CommandSink runs a user-supplied command for every update.
// Each "%s" in the template is replaced by the update text.
type CommandSink struct {
	logger *zap.Logger
	binary string
	args   []string
}

// NewCommandSink parses a whitespace-separated command template.
// It returns an error when the binary cannot be found in PATH.
func NewCommandSink(logger *zap.Logger, template string) (*CommandSink, error) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command template")
	}

	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("command %q not found: %w", fields[0], err)
	}

	logger.Info("Update command configured",
		zap.String("binary", fields[0]),
		zap.Strings("args", fields[1:]))

	return &CommandSink{
		logger: logger,
		binary: fields[0],
		args:   fields[1:],
	}, nil
}

// Render executes the command with the update text substituted
func (s *CommandSink) Render(ctx context.Context, update domain.DisplayUpdate) error {
	args := make([]string, len(s.args))
	for i, arg := range s.args {
		args[i] = strings.ReplaceAll(arg, "%s", update.Text)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run %s: %w (output: %s)", s.binary, err, string(output))
	}

	s.logger.Debug("Update command executed", zap.String("binary", s.binary))
	return nil
}

// MultiSink fans an update out to several sinks in order.
// A failing sink does not prevent the following ones from running.
type MultiSink []domain.Sink

// Render forwards the update to every sink and combines their errors
func (m MultiSink) Render(ctx context.Context, update domain.DisplayUpdate) error {
	var err error
	for _, sink := range m {
		err = multierr.Append(err, sink.Render(ctx, update))
	}
	return err
}
