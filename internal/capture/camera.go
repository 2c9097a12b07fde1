// Package capture takes pictures by running an external camera command
// (libcamera-still, raspistill, fswebcam, ...).
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PathPlaceholder is replaced with the output file in every argument.
const PathPlaceholder = "{path}"

type Config struct {
	Command []string
	// Settle is waited before the command starts so the payload stops
	// swinging and the sensor adjusts exposure.
	Settle  time.Duration
	Timeout time.Duration
	// StderrTailLines bounds the command output kept for error messages.
	StderrTailLines int
}

type Camera struct {
	cfg Config
	mu  sync.Mutex
}

func New(cfg Config) (*Camera, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, fmt.Errorf("capture: command is required")
	}
	found := false
	for _, a := range cfg.Command {
		if strings.Contains(a, PathPlaceholder) {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("capture: command has no %s placeholder", PathPlaceholder)
	}
	if cfg.StderrTailLines == 0 {
		cfg.StderrTailLines = 5
	}
	return &Camera{cfg: cfg}, nil
}

// Args returns command with the placeholder substituted.
func Args(command []string, path string) []string {
	out := make([]string, len(command))
	for i, a := range command {
		out[i] = strings.ReplaceAll(a, PathPlaceholder, path)
	}
	return out
}

// Capture writes one picture to path. Captures are serialised; the camera
// cannot be opened twice.
func (c *Camera) Capture(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("capture: mkdir: %w", err)
	}
	if c.cfg.Settle > 0 {
		t := time.NewTimer(c.cfg.Settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	runCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	args := Args(c.cfg.Command, path)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("capture: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("capture: start %s: %w", args[0], err)
	}
	tail := newTailBuffer(c.cfg.StderrTailLines, 0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tail.readFrom(stderrPipe)
	}()
	<-done
	waitErr := cmd.Wait()

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("capture: %s timed out after %s", args[0], c.cfg.Timeout)
		}
		if msg := tail.String(); msg != "" {
			return fmt.Errorf("capture: %s: %w (%s)", args[0], waitErr, msg)
		}
		return fmt.Errorf("capture: %s: %w", args[0], waitErr)
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("capture: %s exited cleanly but wrote no image: %w", args[0], err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("capture: %s wrote an empty file", args[0])
	}
	return nil
}
