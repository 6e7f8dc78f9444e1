// Package watchdog supervises the server process across its process
// boundary, restarting it on unexpected exit with exponential backoff.
package watchdog

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

const (
	// DefaultMinDelay is the backoff floor.
	DefaultMinDelay = time.Second
	// DefaultMaxDelay is the backoff cap.
	DefaultMaxDelay = 60 * time.Second
	// DefaultHealthyRun is how long a child must run for the next restart
	// delay to reset to the floor. It distinguishes a crash-loop from an
	// isolated fault after a healthy run.
	DefaultHealthyRun = 5 * time.Minute
)

// Backoff computes restart delays: starting at the floor, doubling on each
// consecutive exit, capped, and reset to the floor after a healthy run.
type Backoff struct {
	Min     time.Duration
	Max     time.Duration
	Healthy time.Duration

	next time.Duration
}

// NewBackoff creates a Backoff with the default parameters.
func NewBackoff() *Backoff {
	return &Backoff{Min: DefaultMinDelay, Max: DefaultMaxDelay, Healthy: DefaultHealthyRun}
}

// Delay returns the delay before the next restart, given how long the child
// just ran.
func (b *Backoff) Delay(ran time.Duration) time.Duration {
	if b.next == 0 || ran >= b.Healthy {
		b.next = b.Min
	}
	d := b.next
	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}
	return d
}

// Supervisor runs a command as a child process and restarts it whenever it
// exits. It has no visibility into in-flight requests; a restart is a hard
// stop beyond whatever shutdown grace the child's own signal handling
// provides.
type Supervisor struct {
	Command []string
	Logger  zerolog.Logger
	Backoff *Backoff
	Clock   clock.Clock
}

// NewSupervisor creates a supervisor for the given command line.
func NewSupervisor(command []string, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		Command: command,
		Logger:  logger,
		Backoff: NewBackoff(),
		Clock:   clock.New(),
	}
}

// Run starts the child and keeps restarting it until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		start := s.Clock.Now()
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ran := s.Clock.Now().Sub(start)

		delay := s.Backoff.Delay(ran)
		s.Logger.Warn().
			Err(err).
			Dur("ran", ran).
			Dur("restart_in", delay).
			Msg("child exited, scheduling restart")

		timer := s.Clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Give the child a chance at graceful shutdown when the supervisor
	// itself is stopped.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 10 * time.Second

	if err := cmd.Start(); err != nil {
		return err
	}
	s.Logger.Info().Int("pid", cmd.Process.Pid).Msg("child started")
	return cmd.Wait()
}
