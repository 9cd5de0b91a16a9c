package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	// maxLineSize fits a float32 ping of ~100k bins encoded as base64
	maxLineSize = 1 << 20
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// ParseRecord decodes one JSON line into a ping.
func ParseRecord(line string) (*ping.Ping, error) {
	var r ping.Record
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return nil, fmt.Errorf("decoding ping record: %w", err)
	}
	if r.Timestamp.IsZero() {
		return nil, fmt.Errorf("decoding ping record: missing timestamp")
	}
	return ping.FromRecord(r), nil
}

// WithCommandLogger sets the logger for the command source
func WithCommandLogger(logger *slog.Logger) func(*CommandSource) {
	return func(s *CommandSource) {
		s.logger = logger.With(slog.String("command", s.name))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(*CommandSource) {
	return func(s *CommandSource) {
		s.parseErrorsThreshold = threshold
	}
}

// CommandSource runs an external program that prints one JSON ping record
// per line and pushes the decoded pings to a queue.
type CommandSource struct {
	name string
	args []string

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewCommandSource creates a new CommandSource with a discard logger
func NewCommandSource(name string, args []string, options ...func(*CommandSource)) *CommandSource {
	s := CommandSource{
		name:                 name,
		args:                 args,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Start runs the command and feeds q until the command exits or ctx is
// cancelled. The returned channel is closed when the command stops and
// receives the joined errors first, if any.
func (s *CommandSource) Start(ctx context.Context, q *Queue) (<-chan error, error) {
	if !s.isRunning.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("command is already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, s.name, s.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.isRunning.Store(false)
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.isRunning.Store(false)
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		s.isRunning.Store(false)
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	stopped := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(stopped)

		s.logger.Info("reading pings...")

		// the pipes must be drained before Wait closes them
		pipes := make(chan error, 2)
		go s.handleStdout(stdout, q, pipes)
		go s.handleStderr(stderr, pipes)

		var errs []error
		for i := 0; i < cap(pipes); i++ {
			if err := <-pipes; err != nil {
				s.cancel()
				s.logger.Error(err.Error())
				errs = append(errs, err)
			}
		}
		if err := s.handleCmdWait(ctx, cmd); err != nil {
			s.logger.Error(err.Error())
			errs = append(errs, err)
		}

		s.logger.Info("command stopped")
		s.isRunning.Store(false)

		if len(errs) > 0 {
			stopped <- errors.Join(errs...)
		}
	}()

	return stopped, nil
}

// Stop kills the command and waits for its readers to finish.
func (s *CommandSource) Stop() {
	if !s.isRunning.Load() {
		return
	}

	s.cancel()
	s.wg.Wait()
}

// Running returns true while the command is running
func (s *CommandSource) Running() bool {
	return s.isRunning.Load()
}

// handleStdout reads from stdout, parses pings and pushes them to the queue.
func (s *CommandSource) handleStdout(stdout io.Reader, q *Queue, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		p, err := ParseRecord(line)
		if err != nil {
			parseErrors++
			s.logger.Warn(fmt.Sprintf("error parsing ping: %s", err.Error()))

			if parseErrors >= s.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0 // reset counter

		if err := q.Push(p); err != nil {
			done <- fmt.Errorf("pushing ping: %w", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs it.
func (s *CommandSource) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logger.Warn(fmt.Sprintf("%s >> %s", s.name, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the command to exit. Exits caused by Stop or a
// cancelled context are not errors.
func (s *CommandSource) handleCmdWait(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("command exited with error: %w", err)
	}
	return nil
}
