// Package stdio provides the child-process transport: one JSON-RPC message
// per newline-terminated line on the child's stdin and stdout. Anything the
// child prints that is not a JSON object is treated as foreign output and
// skipped, not failed on.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/toolbridge/mcpwire/logx"
	"github.com/toolbridge/mcpwire/transport"
)

const defaultKillGrace = 2 * time.Second

// Transport implements transport.Transport over a child process (or, for
// tests and pre-wired processes, over an injected reader/writer pair).
type Transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader

	logger      logx.Logger
	maxLineSize int
	killGrace   time.Duration

	writeMu sync.Mutex

	incoming chan []byte
	readDone chan struct{}
	readErr  error

	exitOnce sync.Once
	exited   chan struct{}
	exitErr  error

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger. Child stderr output and skipped lines are
// reported through it.
func WithLogger(l logx.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithMaxLineSize caps the size of a single incoming line.
func WithMaxLineSize(n int) Option {
	return func(t *Transport) { t.maxLineSize = n }
}

// NewCommand creates a transport that will launch the given command on
// Connect and speak to it over its pipes.
func NewCommand(cmd *exec.Cmd, opts ...Option) *Transport {
	t := newTransport(opts...)
	t.cmd = cmd
	return t
}

// NewPipe creates a transport over an existing reader/writer pair. Connect
// is a no-op; there is no process exit to observe.
func NewPipe(r io.Reader, w io.WriteCloser, opts ...Option) *Transport {
	t := newTransport(opts...)
	t.stdout = r
	t.stdin = w
	return t
}

func newTransport(opts ...Option) *Transport {
	t := &Transport{
		logger:      logx.Default(),
		maxLineSize: transport.DefaultMaxFrameSize,
		killGrace:   defaultKillGrace,
		incoming:    make(chan []byte, 8),
		readDone:    make(chan struct{}),
		exited:      make(chan struct{}),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect launches the child process (when one was configured) and starts
// the reader goroutine.
func (t *Transport) Connect(ctx context.Context) error {
	if t.cmd != nil {
		stdin, err := t.cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("failed to open stdin pipe: %w", err)
		}
		stdout, err := t.cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to open stdout pipe: %w", err)
		}
		stderr, err := t.cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("failed to open stderr pipe: %w", err)
		}
		if err := t.cmd.Start(); err != nil {
			return fmt.Errorf("failed to start server process: %w", err)
		}
		t.stdin = stdin
		t.stdout = stdout

		go t.relayStderr(stderr)
		go func() {
			err := t.cmd.Wait()
			t.exitOnce.Do(func() {
				t.exitErr = err
				close(t.exited)
			})
			t.logger.Debug("server process exited", "err", err)
		}()
	}

	go t.readLoop()
	return nil
}

// Send writes one framed message and returns once it is flushed to the
// pipe or the context is done. A write after the child has exited fails
// with ErrProcessExited.
func (t *Transport) Send(ctx context.Context, message []byte) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	case <-t.exited:
		return t.exitFailure()
	default:
	}
	if len(message) == 0 {
		return fmt.Errorf("cannot send empty message")
	}

	message = bytes.TrimRight(message, "\n")
	message = append(message, '\n')

	// Pipe writes can block indefinitely when the child stops reading, so
	// the write runs aside and the caller's context stays in charge. The
	// writer goroutine holds the mutex until the write finishes even if the
	// caller has already given up.
	t.writeMu.Lock()
	done := make(chan error, 1)
	go func() {
		defer t.writeMu.Unlock()
		_, err := t.stdin.Write(message)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return transport.ErrClosed
	case err := <-done:
		if err != nil {
			select {
			case <-t.exited:
				return t.exitFailure()
			default:
			}
			return fmt.Errorf("failed to write message: %w", err)
		}
		return nil
	}
}

// Receive blocks until the next JSON line arrives, the context is done, or
// the stream ends. Foreign (non-JSON) lines never surface here.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	for {
		// Drain buffered lines before reporting a dead stream.
		select {
		case line := <-t.incoming:
			return line, nil
		default:
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case line := <-t.incoming:
			return line, nil
		case <-t.readDone:
			// One more drain: a final line may have raced the shutdown.
			select {
			case line := <-t.incoming:
				return line, nil
			default:
			}
			return nil, t.streamFailure()
		}
	}
}

// Close shuts the transport down: stdin is closed so a well-behaved server
// exits on its own, and the process is killed if it lingers past the grace
// period. Close is idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if t.cmd != nil && t.cmd.Process != nil {
			select {
			case <-t.exited:
			case <-time.After(t.killGrace):
				t.logger.Warn("server process did not exit, killing", "pid", t.cmd.Process.Pid)
				_ = t.cmd.Process.Kill()
				<-t.exited
			}
		}
	})
	return nil
}

// readLoop reads stdout line by line, forwarding JSON objects and skipping
// everything else.
func (t *Transport) readLoop() {
	defer close(t.readDone)

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), t.maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// Only JSON objects are protocol traffic. Bare scalars and arrays
		// are valid JSON but cannot be JSON-RPC messages, so they are
		// foreign output too.
		if line[0] != '{' || !json.Valid(line) {
			t.logger.Debug("skipping non-JSON line from server", "line", string(line))
			continue
		}
		cp := append([]byte(nil), line...)
		select {
		case t.incoming <- cp:
		case <-t.closed:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			t.readErr = transport.ErrFrameTooLarge
		} else {
			t.readErr = err
		}
	}
}

// relayStderr streams the child's stderr to the logger so diagnostics are
// not lost and never pollute the wire.
func (t *Transport) relayStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		t.logger.Debug("server stderr", "line", scanner.Text())
	}
}

// streamFailure picks the right error for a dead stdout stream.
func (t *Transport) streamFailure() error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}
	if t.cmd != nil {
		// EOF on stdout usually means the process died; give Wait a
		// moment to record the exit status.
		select {
		case <-t.exited:
			return t.exitFailure()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if t.readErr != nil {
		return fmt.Errorf("failed to read from server: %w", t.readErr)
	}
	return transport.ErrClosed
}

func (t *Transport) exitFailure() error {
	if t.exitErr != nil {
		return fmt.Errorf("%w: %v", transport.ErrProcessExited, t.exitErr)
	}
	return transport.ErrProcessExited
}

var _ transport.Transport = (*Transport)(nil)
