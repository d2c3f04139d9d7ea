package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// DefaultMaxFrameSize bounds how much of a response stream is buffered
	// before the transport gives up.
	DefaultMaxFrameSize = 4 << 20 // 4 MiB

	// DefaultIdleTimeout bounds how long a response stream may stall
	// between chunks.
	DefaultIdleTimeout = 10 * time.Second
)

// ErrMalformedFrame is returned when a response body contains no decodable
// JSON payload under any strategy.
var ErrMalformedFrame = errors.New("malformed frame")

// A decodeStrategy attempts to extract JSON-RPC payloads from a response
// body. It reports false when the body does not match its framing, so the
// next strategy gets a chance.
type decodeStrategy func(body []byte) ([][]byte, bool)

// bodyStrategies is the ordered decode chain for HTTP response bodies:
// SSE data-line framing first, then the whole body as bare JSON, then a
// last-resort scan for a balanced JSON object.
var bodyStrategies = []decodeStrategy{
	decodeEventStream,
	decodeBareJSON,
	decodeBraceScan,
}

// DecodeBody extracts the JSON-RPC payloads from an HTTP response body,
// trying each framing strategy in order.
func DecodeBody(body []byte) ([][]byte, error) {
	for _, strategy := range bodyStrategies {
		if payloads, ok := strategy(body); ok {
			return payloads, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON payload in %d-byte body", ErrMalformedFrame, len(body))
}

// decodeEventStream parses text/event-stream framing: each event's payload
// is the concatenation of its "data:" lines, and a blank line ends the
// event. Non-data fields (event:, id:, retry:, comments) are skipped.
func decodeEventStream(body []byte) ([][]byte, bool) {
	var payloads [][]byte
	var data []byte
	sawData := false

	flush := func() {
		if len(data) > 0 {
			payloads = append(payloads, data)
			data = nil
		}
	}

	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			flush()
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		sawData = true
		value := bytes.TrimPrefix(line, []byte("data:"))
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		if len(data) > 0 {
			data = append(data, '\n')
		}
		data = append(data, value...)
	}
	flush()

	return payloads, sawData && len(payloads) > 0
}

// decodeBareJSON accepts a body that is one JSON value, possibly padded
// with whitespace.
func decodeBareJSON(body []byte) ([][]byte, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, false
	}
	return [][]byte{trimmed}, true
}

// decodeBraceScan hunts for the first balanced top-level JSON object in a
// body that mixes JSON with other output. Quoted strings and escapes are
// honored so braces inside values do not confuse the depth count.
func decodeBraceScan(body []byte) ([][]byte, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, c := range body {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				candidate := body[start : i+1]
				if json.Valid(candidate) {
					return [][]byte{candidate}, true
				}
				start = -1
			}
		}
	}
	return nil, false
}

// frameComplete reports whether buf already decodes into well-formed JSON
// payloads under some framing strategy. A trailing data: line cut off
// mid-payload does not count.
func frameComplete(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	payloads, err := DecodeBody(buf)
	if err != nil {
		return false
	}
	for _, p := range payloads {
		if !json.Valid(p) {
			return false
		}
	}
	return true
}

// ReadAllIdle drains r into memory. A stall longer than idle ends the
// read: if the bytes captured so far already decode under some framing
// strategy the frame is complete and returned as a successful read (a
// server may answer and then hold the stream open), otherwise the stall is
// ErrIdleTimeout. ErrFrameTooLarge is returned once the accumulated body
// exceeds limit. The read runs in a goroutine so a stalled reader cannot
// block past the deadline; callers must close r when done to release it.
func ReadAllIdle(ctx context.Context, r io.Reader, idle time.Duration, limit int) ([]byte, error) {
	type chunk struct {
		data []byte
		err  error
	}

	done := make(chan struct{})
	defer close(done)

	chunks := make(chan chunk)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			var cp []byte
			if n > 0 {
				cp = append([]byte(nil), buf[:n]...)
			}
			select {
			case chunks <- chunk{data: cp, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(idle)
	defer timer.Stop()

	var out []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			if frameComplete(out) {
				return out, nil
			}
			return nil, ErrIdleTimeout
		case c := <-chunks:
			out = append(out, c.data...)
			if len(out) > limit {
				return nil, ErrFrameTooLarge
			}
			if c.err != nil {
				if c.err == io.EOF {
					return out, nil
				}
				return nil, c.err
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idle)
		}
	}
}
