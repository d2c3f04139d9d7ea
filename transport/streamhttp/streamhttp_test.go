package streamhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/toolbridge/mcpwire/logx"
	"github.com/toolbridge/mcpwire/transport"
)

func newTestTransport(t *testing.T, handler http.Handler, opts ...Option) *Transport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithLogger(logx.Discard())}, opts...)
	tr := New(srv.URL, opts...)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSendReceiveSSEBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set(SessionHeader, "sess-123")
		fmt.Fprint(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n\n")
	})
	tr := newTestTransport(t, handler)

	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg, err := tr.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if want := `{"jsonrpc":"2.0","id":1,"result":{}}`; string(msg) != want {
		t.Errorf("Receive = %q, want %q", msg, want)
	}
	if tr.Token() != "sess-123" {
		t.Errorf("Token = %q, want sess-123", tr.Token())
	}
}

func TestSessionTokenCapturedCaseInsensitively(t *testing.T) {
	var sawToken atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := r.Header.Get(SessionHeader); token != "" {
			sawToken.Store(token)
		}
		// Write the header in lowercase on the wire; the client must still
		// pick it up.
		w.Header()["mcp-session-id"] = []string{"lower-999"}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
	})
	tr := newTestTransport(t, handler)

	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	if tr.Token() != "lower-999" {
		t.Fatalf("Token = %q, want lower-999", tr.Token())
	}

	// The captured token rides on the next request, notification included.
	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); err != nil {
		t.Fatalf("second Send failed: %v", err)
	}
	if got, _ := sawToken.Load().(string); got != "lower-999" {
		t.Errorf("server saw token %q, want lower-999", got)
	}
}

func TestBareJSONBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":2,"result":{"tools":[]}}`)
	})
	tr := newTestTransport(t, handler)

	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg, err := tr.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if want := `{"jsonrpc":"2.0","id":2,"result":{"tools":[]}}`; string(msg) != want {
		t.Errorf("Receive = %q, want %q", msg, want)
	}
}

func TestSSEBodySplitAcrossChunks(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer is not a flusher")
			return
		}
		for _, part := range []string{
			"data: {\"jsonrpc\":\"2.0\",",
			"\"id\":3,\"result\"",
			":{\"ok\":true}}\n\n",
		} {
			fmt.Fprint(w, part)
			flusher.Flush()
			time.Sleep(20 * time.Millisecond)
		}
	})
	tr := newTestTransport(t, handler)

	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg, err := tr.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if want := `{"jsonrpc":"2.0","id":3,"result":{"ok":true}}`; string(msg) != want {
		t.Errorf("Receive = %q, want %q", msg, want)
	}
}

func TestNotificationAcknowledgedWithoutBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	tr := newTestTransport(t, handler)

	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := tr.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected empty queue after notification, got %v", err)
	}
}

func TestServerErrorStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	})
	tr := newTestTransport(t, handler)

	err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":4,"method":"ping"}`))
	if err == nil {
		t.Fatal("expected error for HTTP 404")
	}
}

func TestResponseSurvivesOpenStream(t *testing.T) {
	// Streamable-HTTP servers routinely answer and then keep the stream
	// open to push later notifications. The captured frame must come back
	// as the response, not as a stall.
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"id\":6,\"result\":{\"ok\":true}}\n\n")
		w.(http.Flusher).Flush()
		<-release // hold the stream open well past the idle window
	})
	tr := newTestTransport(t, handler, WithIdleTimeout(100*time.Millisecond))
	defer close(release)

	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":6,"method":"tools/call"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg, err := tr.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if want := `{"jsonrpc":"2.0","id":6,"result":{"ok":true}}`; string(msg) != want {
		t.Errorf("Receive = %q, want %q", msg, want)
	}
}

func TestIdleStreamTimesOut(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release // stall without closing
	})
	tr := newTestTransport(t, handler, WithIdleTimeout(50*time.Millisecond))
	defer close(release)

	err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":5,"method":"tools/list"}`))
	if !errors.Is(err, transport.ErrIdleTimeout) {
		t.Fatalf("expected ErrIdleTimeout, got %v", err)
	}
}

func TestCloseTerminatesSession(t *testing.T) {
	var sawDelete atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			sawDelete.Store(r.Header.Get(SessionHeader))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set(SessionHeader, "sess-del")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
	})
	tr := newTestTransport(t, handler)

	if err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got, _ := sawDelete.Load().(string); got != "sess-del" {
		t.Errorf("DELETE carried token %q, want sess-del", got)
	}

	// Closed transport fails fast.
	err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":9,"method":"ping"}`))
	if !errors.Is(err, transport.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestConnectRejectsBadEndpoint(t *testing.T) {
	tr := New("ftp://example.com/mcp", WithLogger(logx.Discard()))
	if err := tr.Connect(context.Background()); err == nil {
		t.Fatal("expected error for non-http endpoint")
	}
}
