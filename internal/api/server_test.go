package api

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nnarain/backlight/internal/backlight"
	"github.com/nnarain/backlight/internal/events"
	"github.com/nnarain/backlight/internal/strip"
)

func newTestServer(t *testing.T, withAuth bool) (*Server, *backlight.Controller, *strip.Memory, *events.Bus) {
	t.Helper()

	mem := strip.NewMemory(8)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := backlight.New(mem, logger)
	bus := events.New()

	ctrl.SetStateCallback(func(s backlight.State) {
		bus.Publish(events.StateChangedEvent{
			Payload:   s.Payload(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	})
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	opts := &Options{
		Controller: ctrl,
		EventBus:   bus,
	}
	if withAuth {
		opts.AuthUsername = "test"
		opts.AuthPassword = "test"
	}
	return NewServer(opts), ctrl, mem, bus
}

func basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("test:test"))
}

func doRequest(t *testing.T, server *Server, method, path, auth string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointNoAuth(t *testing.T) {
	server, _, _, _ := newTestServer(t, true)

	rec := doRequest(t, server, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/health = %d, want 200", rec.Code)
	}
}

func TestVersionEndpointNoAuth(t *testing.T) {
	server, _, _, _ := newTestServer(t, true)

	rec := doRequest(t, server, http.MethodGet, "/api/version", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/version = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("version response not JSON: %v", err)
	}
	if _, ok := body["version"]; !ok {
		t.Error("version response missing version field")
	}
}

func TestBacklightRequiresAuth(t *testing.T) {
	server, _, _, _ := newTestServer(t, true)

	rec := doRequest(t, server, http.MethodGet, "/api/backlight", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("GET /api/backlight without auth = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Basic") {
		t.Errorf("WWW-Authenticate = %q, want Basic challenge", got)
	}
}

func TestGetBacklightState(t *testing.T) {
	server, _, _, _ := newTestServer(t, true)

	rec := doRequest(t, server, http.MethodGet, "/api/backlight", basicAuth(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/backlight = %d, want 200", rec.Code)
	}

	var payload backlight.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("state response not JSON: %v", err)
	}
	if payload.State != "OFF" {
		t.Errorf("initial state = %q, want OFF", payload.State)
	}
	if payload.Effect != "" {
		t.Errorf("effect = %q while off, want omitted", payload.Effect)
	}
}

func TestSetBacklight(t *testing.T) {
	server, ctrl, mem, _ := newTestServer(t, true)

	body := []byte(`{"state":"ON","effect":"solid","color":{"r":255,"g":0,"b":0}}`)
	rec := doRequest(t, server, http.MethodPut, "/api/backlight", basicAuth(), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/backlight = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(time.Second)
	want := strip.Color{R: 255}
	for time.Now().Before(deadline) {
		if ctrl.State().Power == backlight.PowerOn && mem.AllEqual(want) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("strip never settled on solid red after PUT")
}

func TestSetBacklightInvalidEffect(t *testing.T) {
	server, ctrl, _, bus := newTestServer(t, true)

	rejected := make(chan events.CommandRejectedEvent, 1)
	unsub := bus.Subscribe(func(e events.CommandRejectedEvent) {
		rejected <- e
	})
	defer unsub()

	body := []byte(`{"state":"ON","effect":"strobe"}`)
	rec := doRequest(t, server, http.MethodPut, "/api/backlight", basicAuth(), body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("PUT with unknown effect = %d, want 422", rec.Code)
	}

	select {
	case e := <-rejected:
		if e.Source != "rest" {
			t.Errorf("rejection source = %q, want rest", e.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("no CommandRejectedEvent published")
	}

	if got := ctrl.State().Power; got != backlight.PowerOff {
		t.Errorf("power = %v after rejected command, want OFF", got)
	}
}

func TestClearBacklight(t *testing.T) {
	server, _, mem, _ := newTestServer(t, true)

	rec := doRequest(t, server, http.MethodPost, "/api/backlight/clear", basicAuth(), []byte(`{"fade_ms":0}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/backlight/clear = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if mem.ShowCount() > 0 && mem.AllEqual(strip.Black) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("clear never flushed black to the strip")
}

func TestSSEStreamsStateChanges(t *testing.T) {
	server, ctrl, _, _ := newTestServer(t, false)

	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("SSE connect = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// Trigger a transition after the initial snapshot.
	if err := ctrl.TurnOn(); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}

	deadline := time.After(3 * time.Second)
	sawOn := false
	for !sawOn {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("SSE stream closed before ON transition")
			}
			if strings.HasPrefix(line, "data:") && strings.Contains(line, `"state":"ON"`) {
				sawOn = true
			}
		case <-deadline:
			t.Fatal("timeout waiting for state-changed SSE event")
		}
	}
}
