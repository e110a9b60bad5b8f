package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHealthEndpoint(t *testing.T) {
	s := New(0, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "debug_runtime" || resp.Version != Version {
		t.Fatalf("resp = %+v", resp)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Fatalf("timestamp %q: %v", resp.Timestamp, err)
	}
}

func TestHealthRejectsPost(t *testing.T) {
	s := New(0, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebsocketTelemetryFeed(t *testing.T) {
	var tick float32
	s := New(0, func() Telemetry {
		tick += 0.25
		return Telemetry{Time: tick, Entities: 3}
	})

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame Telemetry
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Entities != 3 || frame.Time == 0 {
		t.Fatalf("frame = %+v", frame)
	}
}

func TestWebsocketRejectsNonLoopback(t *testing.T) {
	s := New(0, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
	req.RemoteAddr = "10.1.2.3:4444"
	rec := httptest.NewRecorder()
	s.handleWS(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:5000", true},
		{"[::1]:5000", true},
		{"10.0.0.8:5000", false},
		{"example.com:80", false},
	}
	for _, tc := range cases {
		if got := isLoopbackRemote(tc.addr); got != tc.want {
			t.Errorf("isLoopbackRemote(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}
