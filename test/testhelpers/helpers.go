// Package testhelpers provides common utilities for testing the relay and
// the room service.
//
// It contains reusable helpers shared across package-level and integration
// tests: making HTTP requests, asserting response properties, and driving
// WebSocket clients against a running relay.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaycore/relay/internal/relay"
)

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, rawURL string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, rawURL, nil)
	if err != nil {
		t.Fatalf("Failed to create %s request for %s: %v", method, rawURL, err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to execute %s request for %s: %v", method, rawURL, err)
	}
	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// DialRoom opens a WebSocket connection to a relay server for the given room
// and user. The connection is closed automatically when the test finishes.
func DialRoom(t *testing.T, serverURL, roomID, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	q := url.Values{}
	q.Set("roomId", roomID)
	if userID != "" {
		q.Set("userId", userID)
	}
	wsURL += "?" + q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadFrame reads and decodes one server frame, failing the test on timeout.
func ReadFrame(t *testing.T, conn *websocket.Conn) relay.Frame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}

	var f relay.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("Failed to decode frame %q: %v", raw, err)
	}
	return f
}

// ReadUntil reads frames until one matches the given type and text
// substring, skipping unrelated join/leave noise.
func ReadUntil(t *testing.T, conn *websocket.Conn, frameType, substr string) relay.Frame {
	t.Helper()

	for i := 0; i < 20; i++ {
		f := ReadFrame(t, conn)
		if f.Type == frameType && strings.Contains(f.Text, substr) {
			return f
		}
	}
	t.Fatalf("No %s frame containing %q received", frameType, substr)
	return relay.Frame{}
}
