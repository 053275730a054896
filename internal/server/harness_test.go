package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/backend"
	"github.com/sirosfoundation/go-chat-backend/internal/server"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// TestHarness runs a complete server on a loopback port and offers helpers
// for making API requests against it.
type TestHarness struct {
	T      *testing.T
	Config *config.Config
	App    *server.App
	Server *server.Server

	// BaseURL is the URL of the running server
	BaseURL string

	cancel context.CancelFunc
	done   chan error
}

// TestHarnessOption configures the test harness
type TestHarnessOption func(*TestHarness)

// WithConfig sets a custom config for the test harness
func WithConfig(cfg *config.Config) TestHarnessOption {
	return func(h *TestHarness) {
		h.Config = cfg
	}
}

// NewTestHarness starts a server and waits until it reports DatabaseReady
func NewTestHarness(t *testing.T, opts ...TestHarnessOption) *TestHarness {
	t.Helper()

	h := &TestHarness{T: t, done: make(chan error, 1)}
	for _, opt := range opts {
		opt(h)
	}

	if h.Config == nil {
		h.Config = config.Default()
		h.Config.Server.Host = "127.0.0.1"
		h.Config.Server.Port = 0
		h.Config.Storage.Type = "memory"
		h.Config.Storage.MongoDB.URI = "mongodb://localhost:27017/chat"
		h.Config.JWT.Secret = "test-secret-key-for-integration-tests"
	}

	logger := zap.NewNop()
	frontend := fstest.MapFS{
		"index.html":    {Data: []byte("<!doctype html><title>chat</title>")},
		"assets/app.js": {Data: []byte("console.log('app')")},
	}

	h.App = server.NewApp(h.Config, backend.NewMemory(), logger, server.WithFrontend(frontend))
	h.Server = server.New(h.Config, h.App, logger, server.WithShutdownTimeout(2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.Server.Run(ctx) }()

	select {
	case <-h.Server.Listening():
	case err := <-h.done:
		t.Fatalf("Server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not bind")
	}
	h.BaseURL = fmt.Sprintf("http://%s", h.Server.Addr().String())

	deadline := time.Now().Add(5 * time.Second)
	for h.Server.State() != server.DatabaseReady {
		if time.Now().After(deadline) {
			t.Fatalf("Database never became ready, state %s", h.Server.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Cleanup(h.Stop)
	return h
}

// Stop cancels the server and waits for it to exit
func (h *TestHarness) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	select {
	case err := <-h.done:
		if err != nil {
			h.T.Errorf("Server exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		h.T.Error("Server did not stop")
	}
}

// NewClient returns a session: an HTTP client with its own cookie jar
func (h *TestHarness) NewClient() *Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		h.T.Fatalf("Failed to create cookie jar: %v", err)
	}
	return &Client{harness: h, http: &http.Client{Jar: jar}}
}

// Client keeps the session cookie between requests
type Client struct {
	harness *TestHarness
	http    *http.Client
}

// Request makes an HTTP request to the test server
func (c *Client) Request(method, path string, body interface{}) *Response {
	c.harness.T.Helper()

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			c.harness.T.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.harness.BaseURL+path, bodyReader)
	if err != nil {
		c.harness.T.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.Do(req)
}

// Do executes an HTTP request and returns a Response wrapper
func (c *Client) Do(req *http.Request) *Response {
	c.harness.T.Helper()

	resp, err := c.http.Do(req)
	if err != nil {
		c.harness.T.Fatalf("Request failed: %v", err)
	}
	return &Response{T: c.harness.T, Response: resp}
}

// GET makes a GET request
func (c *Client) GET(path string) *Response {
	return c.Request(http.MethodGet, path, nil)
}

// POST makes a POST request with a JSON body
func (c *Client) POST(path string, body interface{}) *Response {
	return c.Request(http.MethodPost, path, body)
}

// PUT makes a PUT request with a JSON body
func (c *Client) PUT(path string, body interface{}) *Response {
	return c.Request(http.MethodPut, path, body)
}

// Socket opens the realtime connection with the client's session cookie
func (c *Client) Socket() *websocket.Conn {
	c.harness.T.Helper()

	header := http.Header{}
	req, _ := http.NewRequest(http.MethodGet, c.harness.BaseURL, nil)
	for _, ck := range c.http.Jar.Cookies(req.URL) {
		req.AddCookie(ck)
	}
	if cookie := req.Header.Get("Cookie"); cookie != "" {
		header.Set("Cookie", cookie)
	}

	url := "ws" + strings.TrimPrefix(c.harness.BaseURL, "http") + c.harness.Config.Realtime.Path
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.harness.T.Fatalf("Failed to open socket (status %d): %v", status, err)
	}
	c.harness.T.Cleanup(func() { conn.Close() })
	return conn
}

// Event is a decoded realtime frame
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NextEvent reads frames until one named event arrives
func NextEvent(t *testing.T, conn *websocket.Conn, event string) Event {
	t.Helper()
	for {
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("Failed to set deadline: %v", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Waiting for %q: %v", event, err)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("Malformed frame %s: %v", data, err)
		}
		if ev.Event == event {
			return ev
		}
	}
}

// Response wraps an HTTP response with assertion helpers
type Response struct {
	T        *testing.T
	Response *http.Response
	body     []byte
	bodyRead bool
}

// Body returns the response body as bytes
func (r *Response) Body() []byte {
	r.T.Helper()
	if !r.bodyRead {
		var err error
		r.body, err = io.ReadAll(r.Response.Body)
		if err != nil {
			r.T.Fatalf("Failed to read response body: %v", err)
		}
		r.Response.Body.Close()
		r.bodyRead = true
	}
	return r.body
}

// JSON unmarshals the response body into the given target
func (r *Response) JSON(target interface{}) *Response {
	r.T.Helper()
	if err := json.Unmarshal(r.Body(), target); err != nil {
		r.T.Fatalf("Failed to unmarshal response: %v\nBody: %s", err, string(r.Body()))
	}
	return r
}

// Status asserts the response status code
func (r *Response) Status(expected int) *Response {
	r.T.Helper()
	if r.Response.StatusCode != expected {
		r.T.Errorf("Expected status %d, got %d\nBody: %s", expected, r.Response.StatusCode, string(r.Body()))
	}
	return r
}

// Header returns the value of a response header
func (r *Response) Header(name string) string {
	return r.Response.Header.Get(name)
}

// BodyContains asserts the response body contains a substring
func (r *Response) BodyContains(substr string) *Response {
	r.T.Helper()
	if !bytes.Contains(r.Body(), []byte(substr)) {
		r.T.Errorf("Expected body to contain %q\nBody: %s", substr, string(r.Body()))
	}
	return r
}

func jsonReader(s string) io.Reader {
	return strings.NewReader(s)
}
