// Package wstest provides a recording websocket server for tests.
package wstest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Server accepts websocket connections and records every text frame and the
// handshake headers it receives.
type Server struct {
	srv *httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	messages []string
	headers  []http.Header
	closed   chan struct{}
	once     sync.Once
}

// NewServer starts a server that is shut down when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		closed: make(chan struct{}),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// HTTPURL returns the http:// address of the server.
func (s *Server) HTTPURL() string {
	return s.srv.URL
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			s.once.Do(func() { close(s.closed) })
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.mu.Lock()
		s.messages = append(s.messages, string(data))
		s.mu.Unlock()
	}
}

// Messages returns the text frames received so far, in order.
func (s *Server) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Headers returns the handshake headers of every request received.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// WaitClosed waits until the first connection has ended.
func (s *Server) WaitClosed(timeout time.Duration) bool {
	select {
	case <-s.closed:
		return true
	case <-time.After(timeout):
		return false
	}
}

// UnreachableURL returns a ws:// address nothing listens on.
func UnreachableURL(t testing.TB) string {
	t.Helper()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()
	return url
}
