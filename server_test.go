package whep_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shynome/whep"
	"github.com/shynome/whep/internal/peertest"
)

const (
	remoteUfrag = "remoteU"
	remotePwd   = "remotePassword0123456789"
)

type request struct {
	Method      string
	Path        string
	ContentType string
	Auth        string
	Body        string
}

type sse struct{ name, data string }

// server is a WHEP resource at /whep creating /resource/42.
type server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []request

	offerStatus  int
	location     string
	links        []string
	answer       string
	onOffer      func()
	onPatch      func()
	patchStatus  int
	patchBody    string
	eventsStatus int

	events chan sse
	quit   chan struct{}
}

func newServer(t *testing.T) *server {
	s := &server{
		location: "/resource/42",
		answer: peertest.Description([]whep.Transceiver{
			{Mid: "0", Kind: "video"}, {Mid: "1", Kind: "audio"},
		}, "sendonly", remoteUfrag, remotePwd),
		events: make(chan sse, 8),
		quit:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/whep", s.serveOffer)
	mux.HandleFunc("/resource/42", s.serveResource)
	mux.HandleFunc("/resource/42/layer", s.record)
	mux.HandleFunc("/resource/42/sse", s.serveEventsRegistration)
	mux.HandleFunc("/resource/42/sse/stream", s.serveEvents)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	t.Cleanup(func() { close(s.quit) })
	return s
}

func (s *server) set(fn func(s *server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *server) add(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Auth:        r.Header.Get("Authorization"),
		Body:        string(body),
	})
}

func (s *server) Requests() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]request(nil), s.requests...)
}

func (s *server) Find(method, path string) (found []request) {
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			found = append(found, r)
		}
	}
	return
}

func (s *server) record(w http.ResponseWriter, r *http.Request) {
	s.add(r)
	w.WriteHeader(http.StatusOK)
}

func (s *server) serveOffer(w http.ResponseWriter, r *http.Request) {
	s.add(r)
	s.mu.Lock()
	status, location, links, answer, onOffer := s.offerStatus, s.location, s.links, s.answer, s.onOffer
	s.mu.Unlock()
	if onOffer != nil {
		onOffer()
	}
	if status != 0 {
		http.Error(w, "nope", status)
		return
	}
	if location != "" {
		w.Header().Set("Location", location)
	}
	for _, l := range links {
		w.Header().Add("Link", l)
	}
	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, answer)
}

func (s *server) serveResource(w http.ResponseWriter, r *http.Request) {
	s.add(r)
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.mu.Lock()
	status, body, onPatch := s.patchStatus, s.patchBody, s.onPatch
	s.mu.Unlock()
	if onPatch != nil {
		onPatch()
	}
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (s *server) serveEventsRegistration(w http.ResponseWriter, r *http.Request) {
	s.add(r)
	s.mu.Lock()
	status := s.eventsStatus
	s.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Location", "sse/stream")
	w.WriteHeader(http.StatusCreated)
}

func (s *server) serveEvents(w http.ResponseWriter, r *http.Request) {
	s.add(r)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.quit:
			return
		case ev := <-s.events:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			flusher.Flush()
		}
	}
}

func (s *server) Endpoint() string { return s.URL + "/whep" }

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func lines(s string) []string {
	return strings.Split(s, "\r\n")
}
