package publisher

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"ypapub/internal/pub"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   pub.PublishRequest
}

// fakeBroker is an in-process stand-in for the broker's publish endpoint. It assigns
// "id-N" message ids unless Respond installs another handler.
type fakeBroker struct {
	srv    *httptest.Server
	conns  atomic.Int32
	closed atomic.Int32

	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []recordedRequest
	nextID   int
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()

	b := &fakeBroker{}
	b.srv = httptest.NewUnstartedServer(http.HandlerFunc(b.serve))
	b.srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		switch state {
		case http.StateNew:
			b.conns.Add(1)
		case http.StateClosed, http.StateHijacked:
			b.closed.Add(1)
		}
	}
	b.srv.Start()
	t.Cleanup(b.srv.Close)

	return b
}

func (b *fakeBroker) URL() string {
	return b.srv.URL
}

// Respond replaces the default success response for subsequent requests.
func (b *fakeBroker) Respond(h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handler = h
}

func (b *fakeBroker) Requests() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]recordedRequest(nil), b.requests...)
}

func (b *fakeBroker) serve(w http.ResponseWriter, r *http.Request) {
	var body pub.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.requests = append(b.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	ids := make([]string, 0, len(body.Messages))
	for range body.Messages {
		ids = append(ids, fmt.Sprintf("id-%d", b.nextID))
		b.nextID++
	}
	handler := b.handler
	b.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messageIds": ids})
}
