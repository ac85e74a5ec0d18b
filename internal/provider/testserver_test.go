package provider

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestServer serves handler on IPv4 loopback. Sandboxes without a
// loopback listener skip the test.
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback listener: %v", err)
	}

	srv := httptest.NewUnstartedServer(handler)
	srv.Listener.Close()
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

// writeFlushed writes each line and flushes it, the way a model server
// streams tokens
func writeFlushed(w http.ResponseWriter, contentType string, lines ...string) {
	w.Header().Set("Content-Type", contentType)
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		_, _ = w.Write([]byte(line))
		if flusher != nil {
			flusher.Flush()
		}
	}
}
