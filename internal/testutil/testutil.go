// Package testutil provides shared HTTP test helpers.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// LoopbackAddr is a RemoteAddr that tsweb's debug handlers accept without
// Tailscale authentication.
const LoopbackAddr = "127.0.0.1:12345"

// NewLoopbackRequest builds a request that appears to come from localhost.
func NewLoopbackRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = LoopbackAddr
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Get is Serve with a loopback GET of path.
func Get(h http.Handler, path string) *httptest.ResponseRecorder {
	return Serve(h, NewLoopbackRequest(http.MethodGet, path, nil))
}

// DecodeJSON unmarshals the recorded body into a T, failing the test on
// error.
func DecodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status code = %d, want %d (body %q)", rec.Code, want, rec.Body.String())
	}
}
