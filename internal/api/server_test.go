package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sekai02/redcloud-nvs/internal/nvs"
	"github.com/sekai02/redcloud-nvs/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	c := nvs.New()
	if err := c.Init(context.Background(), storage.NewMemStore()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	srv := httptest.NewServer(NewServer(c, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d (body %s)",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func openSession(t *testing.T, srv *httptest.Server, name string, writable bool) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"namespace": name, "writable": writable})
	resp := do(t, srv, http.MethodPost, "/v1/sessions", string(body))
	expectStatus(t, resp, http.StatusCreated)
	var out struct {
		Handle uint64 `json:"handle"`
	}
	decode(t, resp, &out)
	if out.Handle == 0 {
		t.Fatal("Open returned handle 0")
	}
	return "/v1/sessions/" + jsonNumber(out.Handle)
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestIntegerRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	rw := openSession(t, srv, "cfg", true)

	expectStatus(t, do(t, srv, http.MethodPut, rw+"/keys/k?type=u8", "42"), http.StatusNoContent)

	resp := do(t, srv, http.MethodGet, rw+"/keys/k?type=u8", "")
	expectStatus(t, resp, http.StatusOK)
	var out struct {
		Value uint8 `json:"value"`
	}
	decode(t, resp, &out)
	if out.Value != 42 {
		t.Fatalf("value = %d, want 42", out.Value)
	}

	expectStatus(t, do(t, srv, http.MethodPut, rw+"/keys/n?type=i64", "-9223372036854775808"), http.StatusNoContent)
	resp = do(t, srv, http.MethodGet, rw+"/keys/n?type=i64", "")
	expectStatus(t, resp, http.StatusOK)
	var signed struct {
		Value int64 `json:"value"`
	}
	decode(t, resp, &signed)
	if signed.Value != -9223372036854775808 {
		t.Fatalf("value = %d", signed.Value)
	}
}

func TestStringAndBlob(t *testing.T) {
	srv := newTestServer(t)
	rw := openSession(t, srv, "cfg", true)

	expectStatus(t, do(t, srv, http.MethodPut, rw+"/keys/name?type=str", "abc"), http.StatusNoContent)

	resp := do(t, srv, http.MethodGet, rw+"/keys/name/size?type=str", "")
	expectStatus(t, resp, http.StatusOK)
	var size struct {
		Size int `json:"size"`
	}
	decode(t, resp, &size)
	if size.Size != 4 {
		t.Fatalf("size = %d, want 4", size.Size)
	}

	resp = do(t, srv, http.MethodGet, rw+"/keys/name?type=str", "")
	expectStatus(t, resp, http.StatusOK)
	var str struct {
		Value string `json:"value"`
	}
	decode(t, resp, &str)
	if str.Value != "abc" {
		t.Fatalf("value = %q, want abc", str.Value)
	}

	expectStatus(t, do(t, srv, http.MethodPut, rw+"/keys/raw?type=blob", "\x00\x01\x02"), http.StatusNoContent)
	resp = do(t, srv, http.MethodGet, rw+"/keys/raw?type=blob", "")
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "\x00\x01\x02" {
		t.Fatalf("blob = %v", data)
	}
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	rw := openSession(t, srv, "cfg", true)
	expectStatus(t, do(t, srv, http.MethodPut, rw+"/keys/k?type=u8", "1"), http.StatusNoContent)
	ro := openSession(t, srv, "cfg", false)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"read-only set", http.MethodPut, ro + "/keys/k?type=u8", "2", http.StatusForbidden},
		{"read-only erase", http.MethodDelete, ro + "/keys", "", http.StatusForbidden},
		{"missing key", http.MethodGet, rw + "/keys/absent?type=u8", "", http.StatusNotFound},
		{"unknown handle", http.MethodGet, "/v1/sessions/999/keys/k?type=u8", "", http.StatusNotFound},
		{"zero handle", http.MethodPost, "/v1/sessions/0/commit", "", http.StatusNotFound},
		{"bad handle", http.MethodPost, "/v1/sessions/abc/commit", "", http.StatusBadRequest},
		{"type mismatch", http.MethodGet, rw + "/keys/k?type=u16", "", http.StatusConflict},
		{"unknown type", http.MethodGet, rw + "/keys/k?type=f32", "", http.StatusBadRequest},
		{"out of range", http.MethodPut, rw + "/keys/k?type=u8", "256", http.StatusBadRequest},
		{"key too long", http.MethodPut, rw + "/keys/abcdefghijklmnop?type=u8", "1", http.StatusBadRequest},
		{"value too long", http.MethodPut, rw + "/keys/b?type=blob", strings.Repeat("x", storage.MaxValueSize+1), http.StatusBadRequest},
		{"size of integer", http.MethodGet, rw + "/keys/k/size?type=u8", "", http.StatusBadRequest},
		{"empty name", http.MethodPost, "/v1/sessions", `{"namespace":"","writable":true}`, http.StatusBadRequest},
		{"missing namespace", http.MethodPost, "/v1/sessions", `{"namespace":"nope","writable":false}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.body)
			expectStatus(t, resp, tt.want)
			var out struct {
				Error string `json:"error"`
			}
			decode(t, resp, &out)
			if out.Error == "" {
				t.Fatal("error body is empty")
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	rw := openSession(t, srv, "cfg", true)
	openSession(t, srv, "cfg", false)

	resp := do(t, srv, http.MethodGet, "/v1/sessions", "")
	expectStatus(t, resp, http.StatusOK)
	var list struct {
		Sessions []struct {
			Handle   uint64 `json:"handle"`
			ReadOnly bool   `json:"read_only"`
		} `json:"sessions"`
	}
	decode(t, resp, &list)
	if len(list.Sessions) != 2 || list.Sessions[0].ReadOnly || !list.Sessions[1].ReadOnly {
		t.Fatalf("sessions = %+v", list.Sessions)
	}

	expectStatus(t, do(t, srv, http.MethodPost, rw+"/commit", ""), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodPut, rw+"/keys/k?type=u32", "7"), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodDelete, rw+"/keys/k", ""), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodDelete, rw+"/keys/k", ""), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodDelete, rw+"/keys", ""), http.StatusNoContent)

	expectStatus(t, do(t, srv, http.MethodDelete, rw, ""), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodDelete, rw, ""), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodPost, rw+"/commit", ""), http.StatusNotFound)
}

func TestDump(t *testing.T) {
	srv := newTestServer(t)
	rw := openSession(t, srv, "cfg", true)
	expectStatus(t, do(t, srv, http.MethodPut, rw+"/keys/k?type=u8", "42"), http.StatusNoContent)

	resp := do(t, srv, http.MethodGet, "/v1/dump", "")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `namespace 1 "cfg"`) || !strings.Contains(string(body), `key="k"`) {
		t.Fatalf("dump = %q", body)
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/v1/sessions", "")
	if _, err := uuid.Parse(resp.Header.Get("X-Request-ID")); err != nil {
		t.Fatalf("X-Request-ID %q is not a UUID: %v", resp.Header.Get("X-Request-ID"), err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/sessions", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "caller-id" {
		t.Fatalf("X-Request-ID = %q, want caller-id", got)
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID(), Recover(slog.New(slog.DiscardHandler)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
