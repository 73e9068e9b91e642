package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-flowstore/internal/storage/memory"
	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
)

func newTestServer(t *testing.T, repo iface.EntryRepository, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithTokenVerifier(StaticTokens{"tok"})}, opts...)
	handler, err := New(repo, opts...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerLifecycle(t *testing.T) {
	srv := newTestServer(t, memory.NewEntryRepository())
	endpoint := srv.URL + "/v1/store-entries"

	resp := doRequest(t, http.MethodGet, endpoint+"?key=k", "tok", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before write, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, endpoint, "tok", `{"key":"k","value":{"n":1}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on post, got %d", resp.StatusCode)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}

	resp = doRequest(t, http.MethodGet, endpoint+"?key=k", "tok", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", resp.StatusCode)
	}
	var entry iface.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Key != "k" || string(entry.Value) != `{"n":1}` {
		t.Fatalf("unexpected entry %+v", entry)
	}

	resp = doRequest(t, http.MethodDelete, endpoint+"?key=k", "tok", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodDelete, endpoint+"?key=k", "tok", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}
}

func TestServerRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t, memory.NewEntryRepository())
	endpoint := srv.URL + "/v1/store-entries?key=k"

	if resp := doRequest(t, http.MethodGet, endpoint, "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, endpoint, "nope", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestServerValidatesInput(t *testing.T) {
	srv := newTestServer(t, memory.NewEntryRepository())
	endpoint := srv.URL + "/v1/store-entries"

	if resp := doRequest(t, http.MethodGet, endpoint, "tok", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodPost, endpoint, "tok", `{`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", resp.StatusCode)
	}
	long := strings.Repeat("k", iface.MaxKeyLength+1)
	if resp := doRequest(t, http.MethodPost, endpoint, "tok", `{"key":"`+long+`","value":1}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for long key, got %d", resp.StatusCode)
	}
}

func TestServerRejectsOversizedBody(t *testing.T) {
	repo := memory.NewEntryRepository()
	srv := newTestServer(t, repo)

	big := `{"key":"big","value":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/store-entries", "tok", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
	if repo.Len() != 0 {
		t.Fatalf("oversized entry must not be stored")
	}
}

type failingRepo struct{}

func (failingRepo) Get(context.Context, string) (iface.Entry, error) {
	return iface.Entry{}, errors.New("db down")
}
func (failingRepo) Upsert(context.Context, iface.Entry) (iface.Entry, error) {
	return iface.Entry{}, errors.New("db down")
}
func (failingRepo) Delete(context.Context, string) error { return errors.New("db down") }

func TestServerReportsRepositoryFailures(t *testing.T) {
	srv := newTestServer(t, failingRepo{})
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/store-entries", "tok", `{"key":"x","value":1}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "db down") {
		t.Fatalf("expected body to carry cause, got %q", body)
	}
}

func TestServerPathPrefix(t *testing.T) {
	srv := newTestServer(t, memory.NewEntryRepository(), WithPathPrefix("/api/"))
	endpoint := srv.URL + "/api/v1/store-entries"
	if resp := doRequest(t, http.MethodPost, endpoint, "tok", `{"key":"k","value":"v"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 under prefix, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, endpoint+"?key=k", "tok", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 under prefix, got %d", resp.StatusCode)
	}
}

func TestNewRequiresRepository(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error without repository")
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := bearerToken("bearer abc"); !ok || tok != "abc" {
		t.Fatalf("expected case-insensitive scheme, got %q %v", tok, ok)
	}
	if _, ok := bearerToken("Basic abc"); ok {
		t.Fatalf("expected basic scheme to be rejected")
	}
	if _, ok := bearerToken("Bearer "); ok {
		t.Fatalf("expected empty token to be rejected")
	}
}
