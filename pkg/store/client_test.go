package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, apiURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{APIURL: apiURL, EngineToken: "engine-token"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientGetSendsBearerAndKey(t *testing.T) {
	var gotAuth, gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"key":"acme_flow_f1/counter","value":{"n":3}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/")
	entry, err := client.Get(context.Background(), "acme_flow_f1/counter")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "Bearer engine-token" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	if gotPath != "/v1/store-entries" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "acme_flow_f1/counter" {
		t.Fatalf("unexpected key %q", gotKey)
	}
	if entry == nil || string(entry.Value) != `{"n":3}` {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestClientGetNotFoundReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "missing" {
			t.Fatalf("unexpected key %q", r.URL.Query().Get("key"))
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	entry, err := newTestClient(t, server.URL+"/").Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %+v", entry)
	}
}

func TestClientPutPostsJSON(t *testing.T) {
	var got Entry
	var contentType, method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		if r.URL.RawQuery != "" {
			t.Fatalf("expected no query on POST, got %q", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(got)
	}))
	defer server.Close()

	echo, err := newTestClient(t, server.URL+"/").Put(context.Background(), Entry{Key: "k", Value: json.RawMessage(`[1,"two"]`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if method != http.MethodPost || contentType != "application/json" {
		t.Fatalf("unexpected request %s %s", method, contentType)
	}
	if got.Key != "k" || string(got.Value) != `[1,"two"]` {
		t.Fatalf("unexpected body %+v", got)
	}
	if echo == nil || echo.Key != "k" {
		t.Fatalf("unexpected echo %+v", echo)
	}
}

func TestClientPutServerErrorIsStorageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "db down")
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL+"/").Put(context.Background(), Entry{Key: "x", Value: json.RawMessage(`1`)})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Key != "x" || storageErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected storage error %+v", storageErr)
	}
	if !strings.Contains(storageErr.Cause, "db down") {
		t.Fatalf("expected cause to include body, got %q", storageErr.Cause)
	}
}

func TestClientDeleteIsIdempotent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method %s", r.Method)
		}
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/")
	if err := client.Delete(context.Background(), "x"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := client.Delete(context.Background(), "x"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestClientDeleteConnectionRefusedIsFetchError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	client := newTestClient(t, "http://"+addr+"/")
	err = client.Delete(context.Background(), "x")

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	want := "http://" + addr + "/v1/store-entries?key=x"
	if fetchErr.URL != want {
		t.Fatalf("expected url %q, got %q", want, fetchErr.URL)
	}
	if fetchErr.Err == nil {
		t.Fatalf("expected underlying cause")
	}
}

func TestClientUndecodableBodyIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>")
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL+"/").Get(context.Background(), "k")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestNewClientEndpoint(t *testing.T) {
	client := newTestClient(t, "http://api.local/api/")
	if client.Endpoint() != "http://api.local/api/v1/store-entries" {
		t.Fatalf("unexpected endpoint %q", client.Endpoint())
	}
	client = newTestClient(t, "http://api.local/api")
	if client.Endpoint() != "http://api.local/api/v1/store-entries" {
		t.Fatalf("expected trailing slash to be added, got %q", client.Endpoint())
	}
	if _, err := NewClient(Config{}); !errors.Is(err, ErrMissingAPIURL) {
		t.Fatalf("expected ErrMissingAPIURL, got %v", err)
	}
	if _, err := NewClient(Config{APIURL: "not a url"}); err == nil {
		t.Fatalf("expected invalid url error")
	}
}
