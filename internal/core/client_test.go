package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultClient_UserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := DefaultClient()
	_, _ = client.GetBody(context.Background(), server.URL)

	if gotUA != "safe-pkgs/1.0" {
		t.Errorf("default User-Agent = %q, want %q", gotUA, "safe-pkgs/1.0")
	}
}

func TestClient_WithUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(WithUserAgent("custom-agent/2.0"))
	_, _ = client.GetBody(context.Background(), server.URL)

	if gotUA != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "custom-agent/2.0")
	}
}

func TestClient_GetBody_NotFoundDoesNotRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(3))
	_, err := client.GetBody(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (404 must not retry)", attempts)
	}
}

func TestClient_GetBody_RetriesRateLimitAtLeastThreeTimes(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(3))
	client.BaseDelay = time.Millisecond
	client.MaxDelay = 5 * time.Millisecond

	body, err := client.GetBody(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	if attempts < 3 {
		t.Errorf("attempts = %d, want at least 3", attempts)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
}

func TestClient_GetJSON_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := DefaultClient()
	var v map[string]any
	err := client.GetJSON(context.Background(), server.URL, &v)
	if err == nil {
		t.Fatal("expected malformed error")
	}
	var malformed *MalformedError
	if !asMalformed(err, &malformed) {
		t.Errorf("expected *MalformedError, got %T", err)
	}
}

func asMalformed(err error, target **MalformedError) bool {
	if m, ok := err.(*MalformedError); ok {
		*target = m
		return true
	}
	return false
}
