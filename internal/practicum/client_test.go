package practicum

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hwbot/internal/homework"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{Endpoint: srv.URL + "/api/user_api/homework_statuses/", Token: "secret", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchSendsAuthAndWatermark(t *testing.T) {
	t.Parallel()
	var gotAuth, gotFrom string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFrom = r.URL.Query().Get("from_date")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"hw1","status":"approved"}],"current_date":1000}`))
	})

	body, err := c.Fetch(context.Background(), 777)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAuth != "OAuth secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotFrom != "777" {
		t.Fatalf("from_date = %q", gotFrom)
	}
	m, ok := body.(map[string]any)
	if !ok {
		t.Fatalf("body is %T", body)
	}
	if m["current_date"] != json.Number("1000") {
		t.Fatalf("current_date = %#v", m["current_date"])
	}
}

func TestFetchDefaultsWatermarkToNow(t *testing.T) {
	t.Parallel()
	var gotFrom string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotFrom = r.URL.Query().Get("from_date")
		_, _ = w.Write([]byte(`{}`))
	})
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	if _, err := c.Fetch(context.Background(), 0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotFrom != "1700000000" {
		t.Fatalf("from_date = %q", gotFrom)
	}
}

func TestFetchNon200IsRemoteError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"not_authenticated"}`))
	})

	_, err := c.Fetch(context.Background(), 1)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.StatusCode != http.StatusUnauthorized || !strings.Contains(re.Body, "not_authenticated") {
		t.Fatalf("unexpected RemoteError: %+v", re)
	}
	if homework.Kind(err) != "remote" {
		t.Fatalf("Kind = %q", homework.Kind(err))
	}
}

func TestFetchBadJSONIsTransportError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops`))
	})

	_, err := c.Fetch(context.Background(), 1)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestFetchUnreachableIsTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/"
	srv.Close()

	c, err := New(Config{Endpoint: endpoint, Token: "secret", Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Fetch(context.Background(), 1)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if homework.Kind(err) != "transport" {
		t.Fatalf("Kind = %q", homework.Kind(err))
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}); err == nil {
		t.Fatal("expected error for empty token")
	}
}
