package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetcherRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "dot-reports/test" {
			t.Errorf("Expected user agent 'dot-reports/test', got '%s'", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<RoadActivities/>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "dot-reports/test")
	data, err := fetcher.Run(context.Background(), &Config{Name: "ohio", URL: server.URL})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if string(data) != "<RoadActivities/>" {
		t.Errorf("Expected payload body, got %q", string(data))
	}
}

func TestFetcherNon200IsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "")
	_, err := fetcher.Run(context.Background(), &Config{Name: "ohio", URL: server.URL})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", transportErr.StatusCode)
	}
	if transportErr.Source != "ohio" {
		t.Errorf("Expected source 'ohio', got '%s'", transportErr.Source)
	}
}

func TestFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "")
	_, _, err := fetcher.Get(context.Background(), server.URL, 50*time.Millisecond)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestFetcherUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	fetcher := NewFetcher(nil, "")
	_, err := fetcher.Run(context.Background(), &Config{Name: "gone", URL: url})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if transportErr.StatusCode != 0 {
		t.Errorf("Expected no status code, got %d", transportErr.StatusCode)
	}
}
