package connector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

func testCursor() domain.Cursor {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	return domain.Cursor{
		From:          &from,
		To:            to,
		Partial:       true,
		ScanType:      domain.ScanTypeForward,
		LastFullScan:  from,
		ForwardCursor: &to,
	}
}

func TestHTTPConnector_PostsWindow(t *testing.T) {
	var (
		got     Payload
		scanTag string
		auth    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scanTag = r.Header.Get("X-Scan-Tag")
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid body %s: %v", body, err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	conn, err := NewHTTPConnector(Config{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	if err != nil {
		t.Fatalf("NewHTTPConnector failed: %v", err)
	}

	c := testCursor()
	if err := conn.Fetch(context.Background(), "crm", c); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if got.SourceID != "crm" || got.Window.ScanType != domain.ScanTypeForward || !got.Window.To.Equal(c.To) {
		t.Errorf("unexpected payload %+v", got)
	}
	if scanTag != domain.ForwardScanTag {
		t.Errorf("expected scan tag header, got %q", scanTag)
	}
	if auth != "Bearer token" {
		t.Errorf("expected configured header, got %q", auth)
	}
}

func TestHTTPConnector_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		permanent bool
	}{
		{http.StatusOK, false, false},
		{http.StatusNoContent, false, false},
		{http.StatusBadRequest, true, true},
		{http.StatusNotFound, true, true},
		{http.StatusTooManyRequests, true, false},
		{http.StatusRequestTimeout, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusBadGateway, true, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			conn, _ := NewHTTPConnector(Config{URL: srv.URL, Timeout: time.Second})
			err := conn.Fetch(context.Background(), "crm", testCursor())

			if (err != nil) != tt.wantErr {
				t.Fatalf("Fetch error = %v, wantErr %v", err, tt.wantErr)
			}
			if IsPermanent(err) != tt.permanent {
				t.Errorf("IsPermanent = %v, want %v (err: %v)", IsPermanent(err), tt.permanent, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}, nil); err != nil {
		t.Errorf("empty kind should select the log connector: %v", err)
	}
	if _, err := New(Config{Kind: KindHTTP}, nil); err == nil {
		t.Error("http connector without url should fail")
	}
	if _, err := New(Config{Kind: "kafka"}, nil); err == nil {
		t.Error("unknown kind should fail")
	}
}
