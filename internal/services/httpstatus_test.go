package services_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"ytsummarize/internal/services"
)

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status        int
		wantErr       bool
		wantTransient bool
	}{
		{http.StatusOK, false, false},
		{http.StatusBadRequest, true, false},
		{http.StatusUnauthorized, true, false},
		{http.StatusRequestTimeout, true, true},
		{http.StatusTooManyRequests, true, true},
		{http.StatusBadGateway, true, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			err := services.CheckStatus("stt", resp, []byte("  oops \n"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckStatus err = %v", err)
			}
			if err == nil {
				return
			}
			if got := services.IsTransient(err); got != tt.wantTransient {
				t.Fatalf("IsTransient = %v, want %v (%v)", got, tt.wantTransient, err)
			}
			if !tt.wantTransient && !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected external tool classification, got %v", err)
			}
			var statusErr *services.StatusError
			if !errors.As(err, &statusErr) || statusErr.Body != "oops" {
				t.Fatalf("expected status error with trimmed body, got %#v", statusErr)
			}
		})
	}
}

func TestCheckStatusCarriesRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"7"}}}
	err := services.CheckStatus("llm", resp, nil)
	var hinted interface{ RetryAfter() time.Duration }
	if !errors.As(err, &hinted) || hinted.RetryAfter() != 7*time.Second {
		t.Fatalf("expected 7s retry hint, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := services.ParseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("seconds form: %v %v", d, ok)
	}
	if _, ok := services.ParseRetryAfter("-1"); ok {
		t.Fatal("negative seconds should be rejected")
	}
	if _, ok := services.ParseRetryAfter(""); ok {
		t.Fatal("empty header should be rejected")
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if d, ok := services.ParseRetryAfter(future); !ok || d <= 0 {
		t.Fatalf("date form: %v %v", d, ok)
	}
}
