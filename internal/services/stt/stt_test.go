package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/services"
)

type recordedUpload struct {
	file     string
	size     int
	model    string
	language string
	format   string
}

func newServer(t *testing.T, respond func(n int, upload recordedUpload) (int, any)) (*httptest.Server, *[]recordedUpload) {
	t.Helper()
	var (
		mu      sync.Mutex
		uploads []recordedUpload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		upload := recordedUpload{
			file:     header.Filename,
			size:     len(data),
			model:    r.FormValue("model"),
			language: r.FormValue("language"),
			format:   r.FormValue("response_format"),
		}
		mu.Lock()
		uploads = append(uploads, upload)
		n := len(uploads)
		mu.Unlock()
		status, body := respond(n, upload)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &uploads
}

func writeAudio(t *testing.T, name string, size int) acquire.AudioRef {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return acquire.AudioRef{Path: path, Format: strings.TrimPrefix(filepath.Ext(name), "."), Bytes: int64(size)}
}

func TestTranscribeUploadsSingleFile(t *testing.T) {
	server, uploads := newServer(t, func(int, recordedUpload) (int, any) {
		return http.StatusOK, map[string]string{"text": "  hello world  "}
	})
	client := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "whisper-1"}, nil)

	got, err := client.Transcribe(context.Background(), writeAudio(t, "abc.mp3", 2048), "", "pt-BR")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello world" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if len(*uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(*uploads))
	}
	up := (*uploads)[0]
	if up.file != "abc.mp3" || up.size != 2048 || up.model != "whisper-1" || up.format != "json" || up.language != "pt" {
		t.Fatalf("unexpected upload %+v", up)
	}
}

func TestTranscribeOmitsLanguageForAuto(t *testing.T) {
	server, uploads := newServer(t, func(int, recordedUpload) (int, any) {
		return http.StatusOK, map[string]string{"text": "bonjour", "language": "french"}
	})
	client := New(Config{APIKey: "test-key", BaseURL: server.URL}, nil)

	got, err := client.Transcribe(context.Background(), writeAudio(t, "abc.m4a", 10), "gpt-4o-mini-transcribe", "auto")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Language != "fr" {
		t.Fatalf("expected detected language fr, got %q", got.Language)
	}
	if up := (*uploads)[0]; up.language != "" || up.model != "gpt-4o-mini-transcribe" {
		t.Fatalf("unexpected upload %+v", up)
	}
}

func TestTranscribeClassifiesStatus(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server, _ := newServer(t, func(int, recordedUpload) (int, any) {
				return tt.status, map[string]any{"error": map[string]string{"message": "nope"}}
			})
			client := New(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
			_, err := client.Transcribe(context.Background(), writeAudio(t, "a.mp3", 4), "", "en")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := services.IsTransient(err); got != tt.wantTransient {
				t.Fatalf("IsTransient = %v, want %v (%v)", got, tt.wantTransient, err)
			}
		})
	}
}

func TestTranscribeRejectsUnsupportedFormat(t *testing.T) {
	client := New(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0"}, nil)
	_, err := client.Transcribe(context.Background(), writeAudio(t, "a.aiff", 4), "", "en")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	client := New(Config{}, nil)
	_, err := client.Transcribe(context.Background(), writeAudio(t, "a.mp3", 4), "", "en")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTranscribeSplitsOversizedAudio(t *testing.T) {
	server, uploads := newServer(t, func(n int, up recordedUpload) (int, any) {
		return http.StatusOK, map[string]string{"text": "part " + up.file}
	})
	client := New(Config{APIKey: "test-key", BaseURL: server.URL, MaxUploadBytes: 100, SegmentSeconds: 300, FFmpegBinary: "/opt/ffmpeg"}, nil)

	var gotArgs []string
	client.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "/opt/ffmpeg" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		pattern := args[len(args)-1]
		// Write out of order to prove the client sorts.
		for _, i := range []int{2, 0, 1} {
			if err := os.WriteFile(fmt.Sprintf(pattern, i), make([]byte, 40), 0o644); err != nil {
				t.Fatalf("write segment: %v", err)
			}
		}
		return nil, nil
	})

	audio := writeAudio(t, "big.mp3", 250)
	got, err := client.Transcribe(context.Background(), audio, "", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if want := "part part_000.mp3 part part_001.mp3 part part_002.mp3"; got.Text != want {
		t.Fatalf("segments joined out of order: %q", got.Text)
	}
	if len(*uploads) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(*uploads))
	}
	joined := strings.Join(gotArgs, " ")
	for _, fragment := range []string{"-f segment", "-segment_time 300", "-c copy", "-i " + audio.Path} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in ffmpeg args %q", fragment, joined)
		}
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(audio.Path), "segments-*"))
	if len(leftovers) != 0 {
		t.Fatalf("segment directory not cleaned up: %v", leftovers)
	}
}

func TestTranscribeSplitFailureIsExternalTool(t *testing.T) {
	client := New(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0", MaxUploadBytes: 10}, nil)
	client.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("ffmpeg: exit status 1: invalid data")
	})
	_, err := client.Transcribe(context.Background(), writeAudio(t, "a.mp3", 50), "", "en")
	if !errors.Is(err, services.ErrExternalTool) || services.IsTransient(err) {
		t.Fatalf("expected terminal external tool error, got %v", err)
	}
}
