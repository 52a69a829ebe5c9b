package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var stubScript = []byte("#!/bin/sh\nexit 0\n")

func writeStub(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, stubScript, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestLookup(t *testing.T) {
	present := writeStub(t, filepath.Join(t.TempDir(), "present"))
	tests := []struct {
		name      string
		command   string
		available bool
		detail    string
		resolved  string
	}{
		{name: "present", command: present, available: true, resolved: present},
		{name: "missing", command: "clearly-not-present-binary", detail: `binary "clearly-not-present-binary" not found`, resolved: "clearly-not-present-binary"},
		{name: "blank", command: "  ", detail: "command not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lookup(Status{Name: tt.name, Command: tt.command, Detail: "stale"})
			if got.Available != tt.available || got.Detail != tt.detail || got.Command != tt.resolved {
				t.Fatalf("Lookup(%q) = %#v", tt.command, got)
			}
		})
	}
}

func TestCheckListsYtDlpThenOptionalFFmpeg(t *testing.T) {
	t.Setenv("PATH", "")
	statuses := Check("yt-dlp", "")
	if len(statuses) != 2 || statuses[0].Name != "yt-dlp" || statuses[1].Name != "FFmpeg" {
		t.Fatalf("unexpected statuses %#v", statuses)
	}
	if statuses[0].Optional || !statuses[1].Optional {
		t.Fatalf("only ffmpeg should be optional: %#v", statuses)
	}
	if statuses[0].Available || statuses[1].Available {
		t.Fatalf("nothing should resolve with an empty PATH: %#v", statuses)
	}
}

func TestResolveFFmpegPrefersConfiguredPath(t *testing.T) {
	configured := writeStub(t, filepath.Join(t.TempDir(), executableName("my-ffmpeg")))
	status := ResolveFFmpeg(configured, "")
	if !status.Available || status.Command != configured {
		t.Fatalf("expected configured ffmpeg, got %#v", status)
	}

	missing := ResolveFFmpeg(filepath.Join(t.TempDir(), "nope"), "")
	if missing.Available || missing.Detail == "" {
		t.Fatalf("expected missing configured binary to be reported, got %#v", missing)
	}
}

func TestResolveFFmpegSidecar(t *testing.T) {
	tmp := t.TempDir()
	ytdlpPath := writeStub(t, filepath.Join(tmp, executableName("yt-dlp")))
	ffmpegPath := writeStub(t, filepath.Join(tmp, executableName("ffmpeg")))

	status := ResolveFFmpeg("", ytdlpPath)
	if !status.Available {
		t.Fatalf("expected ffmpeg sidecar to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected ffmpeg command %q, got %q", ffmpegPath, status.Command)
	}
}

func TestResolveFFmpegPathFallback(t *testing.T) {
	tmp := t.TempDir()
	ytdlpPath := writeStub(t, filepath.Join(tmp, executableName("yt-dlp")))
	ffmpegPath := writeStub(t, filepath.Join(tmp, "bin", executableName("ffmpeg")))
	t.Setenv("PATH", filepath.Dir(ffmpegPath))

	status := ResolveFFmpeg("ffmpeg", ytdlpPath)
	if !status.Available || status.Command != ffmpegPath {
		t.Fatalf("expected ffmpeg from PATH %q, got %#v", ffmpegPath, status)
	}
}

func TestResolveFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := ResolveFFmpeg("", filepath.Join(t.TempDir(), executableName("yt-dlp")))
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
