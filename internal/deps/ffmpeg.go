package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpeg reports the ffmpeg binary to hand to yt-dlp and the audio
// splitter.
//
// A configured path wins. Otherwise an ffmpeg next to the yt-dlp executable
// is preferred, as standalone yt-dlp bundles ship one, before "ffmpeg" on
// PATH.
func ResolveFFmpeg(configured, ytdlpCommand string) Status {
	want := Status{Name: "FFmpeg", Description: ffmpegDescription, Optional: true, Command: "ffmpeg"}
	if configured = strings.TrimSpace(configured); configured != "" && configured != "ffmpeg" {
		want.Command = configured
		status := Lookup(want)
		if !status.Available {
			status.Detail = "configured " + status.Detail
		}
		return status
	}
	if sidecar, ok := sidecarFFmpeg(ytdlpCommand); ok {
		want.Command = sidecar
		want.Available = true
		return want
	}
	return Lookup(want)
}

// sidecarFFmpeg returns the executable ffmpeg in the directory holding the
// resolved yt-dlp binary.
func sidecarFFmpeg(ytdlpCommand string) (string, bool) {
	ytdlp := strings.TrimSpace(ytdlpCommand)
	if ytdlp == "" {
		return "", false
	}
	resolved, err := exec.LookPath(ytdlp)
	if err != nil {
		return "", false
	}
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	candidate := filepath.Join(filepath.Dir(resolved), name)
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return "", false
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return "", false
	}
	return candidate, true
}
