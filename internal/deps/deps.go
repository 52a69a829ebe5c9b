package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Status reports whether an external binary can be launched. Optional
// binaries only disable a fallback when missing.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

const (
	ytdlpDescription  = "Subtitles, metadata and audio download"
	ffmpegDescription = "Audio extraction and splitting for speech-to-text"
)

// Check reports yt-dlp and ffmpeg, in that order. ffmpeg is optional:
// without it audio over the upload limit cannot be split.
func Check(ytdlpCommand, ffmpegCommand string) []Status {
	return []Status{
		Lookup(Status{Name: "yt-dlp", Command: ytdlpCommand, Description: ytdlpDescription}),
		ResolveFFmpeg(ffmpegCommand, ytdlpCommand),
	}
}

// Lookup finds want.Command on PATH and returns want with Available,
// Detail and the resolved Command filled in.
func Lookup(want Status) Status {
	want.Command = strings.TrimSpace(want.Command)
	want.Available = false
	switch resolved, err := exec.LookPath(want.Command); {
	case want.Command == "":
		want.Detail = "command not configured"
	case err != nil:
		want.Detail = fmt.Sprintf("binary %q not found", want.Command)
	default:
		want.Command = resolved
		want.Available = true
		want.Detail = ""
	}
	return want
}
