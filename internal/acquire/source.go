package acquire

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ytsummarize/internal/services"
)

// SourceKind distinguishes remote videos from local transcript files.
type SourceKind int

const (
	SourceRemote SourceKind = iota
	SourceLocal
)

func (k SourceKind) String() string {
	if k == SourceLocal {
		return "local"
	}
	return "remote"
}

// SourceRef is a parsed source argument.
type SourceRef struct {
	Kind    SourceKind
	Raw     string
	VideoID string
	Path    string
}

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	urlIDPattern   = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/|live/)|youtu\.be/)([A-Za-z0-9_-]{11})`)
)

// ParseSource classifies raw as a local transcript path or a remote video
// reference. An existing regular file always wins over id parsing.
func ParseSource(raw string) (SourceRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SourceRef{}, services.Wrap(services.ErrValidation, "", "parse source", "source is empty", nil)
	}

	if info, err := os.Stat(raw); err == nil {
		if info.IsDir() {
			return SourceRef{}, services.Wrap(services.ErrValidation, "", "parse source", fmt.Sprintf("%s is a directory", raw), nil)
		}
		abs, absErr := filepath.Abs(raw)
		if absErr != nil {
			abs = raw
		}
		return SourceRef{Kind: SourceLocal, Raw: raw, Path: abs}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return SourceRef{}, fmt.Errorf("stat source: %w", err)
	}

	if videoIDPattern.MatchString(raw) {
		return SourceRef{Kind: SourceRemote, Raw: raw, VideoID: raw}, nil
	}
	if id := videoIDFromURL(raw); id != "" {
		return SourceRef{Kind: SourceRemote, Raw: raw, VideoID: id}, nil
	}
	if looksLikePath(raw) {
		return SourceRef{}, services.Wrap(services.ErrValidation, "", "parse source", fmt.Sprintf("file not found: %s", raw), nil)
	}
	return SourceRef{}, services.Wrap(services.ErrValidation, "", "parse source", fmt.Sprintf("could not extract a video id from %q", raw), nil)
}

func videoIDFromURL(raw string) string {
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		if host == "youtube.com" || host == "m.youtube.com" || host == "music.youtube.com" {
			if v := parsed.Query().Get("v"); videoIDPattern.MatchString(v) {
				return v
			}
		}
	}
	if m := urlIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func looksLikePath(raw string) bool {
	return (strings.ContainsAny(raw, `/\`) && !strings.Contains(raw, "://")) || filepath.Ext(raw) == ".txt"
}

// Identifier is the stable internal identifier for the source: the video id,
// or the file's base name for local sources.
func (s SourceRef) Identifier() string {
	if s.Kind == SourceLocal {
		return strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	}
	return s.VideoID
}

// WatchURL returns the canonical watch page for a remote source.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
