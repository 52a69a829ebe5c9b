package ytdlp

import (
	"errors"
	"os/exec"
	"strings"

	"ytsummarize/internal/services"
)

var unavailableMarkers = []string{
	"private video",
	"sign in to confirm your age",
	"age-restricted",
	"not available in your country",
	"video unavailable",
	"this video has been removed",
	"account associated with this video has been terminated",
	"members-only content",
}

var transientMarkers = []string{
	"http error 429",
	"http error 500",
	"http error 502",
	"http error 503",
	"http error 504",
	"timed out",
	"connection reset",
	"temporary failure in name resolution",
	"remote end closed connection",
}

var absenceMarkers = []string{
	"there are no subtitles",
	"no subtitles",
	"requested format is not available",
}

// classify tags a failed invocation by the markers in its error text.
func classify(operation string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrExternalTool, "", "yt-dlp "+operation, "yt-dlp not found; install it or set acquisition.ytdlp_binary", err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, unavailableMarkers):
		return services.Wrap(services.ErrSourceUnavailable, "", "yt-dlp "+operation, firstErrorLine(err.Error()), err)
	case containsAny(msg, transientMarkers):
		return services.Transient(services.Wrap(services.ErrExternalTool, "", "yt-dlp "+operation, "", err))
	case containsAny(msg, absenceMarkers):
		return services.NotAvailable("yt-dlp %s: %s", operation, firstErrorLine(err.Error()))
	default:
		return services.Wrap(services.ErrExternalTool, "", "yt-dlp "+operation, "", err)
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// firstErrorLine returns the first "ERROR:" line from yt-dlp output, or the
// whole message when none is present.
func firstErrorLine(msg string) string {
	for _, line := range strings.Split(msg, "\n") {
		if idx := strings.Index(line, "ERROR:"); idx >= 0 {
			return strings.TrimSpace(line[idx+len("ERROR:"):])
		}
	}
	return strings.TrimSpace(msg)
}
