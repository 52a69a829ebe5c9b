// Package ytdlp wraps the yt-dlp command for video metadata, subtitle files
// and audio-only downloads.
//
// Failures are classified from yt-dlp's stderr: private, age-gated, region
// locked and removed videos wrap services.ErrSourceUnavailable; rate limits,
// 5xx responses and network resets wrap services.ErrTransient; missing
// subtitles wrap services.ErrNotAvailable. Subtitle files are converted to
// plain text with CleanVTT.
package ytdlp
