package acquire

import (
	"context"
	"time"
)

// Text is transcript text returned by a capability, with the language the
// provider reported (empty when unknown).
type Text struct {
	Text     string
	Language string
}

// MediaInfo is remote video metadata.
type MediaInfo struct {
	DurationSeconds float64
	Title           string
	Channel         string
}

// AudioRef points at downloaded audio on disk.
type AudioRef struct {
	Path   string
	Format string
	Bytes  int64
}

// CaptionsLookup fetches published captions. Implementations return an error
// wrapping services.ErrNotAvailable when the video has none in the requested
// language, and services.ErrTransient for retryable failures.
type CaptionsLookup interface {
	LookupCaptions(ctx context.Context, videoID, lang string) (Text, error)
}

// SubtitleExtraction fetches subtitle files without downloading media.
type SubtitleExtraction interface {
	ExtractSubtitles(ctx context.Context, videoID, lang string) (Text, error)
}

// MediaMetadata reports duration, title and channel.
type MediaMetadata interface {
	Metadata(ctx context.Context, videoID string) (MediaInfo, error)
}

// AudioDownload downloads audio only into dir. Age, region and removal
// failures wrap services.ErrSourceUnavailable.
type AudioDownload interface {
	DownloadAudio(ctx context.Context, videoID, dir string) (AudioRef, error)
}

// SpeechToText transcribes audio.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio AudioRef, model, lang string) (Text, error)
}

// Capabilities bundles the collaborators the resolver invokes. A nil
// collaborator behaves as if its source were never available.
type Capabilities struct {
	Captions     CaptionsLookup
	Subtitles    SubtitleExtraction
	Metadata     MediaMetadata
	Audio        AudioDownload
	SpeechToText SpeechToText
}

// Method records how a transcript was obtained.
type Method string

const (
	MethodCaptions     Method = "captions"
	MethodSubtitles    Method = "subtitles"
	MethodSpeechToText Method = "speech_to_text"
	MethodLocal        Method = "local"
)

// remoteMethods lists remote methods in ascending cost.
var remoteMethods = []Method{MethodCaptions, MethodSubtitles, MethodSpeechToText}

// SourceMeta describes where a transcript came from.
type SourceMeta struct {
	SourceURL         string `json:"source_url,omitempty"`
	VideoID           string `json:"video_id,omitempty"`
	FilePath          string `json:"file_path,omitempty"`
	Title             string `json:"title"`
	Channel           string `json:"channel,omitempty"`
	DurationEstimated bool   `json:"duration_estimated,omitempty"`
}

// TranscriptRecord is an acquired transcript. It is immutable once cached.
type TranscriptRecord struct {
	Text            string     `json:"text"`
	Language        string     `json:"language"`
	Method          Method     `json:"method"`
	DurationSeconds float64    `json:"duration_seconds"`
	Meta            SourceMeta `json:"source_meta"`
	FetchedAt       time.Time  `json:"fetched_at"`
}
