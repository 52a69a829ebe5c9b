// Package captions looks up published caption tracks for a video by reading
// the player response embedded in its watch page and fetching the selected
// track's timed text.
package captions

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/language"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/services"
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultTimeout   = 30 * time.Second
	maxPageBytes     = 6 << 20
	maxTrackBytes    = 4 << 20
	playerMarker     = "ytInitialPlayerResponse"
)

// Config configures the captions client.
type Config struct {
	// BaseURL is the site root hosting /watch pages.
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// Client implements acquire.CaptionsLookup.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

var _ acquire.CaptionsLookup = (*Client)(nil)

// New constructs a captions client.
func New(cfg Config, logger *slog.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: base, userAgent: ua, http: httpClient, logger: logging.NewComponentLogger(logger, "captions")}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// LookupCaptions returns the best caption track for lang. Videos without a
// usable track in the requested language report services.ErrNotAvailable.
func (c *Client) LookupCaptions(ctx context.Context, videoID, lang string) (acquire.Text, error) {
	page, err := c.get(ctx, c.baseURL+"/watch?v="+videoID, maxPageBytes)
	if err != nil {
		return acquire.Text{}, err
	}
	player, err := extractPlayerResponse(page)
	if err != nil {
		return acquire.Text{}, services.NotAvailable("watch page for %s: %v", videoID, err)
	}
	if status := player.PlayabilityStatus; status != nil && status.Status != "" && status.Status != "OK" && player.Captions == nil {
		return acquire.Text{}, services.NotAvailable("video %s is %s: %s", videoID, strings.ToLower(status.Status), status.Reason)
	}
	if player.Captions == nil {
		return acquire.Text{}, services.NotAvailable("video %s has no captions", videoID)
	}
	track, ok := pickTrack(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, lang)
	if !ok {
		return acquire.Text{}, services.NotAvailable("no usable caption track for %s in %s", videoID, lang)
	}
	c.logger.Debug("caption track selected",
		logging.String("video_id", videoID),
		logging.String("language", track.LanguageCode),
		logging.Bool("auto_generated", track.Kind == "asr"))

	body, err := c.get(ctx, track.BaseURL, maxTrackBytes)
	if err != nil {
		return acquire.Text{}, err
	}
	text, err := parseTimedText(body)
	if err != nil {
		return acquire.Text{}, services.NotAvailable("caption track for %s: %v", videoID, err)
	}
	if text == "" {
		return acquire.Text{}, services.NotAvailable("caption track for %s is empty", videoID)
	}
	return acquire.Text{Text: text, Language: track.LanguageCode}, nil
}

func (c *Client) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Transient(fmt.Errorf("captions request: %w", err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, services.Transient(fmt.Errorf("read captions response: %w", err))
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, services.Transient(fmt.Errorf("captions request: status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, services.NotAvailable("captions request: status %d", resp.StatusCode)
	}
	return body, nil
}

// extractPlayerResponse finds the inline script assigning the player response
// and decodes the JSON object it assigns.
func extractPlayerResponse(page []byte) (playerResponse, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return playerResponse{}, fmt.Errorf("parse watch page: %w", err)
	}
	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		script := sel.Text()
		idx := strings.Index(script, playerMarker)
		if idx < 0 {
			return true
		}
		rest := script[idx+len(playerMarker):]
		brace := strings.IndexByte(rest, '{')
		if brace < 0 {
			return true
		}
		raw = extractJSONObject([]byte(rest[brace:]))
		return raw == nil
	})
	if raw == nil {
		return playerResponse{}, errors.New("player response not found")
	}
	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return playerResponse{}, fmt.Errorf("decode player response: %w", err)
	}
	return player, nil
}

// extractJSONObject returns the balanced JSON object at the start of b.
func extractJSONObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// needsPoToken reports whether a track URL can only be fetched by a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack prefers a manual track in the requested language, then an
// auto-generated one. Auto requests prefer English and then accept any track.
func pickTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	want := language.Preferred(lang)
	for _, manual := range []bool{true, false} {
		for _, t := range usable {
			if (t.Kind != "asr") == manual && language.Matches(t.LanguageCode, want) {
				return t, true
			}
		}
	}
	if lang != language.Auto && lang != "" {
		return captionTrack{}, false
	}
	for _, t := range usable {
		if t.Kind != "asr" {
			return t, true
		}
	}
	if len(usable) > 0 {
		return usable[0], true
	}
	return captionTrack{}, false
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
	Body struct {
		Paragraphs []struct {
			Text     string `xml:",chardata"`
			Segments []struct {
				Text string `xml:",chardata"`
			} `xml:"s"`
		} `xml:"p"`
	} `xml:"body"`
}

var (
	annotationRe = regexp.MustCompile(`\[[^\]]*\]`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// parseTimedText flattens timedtext XML (legacy <text> or srv3 <p>/<s>).
func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext: %w", err)
	}
	var parts []string
	add := func(s string) {
		s = html.UnescapeString(s)
		s = annotationRe.ReplaceAllString(s, "")
		s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
		if s != "" && (len(parts) == 0 || parts[len(parts)-1] != s) {
			parts = append(parts, s)
		}
	}
	for _, line := range tt.Lines {
		add(line.Text)
	}
	for _, p := range tt.Body.Paragraphs {
		if len(p.Segments) == 0 {
			add(p.Text)
			continue
		}
		var b strings.Builder
		for _, s := range p.Segments {
			b.WriteString(s.Text)
		}
		add(b.String())
	}
	return strings.Join(parts, " "), nil
}
