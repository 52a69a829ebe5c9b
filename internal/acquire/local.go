package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ytsummarize/internal/cache"
	"ytsummarize/internal/language"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/services"
)

// resolveLocal reads a transcript file. The cache key is derived from the
// file content, so a renamed copy hits the same entry; the returned record
// always reflects the current path and file name.
func (r *Resolver) resolveLocal(ctx context.Context, src SourceRef, opts Options) (Result, error) {
	ctx = services.WithStage(ctx, StageLocal)
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, StageLocal, "read", src.Path, err)
	}
	sum := sha256.Sum256(data)
	key := cache.FileKey(hex.EncodeToString(sum[:]))
	ctx = services.WithSource(ctx, key.String())
	logger := logging.WithContext(ctx, r.logger)

	stem := strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))

	if !opts.Force {
		record, ok, err := cache.GetJSON[TranscriptRecord](ctx, r.cache, key, cache.KindTranscript)
		if err != nil {
			logger.Debug("transcript cache read failed", logging.Error(err))
		}
		if ok && strings.TrimSpace(record.Text) != "" {
			record.Meta.FilePath = src.Path
			record.Meta.Title = stem
			logger.Info("transcript cache hit", logging.CacheKey(key))
			return Result{Record: record, Key: key, Cached: true}, nil
		}
	}

	if !utf8.Valid(data) {
		return Result{}, services.Wrap(services.ErrValidation, StageLocal, "read", fmt.Sprintf("%s is not UTF-8 text", src.Path), nil)
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if text == "" {
		return Result{}, services.Wrap(services.ErrEmptyTranscript, StageLocal, "read", src.Path, nil)
	}

	lang := opts.Language
	if lang == language.Auto {
		lang = "unknown"
	}
	record := TranscriptRecord{
		Text:            text,
		Language:        lang,
		Method:          MethodLocal,
		DurationSeconds: EstimateDuration(text),
		FetchedAt:       r.now().UTC(),
		Meta: SourceMeta{
			FilePath:          src.Path,
			Title:             stem,
			DurationEstimated: true,
		},
	}
	r.store(ctx, key, record)
	logger.Info("local transcript loaded",
		logging.String("path", src.Path),
		logging.Int("words", len(strings.Fields(text))))
	return Result{Record: record, Key: key}, nil
}
