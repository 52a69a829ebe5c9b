package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Kind names an entry family. Kinds are cached and invalidated independently.
type Kind string

const (
	KindTranscript Kind = "transcript"
	KindChunkMap   Kind = "chunk_map"
	KindSummary    Kind = "summary"
)

// Kinds lists every entry family.
var Kinds = []Kind{KindTranscript, KindChunkMap, KindSummary}

// ParseKind validates a kind name.
func ParseKind(value string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == strings.TrimSpace(value) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown cache kind %q (want transcript, chunk_map or summary)", value)
}

// Key addresses one entry within a kind. Keys are filesystem-safe.
type Key string

func (k Key) String() string { return string(k) }

// RemoteKey addresses a remote transcript by video id, requested language and
// acquisition method.
func RemoteKey(videoID, lang, method string) Key {
	return Key(fmt.Sprintf("yt_%s_%s_%s", keyToken(videoID), strings.ToLower(keyToken(lang)), keyToken(method)))
}

// FileKey addresses a local transcript by the hex SHA-256 of its content, so
// renamed copies share a key and edited files do not.
func FileKey(contentSHA256 string) Key {
	digest := strings.ToLower(strings.TrimSpace(contentSHA256))
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return Key("file_" + keyToken(digest))
}

// ChunkMapKey addresses the map result for one chunk. The chunk budget and
// model are part of the key, so changing either invalidates extractions
// without touching the transcript.
func ChunkMapKey(transcript Key, index, budget int, model string) Key {
	return Key(fmt.Sprintf("%s_c%04d_b%d_m%s", transcript, index, budget, modelHash(model)))
}

// SummaryKey addresses the final summary for a transcript under a chunking
// budget, model, synthesis setting and sampling temperature.
func SummaryKey(transcript Key, budget int, model string, synthesize bool, temperature float64) Key {
	synth := 0
	if synthesize {
		synth = 1
	}
	temp := keyToken(strconv.FormatFloat(temperature, 'f', -1, 64))
	return Key(fmt.Sprintf("%s_b%d_m%s_s%d_t%s", transcript, budget, modelHash(model), synth, temp))
}

func modelHash(model string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(model)))
	return hex.EncodeToString(sum[:4])
}

// keyToken keeps ASCII letters, digits, '-' and '_' (case preserved, video ids
// are case sensitive) and replaces everything else with '_'.
func keyToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "none"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
