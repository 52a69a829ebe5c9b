package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteText writes content to path, creating parent directories, and returns
// path.
func WriteText(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

var transcriptTopics = []string{"caching", "chunking", "retries", "summaries", "budgets", "captions", "subtitles"}

// Transcript builds a deterministic transcript of n sentences grouped into
// paragraphs of five.
func Transcript(n int) string {
	var b strings.Builder
	for i := range n {
		switch {
		case i == 0:
		case i%5 == 0:
			b.WriteString("\n\n")
		default:
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "Sentence %d explains how %s keeps the pipeline predictable.", i, transcriptTopics[i%len(transcriptTopics)])
	}
	return b.String()
}
