package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is used for models tiktoken has no mapping for.
const DefaultEncoding = "cl100k_base"

var (
	loaderOnce sync.Once

	encodingsMu sync.Mutex
	encodings   = map[string]Estimator{}
)

// BPE counts tokens with a tiktoken encoding.
type BPE struct {
	enc *tiktoken.Tiktoken
}

// Estimate returns the number of tokens the encoding produces for text.
// Special-token markers in text are counted as ordinary text.
func (b BPE) Estimate(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return len(b.enc.Encode(text, nil, nil))
}

// ForModel returns a BPE estimator for model. Provider prefixes such as
// "openai/" are ignored. Models without a known encoding use
// DefaultEncoding; if no encoding can be loaded the result is Heuristic.
func ForModel(model string) Estimator {
	name := model
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	if est, ok := encodings[name]; ok {
		return est
	}
	est := load(name)
	encodings[name] = est
	return est
}

func load(model string) Estimator {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if model != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return BPE{enc: enc}
		}
	}
	if enc, err := tiktoken.GetEncoding(DefaultEncoding); err == nil {
		return BPE{enc: enc}
	}
	return Heuristic{}
}
