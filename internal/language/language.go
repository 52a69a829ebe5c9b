package language

import (
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
)

// Auto requests whatever language the source provides, preferring English.
const Auto = "auto"

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "english")
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish"}},
	{"fr", "fra", "fre", "French", []string{"french"}},
	{"de", "deu", "ger", "German", []string{"german"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"tr", "tur", "", "Turkish", []string{"turkish"}},
	{"uk", "ukr", "", "Ukrainian", []string{"ukrainian"}},
	{"vi", "vie", "", "Vietnamese", []string{"vietnamese"}},
	{"id", "ind", "", "Indonesian", []string{"indonesian"}},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input.
func ToISO2(code string) string {
	if e := lookup(code); e != nil {
		return e.code2
	}
	return ""
}

// Normalize canonicalizes a requested language: empty and "auto" become Auto,
// names and ISO 639-2 codes map to ISO 639-1, and BCP 47 tags such as "pt-BR"
// reduce to their base language.
func Normalize(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == Auto {
		return Auto, nil
	}
	if code := ToISO2(value); code != "" {
		return code, nil
	}
	tag, err := xlanguage.Parse(value)
	if err != nil {
		return "", fmt.Errorf("unrecognized language %q", value)
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return "", fmt.Errorf("unrecognized language %q", value)
	}
	return base.String(), nil
}

// Base returns the base language of a track code like "en-GB" or "a.en",
// or "" when it cannot be parsed.
func Base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.TrimPrefix(code, "a.")
	if code == "" {
		return ""
	}
	if iso := ToISO2(code); iso != "" {
		return iso
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return ""
	}
	return base.String()
}

// Matches reports whether a track language satisfies the requested language.
// Auto accepts every track.
func Matches(track, requested string) bool {
	if requested == "" || requested == Auto {
		return true
	}
	return Base(track) == Base(requested)
}

// Preferred returns the language to look for first: the request itself, or
// English when the request is Auto.
func Preferred(requested string) string {
	if requested == "" || requested == Auto {
		return "en"
	}
	return requested
}

// SubtitlePatterns returns the yt-dlp --sub-langs selector for requested.
func SubtitlePatterns(requested string) string {
	base := Preferred(requested)
	return base + "," + base + "-.*"
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	if base := Base(code); base != "" {
		if e := lookup(base); e != nil {
			return e.display
		}
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
