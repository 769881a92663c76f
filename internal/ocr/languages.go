package ocr

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultLanguage is used when no language is requested.
const DefaultLanguage = "eng"

// isoToTesseract maps common two-letter codes to Tesseract traineddata names.
var isoToTesseract = map[string]string{
	"ar":     "ara",
	"ch_sim": "chi_sim",
	"ch_tra": "chi_tra",
	"de":     "deu",
	"en":     "eng",
	"es":     "spa",
	"fr":     "fra",
	"hi":     "hin",
	"it":     "ita",
	"ja":     "jpn",
	"ko":     "kor",
	"nl":     "nld",
	"pl":     "pol",
	"pt":     "por",
	"ru":     "rus",
	"th":     "tha",
	"tr":     "tur",
	"uk":     "ukr",
	"vi":     "vie",
	"zh":     "chi_sim",
}

// Tesseract resolves language names to traineddata files on disk.
var languagePattern = regexp.MustCompile(`^[a-z][a-z_]*$`)

// NormalizeLanguages lowercases, maps and deduplicates language codes.
// An empty input yields DefaultLanguage. Codes that could not name a
// traineddata file are rejected.
func NormalizeLanguages(langs []string) ([]string, error) {
	out := make([]string, 0, len(langs))
	seen := make(map[string]bool, len(langs))
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if mapped, ok := isoToTesseract[l]; ok {
			l = mapped
		}
		if !languagePattern.MatchString(l) {
			return nil, fmt.Errorf("invalid OCR language %q", l)
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		out = append(out, DefaultLanguage)
	}
	return out, nil
}
