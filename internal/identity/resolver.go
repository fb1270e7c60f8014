// Package identity derives canonical search identities from raw storefront
// product titles. Everything here is a pure function of its inputs so that
// reconciliation stays idempotent and the heuristics stay unit-testable.
//
// The heuristics are deliberately best-effort: ambiguous titles can
// misclassify (a "CGC 9.5" collapses to grade 9). That behavior is
// intentional and covered by tests.
package identity

import (
	"regexp"
	"strconv"
	"strings"

	"cardarb/internal/domain"
)

// Resolution is the canonical classification of a raw product title.
type Resolution struct {
	NormalizedKey string // dedup key, unique together with Language
	Label         string // display name, also used as market search text
	Language      domain.Language
	Grader        domain.Grader
	Grade         int
}

var (
	wordRe        = regexp.MustCompile(`[a-z0-9]+`)
	yearPrefixRe  = regexp.MustCompile(`^\d{4}\s+`)
	psaGradeRe    = regexp.MustCompile(`\bPSA\s*(\d{1,2})\b`)
	cgcGradeRe    = regexp.MustCompile(`\bCGC\s*(?:PRISTINE\s*)?(\d{1,2}(?:\.\d)?)\b`)
	bareGradeRe   = regexp.MustCompile(`\b(?:GEM\s*MINT|PRISTINE|MINT)\s+(\d{1,2})\b`)
	psaTokenRe    = regexp.MustCompile(`(?i)\bPSA\s*\d+(?:\.\d+)?\b`)
	cgcTokenRe    = regexp.MustCompile(`(?i)\bCGC\s*(?:PRISTINE\s*)?\d+(?:\.\d+)?\b`)
	trailingInvRe = regexp.MustCompile(`\s+\d{2,}$`)
	cardNumberRe  = regexp.MustCompile(`\b\d{1,4}[a-zA-Z]?\s*/\s*\d{1,4}\b`)
	hashNumberRe  = regexp.MustCompile(`#\d+`)
)

// languagePrefixes are stripped from the start of a title when deriving
// the label; the language itself is carried on the identity.
var languagePrefixes = []string{"JAPANESE ", "CHINESE ", "KOREAN "}

// Resolve classifies a raw title. fallbackGrader is the grading authority
// implied by the product's collection, used only when the title itself
// names a grade but not a grader. A title that yields no grader, no grade,
// or an empty normalized key is a non-match and must not be tracked.
func Resolve(rawTitle string, fallbackGrader domain.Grader) (Resolution, bool) {
	title := strings.TrimSpace(rawTitle)
	if title == "" {
		return Resolution{}, false
	}

	grader, grade, ok := detectGrading(title, fallbackGrader)
	if !ok {
		return Resolution{}, false
	}

	label := deriveLabel(title)
	key := normalizeKey(label)
	if key == "" {
		return Resolution{}, false
	}

	return Resolution{
		NormalizedKey: key,
		Label:         label,
		Language:      DetectLanguage(title),
		Grader:        grader,
		Grade:         grade,
	}, true
}

// detectGrading applies the ordered grading rules: explicit PSA tokens,
// then explicit CGC tokens (9.5 collapses to 9), then the collection
// fallback for titles that state a bare grade without naming the grader.
func detectGrading(title string, fallback domain.Grader) (domain.Grader, int, bool) {
	u := strings.ToUpper(title)

	if m := psaGradeRe.FindStringSubmatch(u); m != nil {
		grade, err := strconv.Atoi(m[1])
		if err == nil && grade > 0 {
			return domain.GraderPSA, grade, true
		}
	}

	if m := cgcGradeRe.FindStringSubmatch(u); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err == nil && f > 0 {
			return domain.GraderCGC, int(f), true
		}
	}

	if fallback != "" {
		if m := bareGradeRe.FindStringSubmatch(u); m != nil {
			grade, err := strconv.Atoi(m[1])
			if err == nil && grade > 0 {
				return fallback, grade, true
			}
		}
	}

	return "", 0, false
}

// DetectLanguage reports which language stream a title belongs to.
// Absence of any Japanese marker implies the default (EN) stream.
func DetectLanguage(title string) domain.Language {
	u := strings.ToUpper(title)
	if strings.Contains(u, "JAPANESE") ||
		strings.Contains(u, "JPN") ||
		strings.Contains(" "+u+" ", " JP ") ||
		strings.Contains(u, "JP-") ||
		strings.Contains(u, "JP_") {
		return domain.LanguageJP
	}
	return domain.LanguageEN
}

// deriveLabel strips grading and language noise from a title, keeping the
// card number so the label remains a usable market search string.
func deriveLabel(title string) string {
	t := strings.TrimSpace(title)
	t = yearPrefixRe.ReplaceAllString(t, "")

	u := strings.ToUpper(t)
	for _, prefix := range languagePrefixes {
		if strings.HasPrefix(u, prefix) {
			t = strings.TrimSpace(t[len(prefix):])
			break
		}
	}

	t = psaTokenRe.ReplaceAllString(t, " ")
	t = cgcTokenRe.ReplaceAllString(t, " ")
	t = strings.Join(strings.Fields(t), " ")
	t = trailingInvRe.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// normalizeKey turns a label into the deduplication key: card numbers
// removed, common punctuation variants normalized, lower-cased word
// tokens joined by single spaces.
func normalizeKey(label string) string {
	s := cardNumberRe.ReplaceAllString(label, " ")
	s = hashNumberRe.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "1st", "first")
	s = strings.ReplaceAll(s, "lv.x", "lvx")
	s = strings.ReplaceAll(s, "lv x", "lvx")
	return strings.Join(wordRe.FindAllString(s, -1), " ")
}
