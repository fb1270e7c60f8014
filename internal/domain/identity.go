package domain

import "time"

// Language identifies the language stream a card belongs to.
// Streams are priced independently: a Japanese print and its English
// counterpart are different tracked subjects.
type Language string

const (
	LanguageEN Language = "EN"
	LanguageJP Language = "JP"
)

// Grader identifies the professional grading authority.
type Grader string

const (
	GraderPSA Grader = "PSA"
	GraderCGC Grader = "CGC"
)

// SearchIdentity represents a canonical tracked subject, independent of
// which storefront lists it. Corresponds to search_identities table.
// (NormalizedKey, Language) is unique; rows are created on first sighting
// and never physically deleted.
type SearchIdentity struct {
	ID            int64
	NormalizedKey string   // lower-cased token key used for dedup
	Label         string   // display name, also the market search text
	Language      Language // EN | JP
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
