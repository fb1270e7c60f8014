package identity

import (
	"testing"

	"cardarb/internal/domain"
)

func TestResolve_PSA10(t *testing.T) {
	res, ok := Resolve("PSA 10 Charizard VMAX 020/189", "")
	if !ok {
		t.Fatal("expected match")
	}
	if res.Grader != domain.GraderPSA || res.Grade != 10 {
		t.Errorf("expected PSA 10, got %s %d", res.Grader, res.Grade)
	}
	if res.Language != domain.LanguageEN {
		t.Errorf("expected EN, got %s", res.Language)
	}
	if res.Label != "Charizard VMAX 020/189" {
		t.Errorf("unexpected label %q", res.Label)
	}
	// Card number is kept in the label but dropped from the key.
	if res.NormalizedKey != "charizard vmax" {
		t.Errorf("unexpected key %q", res.NormalizedKey)
	}
}

func TestResolve_CompactPSAToken(t *testing.T) {
	res, ok := Resolve("PSA10 Mew ex", "")
	if !ok {
		t.Fatal("expected match")
	}
	if res.Grader != domain.GraderPSA || res.Grade != 10 {
		t.Errorf("expected PSA 10, got %s %d", res.Grader, res.Grade)
	}
	if res.NormalizedKey != "mew ex" {
		t.Errorf("unexpected key %q", res.NormalizedKey)
	}
}

func TestResolve_JapaneseTitle(t *testing.T) {
	res, ok := Resolve("JAPANESE PSA 10 Pikachu 025/025 12345", "")
	if !ok {
		t.Fatal("expected match")
	}
	if res.Language != domain.LanguageJP {
		t.Errorf("expected JP, got %s", res.Language)
	}
	// Language prefix, grading token and trailing inventory number are
	// stripped; the card number stays.
	if res.Label != "Pikachu 025/025" {
		t.Errorf("unexpected label %q", res.Label)
	}
	if res.NormalizedKey != "pikachu" {
		t.Errorf("unexpected key %q", res.NormalizedKey)
	}
}

func TestResolve_CGCPristine(t *testing.T) {
	res, ok := Resolve("CGC PRISTINE 10 Umbreon VMAX Alternate Art", "")
	if !ok {
		t.Fatal("expected match")
	}
	if res.Grader != domain.GraderCGC || res.Grade != 10 {
		t.Errorf("expected CGC 10, got %s %d", res.Grader, res.Grade)
	}
	if res.Label != "Umbreon VMAX Alternate Art" {
		t.Errorf("unexpected label %q", res.Label)
	}
}

func TestResolve_CGCHalfGradeCollapses(t *testing.T) {
	// Known lossy behavior: CGC 9.5 is tracked as grade 9.
	res, ok := Resolve("CGC 9.5 Lugia Neo Genesis", "")
	if !ok {
		t.Fatal("expected match")
	}
	if res.Grader != domain.GraderCGC || res.Grade != 9 {
		t.Errorf("expected CGC 9, got %s %d", res.Grader, res.Grade)
	}
}

func TestResolve_YearPrefixStripped(t *testing.T) {
	res, ok := Resolve("1999 PSA 10 Charizard Base Set Holo", "")
	if !ok {
		t.Fatal("expected match")
	}
	if res.Label != "Charizard Base Set Holo" {
		t.Errorf("unexpected label %q", res.Label)
	}
}

func TestResolve_CollectionFallbackGrader(t *testing.T) {
	// Grade token without a grader name: the collection's grader applies.
	res, ok := Resolve("Gem Mint 10 Blastoise Base Set", domain.GraderPSA)
	if !ok {
		t.Fatal("expected match")
	}
	if res.Grader != domain.GraderPSA || res.Grade != 10 {
		t.Errorf("expected PSA 10 via fallback, got %s %d", res.Grader, res.Grade)
	}

	// Without a collection fallback the same title is a non-match.
	if _, ok := Resolve("Gem Mint 10 Blastoise Base Set", ""); ok {
		t.Error("expected non-match without fallback grader")
	}
}

func TestResolve_ExplicitTokenBeatsFallback(t *testing.T) {
	res, ok := Resolve("CGC 10 Snorlax", domain.GraderPSA)
	if !ok {
		t.Fatal("expected match")
	}
	if res.Grader != domain.GraderCGC {
		t.Errorf("explicit CGC token should win over fallback, got %s", res.Grader)
	}
}

func TestResolve_NoGradeRejected(t *testing.T) {
	if _, ok := Resolve("Charizard Base Set Holo", ""); ok {
		t.Error("ungraded title should not resolve")
	}
}

func TestResolve_EmptyKeyRejected(t *testing.T) {
	if _, ok := Resolve("PSA 10", ""); ok {
		t.Error("title with nothing left after stripping should not resolve")
	}
	if _, ok := Resolve("   ", ""); ok {
		t.Error("blank title should not resolve")
	}
}

func TestResolve_KeyNormalizations(t *testing.T) {
	res, ok := Resolve("PSA 10 1st Edition Dialga Lv.X", "")
	if !ok {
		t.Fatal("expected match")
	}
	if res.NormalizedKey != "first edition dialga lvx" {
		t.Errorf("unexpected key %q", res.NormalizedKey)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	const title = "JAPANESE PSA 10 Umbreon VMAX 095/069 98765"
	first, ok := Resolve(title, domain.GraderPSA)
	if !ok {
		t.Fatal("expected match")
	}
	for i := 0; i < 5; i++ {
		again, ok := Resolve(title, domain.GraderPSA)
		if !ok || again != first {
			t.Fatalf("resolution not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		title string
		want  domain.Language
	}{
		{"Japanese Pikachu", domain.LanguageJP},
		{"Pikachu JPN Promo", domain.LanguageJP},
		{"Pikachu JP 001", domain.LanguageJP},
		{"Pikachu JP-001", domain.LanguageJP},
		{"Pikachu Base Set", domain.LanguageEN},
		// "JP" must be an isolated token, not a substring.
		{"Jupiter Strike", domain.LanguageEN},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.title); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tt.title, got, tt.want)
		}
	}
}
