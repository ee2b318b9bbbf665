package segment

import (
	"strings"
	"testing"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

func newTestSegmenter() *Segmenter {
	return NewSegmenter(logger.NewNop(), DefaultConfig())
}

func filler(topic string) string {
	sentence := "This section discusses " + topic + " in considerable depth with worked examples. "
	return strings.Repeat(sentence, 8)
}

func buildText(sections ...string) string {
	return strings.Join(sections, "\n\n")
}

func excerptFor(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func checkInvariants(t *testing.T, text string, bounds []domain.ChapterBoundary) {
	t.Helper()
	for i, b := range bounds {
		if b.StartPosition < 0 || b.EndPosition > len(text) {
			t.Fatalf("boundary %d out of range: [%d,%d) of %d", i, b.StartPosition, b.EndPosition, len(text))
		}
		if b.StartPosition >= b.EndPosition {
			t.Fatalf("boundary %d empty or inverted: [%d,%d)", i, b.StartPosition, b.EndPosition)
		}
		if b.Text != text[b.StartPosition:b.EndPosition] {
			t.Fatalf("boundary %d text does not match its span", i)
		}
		if i > 0 && b.StartPosition < bounds[i-1].EndPosition {
			t.Fatalf("boundary %d overlaps its predecessor", i)
		}
	}
}

func TestExtractChapterTextExactTitles(t *testing.T) {
	s := newTestSegmenter()

	text := buildText(
		"Front matter and acknowledgements for the course reader.",
		"Supply and Demand\n"+filler("market prices"),
		"Market Equilibrium\n"+filler("clearing conditions"),
		"Elasticity of Demand\n"+filler("responsiveness to price changes"),
	)
	chapters := []domain.ChapterMeta{
		{Index: 1, Title: "Supply and Demand"},
		{Index: 2, Title: "Market Equilibrium"},
		{Index: 3, Title: "Elasticity of Demand"},
	}

	bounds, err := s.ExtractChapterText(text, chapters)
	if err != nil {
		t.Fatalf("ExtractChapterText: %v", err)
	}
	if len(bounds) != 3 {
		t.Fatalf("boundaries = %d, want 3", len(bounds))
	}
	checkInvariants(t, text, bounds)
	for i, b := range bounds {
		if !strings.HasPrefix(strings.TrimSpace(b.Text), chapters[i].Title) {
			t.Fatalf("chapter %d text does not start at its heading: %q", i, excerptFor(b.Text))
		}
	}
	if bounds[len(bounds)-1].EndPosition != len(text) {
		t.Fatalf("last boundary must reach end of text")
	}
}

func TestExtractChapterTextAccentNormalized(t *testing.T) {
	s := newTestSegmenter()

	text := buildText(
		"Material introductorio del curso.",
		"INTRODUCCION A LA ECONOMIA\n"+filler("mercados y precios"),
		"POLITICA MONETARIA\n"+filler("bancos centrales"),
	)
	chapters := []domain.ChapterMeta{
		{Index: 1, Title: "Introducción a la economía"},
		{Index: 2, Title: "Política monetaria"},
	}

	bounds, err := s.ExtractChapterText(text, chapters)
	if err != nil {
		t.Fatalf("ExtractChapterText: %v", err)
	}
	checkInvariants(t, text, bounds)
	if !strings.Contains(bounds[0].Text, "INTRODUCCION") {
		t.Fatalf("accent-normalized match missed chapter 1: %q", excerptFor(bounds[0].Text))
	}
	if !strings.Contains(bounds[1].Text, "POLITICA MONETARIA") {
		t.Fatalf("accent-normalized match missed chapter 2: %q", excerptFor(bounds[1].Text))
	}
}

func TestExtractChapterTextInterpolatesUnresolved(t *testing.T) {
	s := newTestSegmenter()

	text := buildText(
		"Capital Budgeting\n"+filler("project selection"),
		filler("a middle stretch with no usable heading"),
		filler("another anonymous middle stretch"),
		"Dividend Policy\n"+filler("payout decisions"),
	)
	chapters := []domain.ChapterMeta{
		{Index: 1, Title: "Capital Budgeting"},
		{Index: 2, Title: "Zzyzx Qwfpal"},
		{Index: 3, Title: "Xkcdq Vbnmw"},
		{Index: 4, Title: "Dividend Policy"},
	}

	bounds, err := s.ExtractChapterText(text, chapters)
	if err != nil {
		t.Fatalf("ExtractChapterText: %v", err)
	}
	checkInvariants(t, text, bounds)

	first := bounds[0].StartPosition
	last := bounds[3].StartPosition
	for i := 1; i <= 2; i++ {
		if bounds[i].StartPosition <= first || bounds[i].StartPosition >= last {
			t.Fatalf("interpolated chapter %d start %d not between %d and %d",
				i, bounds[i].StartPosition, first, last)
		}
	}
	gap21 := bounds[2].StartPosition - bounds[1].StartPosition
	gap31 := last - bounds[1].StartPosition
	if gap21 <= 0 || gap31 <= gap21 {
		t.Fatalf("interpolated positions not spread: %d then %d", gap21, gap31)
	}
}

func TestExtractChapterTextMarkerFallback(t *testing.T) {
	s := newTestSegmenter()

	text := buildText(
		"Chapter 1\n"+filler("the very first topic of the reader"),
		"Chapter 2\n"+filler("the second topic with different terms"),
		"Chapter 3\n"+filler("the closing topic of the material"),
	)
	chapters := []domain.ChapterMeta{
		{Index: 1, Title: "Zzyzx Qwfpal"},
		{Index: 2, Title: "Xkcdq Vbnmw"},
		{Index: 3, Title: "Jqxzv Plmkh"},
	}

	bounds, err := s.ExtractChapterText(text, chapters)
	if err != nil {
		t.Fatalf("ExtractChapterText: %v", err)
	}
	checkInvariants(t, text, bounds)
	if bounds[len(bounds)-1].EndPosition != len(text) {
		t.Fatalf("last boundary must reach end of text")
	}
}

func TestExtractChapterTextTailClusteredTitles(t *testing.T) {
	s := newTestSegmenter()

	text := strings.Repeat("intro material. ", 6) +
		"Risk and Return covers volatility. " +
		"Beta"
	chapters := []domain.ChapterMeta{
		{Index: 1, Title: "Risk and Return"},
		{Index: 2, Title: "Beta"},
		{Index: 3, Title: "Zzyzx Qwfpal"},
	}

	bounds, err := s.ExtractChapterText(text, chapters)
	if err != nil {
		t.Fatalf("ExtractChapterText: %v", err)
	}
	if len(bounds) != 3 {
		t.Fatalf("boundaries = %d, want 3", len(bounds))
	}
	checkInvariants(t, text, bounds)
	if bounds[2].EndPosition != len(text) {
		t.Fatalf("last boundary must reach end of text")
	}
}

func TestExtractChapterTextWindowScan(t *testing.T) {
	s := newTestSegmenter()

	text := buildText(
		filler("introductory remarks about the reader"),
		filler("yield curves, duration, convexity and coupon bonds priced daily"),
	)
	chapters := []domain.ChapterMeta{
		{Index: 1, Title: "Qwfpal Zzyzx"},
		{Index: 2, Title: "Vbnmw Xkcdq", KeyConcepts: []string{"yield", "duration", "convexity", "coupon"}},
	}

	bounds, err := s.ExtractChapterText(text, chapters)
	if err != nil {
		t.Fatalf("ExtractChapterText: %v", err)
	}
	checkInvariants(t, text, bounds)
	if !strings.Contains(bounds[1].Text, "convexity") {
		t.Fatalf("window scan missed the concept-bearing region: %q", excerptFor(bounds[1].Text))
	}
}

func TestExtractChapterTextClampsOversizedChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxChunk = 600
	s := NewSegmenter(logger.NewNop(), cfg)

	text := buildText(
		"Risk and Return\n" + strings.Repeat(filler("an extremely long single chapter"), 4),
	)
	bounds, err := s.ExtractChapterText(text, []domain.ChapterMeta{{Index: 1, Title: "Risk and Return"}})
	if err != nil {
		t.Fatalf("ExtractChapterText: %v", err)
	}
	if got := bounds[0].EndPosition - bounds[0].StartPosition; got > cfg.MaxChunk {
		t.Fatalf("chunk size %d exceeds max %d", got, cfg.MaxChunk)
	}
}

func TestExtractChapterTextInputErrors(t *testing.T) {
	s := newTestSegmenter()

	if _, err := s.ExtractChapterText("   ", []domain.ChapterMeta{{Index: 1, Title: "A"}}); err == nil {
		t.Fatalf("expected error for empty text")
	}
	if _, err := s.ExtractChapterText("some text", nil); err == nil {
		t.Fatalf("expected error for empty chapter list")
	}
}

func TestFoldTextMapsOffsets(t *testing.T) {
	folded, offsets := foldText("Política")
	if folded != "politica" {
		t.Fatalf("folded = %q", folded)
	}
	if len(offsets) != len(folded) {
		t.Fatalf("offsets = %d, want %d", len(offsets), len(folded))
	}
	idx := strings.Index(folded, "tica")
	orig := offsets[idx]
	if !strings.HasPrefix("Política"[orig:], "tica") {
		t.Fatalf("offset table maps %d to %q", orig, "Política"[orig:])
	}
}
