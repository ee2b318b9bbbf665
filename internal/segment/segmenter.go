package segment

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/question"
)

// Config carries the segmentation calibration. WindowOverlapMin is the
// share of chapter-metadata tokens a sliding window must cover before it
// counts as a located position.
type Config struct {
	WindowSize       int
	WindowOverlapMin float64
	MinChunk         int
	MaxChunk         int
	SnapWindow       int
}

func DefaultConfig() Config {
	return Config{
		WindowSize:       400,
		WindowOverlapMin: 0.5,
		MinChunk:         200,
		MaxChunk:         24000,
		SnapWindow:       250,
	}
}

// Segmenter resolves abstract chapter descriptions to concrete spans of the
// raw source text. Location is best-effort per chapter; the fallback ladder
// degrades from exact title matching down to marker-assisted equal division.
type Segmenter struct {
	log *logger.Logger
	cfg Config
}

func NewSegmenter(log *logger.Logger, cfg Config) *Segmenter {
	if cfg.WindowSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Segmenter{
		log: log.With("service", "Segmenter"),
		cfg: cfg,
	}
}

// ExtractChapterText maps every chapter onto a span of fullText. Returned
// boundaries are ordered, non-overlapping and cover valid UTF-8 cut points.
func (s *Segmenter) ExtractChapterText(fullText string, chapters []domain.ChapterMeta) ([]domain.ChapterBoundary, error) {
	if strings.TrimSpace(fullText) == "" {
		return nil, fmt.Errorf("empty source text")
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("no chapters to segment")
	}

	n := len(chapters)
	positions := make([]int, n)
	resolved := make([]bool, n)

	folded, offsets := foldText(fullText)
	resolvedCount := 0
	for i, ch := range chapters {
		if pos, ok := s.locate(fullText, folded, offsets, ch); ok {
			positions[i] = pos
			resolved[i] = true
			resolvedCount++
		}
	}

	if resolvedCount*2 >= n {
		s.fillUnresolved(positions, resolved, len(fullText))
	} else {
		s.markerAssistedDivision(fullText, positions)
		s.log.Warn("segmenting by marker-assisted equal division",
			"chapters", n,
			"resolved", resolvedCount,
		)
	}

	s.enforceOrdering(positions, len(fullText))
	for i := range positions {
		positions[i] = s.snapToBreak(fullText, positions[i])
	}
	s.enforceOrdering(positions, len(fullText))

	boundaries := make([]domain.ChapterBoundary, n)
	for i, ch := range chapters {
		start := positions[i]
		end := len(fullText)
		if i+1 < n {
			end = positions[i+1]
		}
		if end-start > s.cfg.MaxChunk {
			end = s.snapBackward(fullText, start+s.cfg.MaxChunk)
			if end <= start {
				end = alignRune(fullText, start+s.cfg.MaxChunk)
			}
		}
		boundaries[i] = domain.ChapterBoundary{
			Index:         ch.Index,
			Title:         ch.Title,
			StartPosition: start,
			EndPosition:   end,
			Text:          fullText[start:end],
		}
	}

	s.log.Debug("segmented source text",
		"chapters", n,
		"resolved", resolvedCount,
		"text_len", len(fullText),
	)
	return boundaries, nil
}

// locate runs the strategy ladder for one chapter.
func (s *Segmenter) locate(fullText, folded string, offsets []int, ch domain.ChapterMeta) (int, bool) {
	title := strings.TrimSpace(ch.Title)
	if title == "" {
		return 0, false
	}

	if pos := strings.Index(strings.ToLower(fullText), strings.ToLower(title)); pos >= 0 {
		return alignRune(fullText, pos), true
	}

	if foldedTitle, _ := foldText(title); foldedTitle != "" {
		if fi := strings.Index(folded, foldedTitle); fi >= 0 && fi < len(offsets) {
			return offsets[fi], true
		}
	}

	if pos, ok := s.tokenRegexMatch(fullText, title); ok {
		return pos, true
	}
	if pos, ok := s.windowScan(fullText, ch); ok {
		return pos, true
	}
	return s.longestWordMatch(fullText, title)
}

func (s *Segmenter) tokenRegexMatch(fullText, title string) (int, bool) {
	tokens := question.Tokens(title)
	if len(tokens) < 2 {
		return 0, false
	}
	if len(tokens) > 4 {
		tokens = tokens[:4]
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(quoted, `[^\p{L}\p{N}]{1,12}`))
	if err != nil {
		return 0, false
	}
	if loc := re.FindStringIndex(fullText); loc != nil {
		return loc[0], true
	}
	return 0, false
}

// windowScan slides fixed-size windows over the text and keeps the window
// covering the largest share of the probe tokens (title, summary, declared
// key concepts). Only a window scoring at least the configured minimum
// counts.
func (s *Segmenter) windowScan(fullText string, ch domain.ChapterMeta) (int, bool) {
	probes := []string{ch.Title}
	if strings.TrimSpace(ch.Summary) != "" {
		probes = append(probes, ch.Summary)
	}
	if len(ch.KeyConcepts) > 0 {
		probes = append(probes, strings.Join(ch.KeyConcepts, " "))
	}

	step := s.cfg.WindowSize / 2
	if step < 1 {
		step = 1
	}

	bestScore := 0.0
	bestPos := 0
	for _, probe := range probes {
		if strings.TrimSpace(probe) == "" {
			continue
		}
		for start := 0; start < len(fullText); start += step {
			end := start + s.cfg.WindowSize
			if end > len(fullText) {
				end = len(fullText)
			}
			ws := alignRune(fullText, start)
			we := alignRune(fullText, end)
			if ws >= we {
				break
			}
			if score := question.OverlapRatio(probe, fullText[ws:we]); score > bestScore {
				bestScore = score
				bestPos = ws
			}
			if end == len(fullText) {
				break
			}
		}
	}
	if bestScore >= s.cfg.WindowOverlapMin {
		return bestPos, true
	}
	return 0, false
}

func (s *Segmenter) longestWordMatch(fullText, title string) (int, bool) {
	longest := ""
	for _, t := range question.Tokens(title) {
		if len(t) > len(longest) {
			longest = t
		}
	}
	if len(longest) < 4 {
		return 0, false
	}
	if pos := strings.Index(strings.ToLower(fullText), longest); pos >= 0 {
		return alignRune(fullText, pos), true
	}
	return 0, false
}

// fillUnresolved interpolates unresolved chapter positions between the
// nearest resolved neighbors, or extrapolates from a single side.
func (s *Segmenter) fillUnresolved(positions []int, resolved []bool, textLen int) {
	n := len(positions)
	for i := 0; i < n; i++ {
		if resolved[i] {
			continue
		}
		prev, next := -1, -1
		for j := i - 1; j >= 0; j-- {
			if resolved[j] {
				prev = j
				break
			}
		}
		for j := i + 1; j < n; j++ {
			if resolved[j] {
				next = j
				break
			}
		}
		switch {
		case prev >= 0 && next >= 0:
			span := positions[next] - positions[prev]
			positions[i] = positions[prev] + span*(i-prev)/(next-prev)
		case prev >= 0:
			remaining := textLen - positions[prev]
			positions[i] = positions[prev] + remaining*(i-prev)/(n-prev)
		case next >= 0:
			positions[i] = positions[next] * i / maxInt(next, 1)
		default:
			positions[i] = textLen * i / n
		}
	}
}

var markerRES = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s{0,3}\d{1,2}[.)]\s+\S`),
	regexp.MustCompile(`(?mi)^\s{0,3}(?:chapter|kapitel|cap[íi]tulo)\s+\d+`),
	regexp.MustCompile(`(?m)^\s{0,3}[IVXLCDM]{1,7}[.)]\s+\S`),
	regexp.MustCompile(`(?m)^[A-Z0-9ÄÖÜÁÉÍÓÚÑ][A-Z0-9ÄÖÜÁÉÍÓÚÑ \-:,]{6,}$`),
}

// markerAssistedDivision assigns each chapter its equal-division offset,
// pulled to the nearest detected heading marker when one is close enough.
func (s *Segmenter) markerAssistedDivision(fullText string, positions []int) {
	n := len(positions)
	markers := detectMarkers(fullText)
	tolerance := len(fullText) / (2 * n)

	for i := range positions {
		expected := len(fullText) * i / n
		positions[i] = expected
		bestDist := tolerance + 1
		for _, m := range markers {
			if d := absInt(m - expected); d < bestDist {
				bestDist = d
				positions[i] = m
			}
		}
	}
}

func detectMarkers(fullText string) []int {
	seen := map[int]bool{}
	var markers []int
	for _, re := range markerRES {
		for _, loc := range re.FindAllStringIndex(fullText, -1) {
			if !seen[loc[0]] {
				seen[loc[0]] = true
				markers = append(markers, loc[0])
			}
		}
	}
	sort.Ints(markers)
	return markers
}

// enforceOrdering clamps positions into [0, textLen) and makes them strictly
// increasing so spans can never overlap or come out empty.
func (s *Segmenter) enforceOrdering(positions []int, textLen int) {
	n := len(positions)
	minGap := s.cfg.MinChunk
	if n > 0 && minGap > textLen/n {
		minGap = textLen / n
	}
	if minGap < 1 {
		minGap = 1
	}
	for i := range positions {
		if positions[i] < 0 {
			positions[i] = 0
		}
		if positions[i] > textLen {
			positions[i] = textLen
		}
		if i > 0 && positions[i] < positions[i-1]+minGap {
			positions[i] = positions[i-1] + minGap
			if positions[i] > textLen {
				positions[i] = textLen
			}
		}
	}
	// Positions pushed against the end of the text would leave the chapters
	// after them with empty spans. Walk backward and cap each position so
	// every later chapter keeps at least one byte.
	for i := n - 1; i >= 0; i-- {
		limit := textLen - (n - i)
		if limit < 0 {
			limit = 0
		}
		if positions[i] > limit {
			positions[i] = limit
		}
	}
}

// snapToBreak moves a position to the nearest paragraph break inside the
// snap window, falling back to the nearest sentence end, else leaves it.
func (s *Segmenter) snapToBreak(text string, pos int) int {
	pos = alignRune(text, pos)
	if pos <= 0 || pos >= len(text) {
		return pos
	}
	lo := pos - s.cfg.SnapWindow
	if lo < 0 {
		lo = 0
	}
	hi := pos + s.cfg.SnapWindow
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]

	best := -1
	bestDist := len(text)
	for off := 0; ; {
		idx := strings.Index(window[off:], "\n\n")
		if idx < 0 {
			break
		}
		abs := lo + off + idx + 2
		if d := absInt(abs - pos); d < bestDist {
			bestDist = d
			best = abs
		}
		off += idx + 2
	}
	if best >= 0 {
		return best
	}

	for abs := lo; abs < hi-1; abs++ {
		c := text[abs]
		if (c == '.' || c == '!' || c == '?') && isSpaceByte(text[abs+1]) {
			if d := absInt(abs + 2 - pos); d < bestDist {
				bestDist = d
				best = abs + 2
			}
		}
	}
	if best >= 0 && best <= len(text) {
		return alignRune(text, best)
	}
	return pos
}

// snapBackward finds the last natural break at or before pos.
func (s *Segmenter) snapBackward(text string, pos int) int {
	pos = alignRune(text, minInt(pos, len(text)))
	lo := pos - s.cfg.SnapWindow
	if lo < 0 {
		lo = 0
	}
	if idx := strings.LastIndex(text[lo:pos], "\n\n"); idx >= 0 {
		return lo + idx + 2
	}
	for abs := pos - 2; abs >= lo; abs-- {
		c := text[abs]
		if (c == '.' || c == '!' || c == '?') && isSpaceByte(text[abs+1]) {
			return alignRune(text, abs+2)
		}
	}
	return pos
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// alignRune backs pos up to the nearest UTF-8 rune boundary.
func alignRune(s string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(s) {
		return len(s)
	}
	for pos > 0 && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}

// foldText lowercases and strips accents, returning the folded string plus
// a folded-byte to original-byte offset table for mapping matches back.
func foldText(s string) (string, []int) {
	var b strings.Builder
	offsets := make([]int, 0, len(s))
	for i, r := range s {
		f := foldRune(r)
		for j := 0; j < len(f); j++ {
			offsets = append(offsets, i)
		}
		b.WriteString(f)
	}
	return b.String(), offsets
}

var accentFold = map[rune]string{
	'á': "a", 'à': "a", 'â': "a", 'ä': "a", 'ã': "a", 'å': "a",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'ö': "o", 'õ': "o",
	'ú': "u", 'ù': "u", 'û': "u", 'ü': "u",
	'ñ': "n", 'ç': "c", 'ß': "ss",
}

func foldRune(r rune) string {
	lower := strings.ToLower(string(r))
	folded, ok := accentFold[[]rune(lower)[0]]
	if !ok {
		return lower
	}
	return folded
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
