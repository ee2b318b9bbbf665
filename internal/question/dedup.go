package question

import (
	"sync"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// DefaultDedupThreshold is looser than the in-batch check on purpose:
// cross-chapter repetition hurts learning value more, so more borderline
// pairs should be caught.
const DefaultDedupThreshold = 0.65

type dedupRecord struct {
	chapterIndex   int
	normalizedText string
}

// DupResult is the verdict for one candidate text.
type DupResult struct {
	IsDuplicate        bool    `json:"is_duplicate"`
	DuplicateOfChapter int     `json:"duplicate_of_chapter,omitempty"`
	Similarity         float64 `json:"similarity,omitempty"`
}

// RemovedDuplicate details one question FilterQuestions dropped.
type RemovedDuplicate struct {
	Prompt             string  `json:"prompt"`
	DuplicateOfChapter int     `json:"duplicate_of_chapter"`
	Similarity         float64 `json:"similarity"`
}

// DedupTracker detects near-duplicate questions across every batch and
// chapter of one course-generation session. Once a question is tracked it
// stays tracked for the tracker's lifetime.
type DedupTracker struct {
	log       *logger.Logger
	threshold float64

	mu      sync.Mutex
	records []dedupRecord
}

func NewDedupTracker(log *logger.Logger, threshold float64) *DedupTracker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDedupThreshold
	}
	return &DedupTracker{
		log:       log.With("service", "DedupTracker"),
		threshold: threshold,
	}
}

// IsDuplicate compares text against every tracked question and reports the
// best match above the threshold. It does not track the text.
func (t *DedupTracker) IsDuplicate(text string) DupResult {
	norm := normalizeText(text)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bestMatchLocked(norm)
}

func (t *DedupTracker) bestMatchLocked(norm string) DupResult {
	best := DupResult{}
	for _, r := range t.records {
		if norm == r.normalizedText {
			return DupResult{IsDuplicate: true, DuplicateOfChapter: r.chapterIndex, Similarity: 1}
		}
		if sim := Jaccard(norm, r.normalizedText); sim >= t.threshold && sim > best.Similarity {
			best = DupResult{IsDuplicate: true, DuplicateOfChapter: r.chapterIndex, Similarity: sim}
		}
	}
	return best
}

// FilterQuestions drops cross-chapter duplicates and tracks every surviving
// question under chapterIndex.
func (t *DedupTracker) FilterQuestions(questions []domain.Question, chapterIndex int) ([]domain.Question, []RemovedDuplicate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := make([]domain.Question, 0, len(questions))
	var removed []RemovedDuplicate

	for _, q := range questions {
		norm := normalizeText(q.Prompt)
		if match := t.bestMatchLocked(norm); match.IsDuplicate {
			removed = append(removed, RemovedDuplicate{
				Prompt:             excerpt(q.Prompt, 80),
				DuplicateOfChapter: match.DuplicateOfChapter,
				Similarity:         match.Similarity,
			})
			continue
		}
		t.records = append(t.records, dedupRecord{chapterIndex: chapterIndex, normalizedText: norm})
		kept = append(kept, q)
	}

	if len(removed) > 0 {
		t.log.Info("removed cross-chapter duplicates",
			"chapter", chapterIndex,
			"removed", len(removed),
			"kept", len(kept),
		)
	}
	return kept, removed
}

// TrackedCount reports how many questions the session has accumulated.
func (t *DedupTracker) TrackedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
