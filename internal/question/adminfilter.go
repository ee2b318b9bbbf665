package question

import (
	"fmt"
	"strings"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// Classification is the admin-content verdict for one question text.
type Classification struct {
	IsAdmin        bool   `json:"is_admin"`
	Reason         string `json:"reason,omitempty"`
	MatchedKeyword string `json:"matched_keyword,omitempty"`
}

// AdminFilter removes questions about course logistics (exam format,
// schedule, materials, staff) rather than subject matter. High-precision
// regexes run first; locale keyword lists catch the rest. First match wins.
type AdminFilter struct {
	log    *logger.Logger
	tables map[string]*localeTable
}

func NewAdminFilter(log *logger.Logger) (*AdminFilter, error) {
	tables, err := loadLocales()
	if err != nil {
		return nil, err
	}
	return &AdminFilter{
		log:    log.With("service", "AdminFilter"),
		tables: tables,
	}, nil
}

func (f *AdminFilter) Classify(text string) Classification {
	lower := strings.ToLower(text)

	for _, t := range f.tables {
		for _, re := range t.adminRE {
			if re.MatchString(lower) {
				return Classification{
					IsAdmin:        true,
					Reason:         fmt.Sprintf("matched %s administrative pattern", t.Locale),
					MatchedKeyword: re.String(),
				}
			}
		}
	}

	for _, t := range f.tables {
		for _, cat := range t.adminCategories() {
			if kw, ok := containsAnyWord(lower, t.AdminKeywords[cat]); ok {
				return Classification{
					IsAdmin:        true,
					Reason:         fmt.Sprintf("matched %s/%s keyword", t.Locale, cat),
					MatchedKeyword: kw,
				}
			}
		}
	}

	return Classification{IsAdmin: false}
}

// FilterBatchResult reports what the batch pass removed, for audit logs.
type FilterBatchResult struct {
	Kept    []domain.Question
	Removed []RemovedAdmin
}

type RemovedAdmin struct {
	Prompt  string `json:"prompt"`
	Reason  string `json:"reason"`
	Keyword string `json:"keyword,omitempty"`
}

func (f *AdminFilter) FilterBatch(questions []domain.Question) FilterBatchResult {
	res := FilterBatchResult{Kept: make([]domain.Question, 0, len(questions))}
	for _, q := range questions {
		c := f.Classify(q.Prompt)
		if !c.IsAdmin {
			res.Kept = append(res.Kept, q)
			continue
		}
		res.Removed = append(res.Removed, RemovedAdmin{
			Prompt:  excerpt(q.Prompt, 80),
			Reason:  c.Reason,
			Keyword: c.MatchedKeyword,
		})
	}
	if len(res.Removed) > 0 {
		f.log.Info("removed administrative questions",
			"removed", len(res.Removed),
			"kept", len(res.Kept),
		)
	}
	return res
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
