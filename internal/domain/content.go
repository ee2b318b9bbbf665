package domain

// CognitiveLevel is a coarse skill classification borrowed from Bloom's taxonomy.
type CognitiveLevel string

const (
	LevelRemember   CognitiveLevel = "remember"
	LevelUnderstand CognitiveLevel = "understand"
	LevelApply      CognitiveLevel = "apply"
)

func (c CognitiveLevel) Valid() bool {
	switch c {
	case LevelRemember, LevelUnderstand, LevelApply:
		return true
	}
	return false
}

// Question is one generated quiz item in canonical form. A question that has
// passed validation always has exactly 4 options and CorrectIndex in [0,3].
type Question struct {
	Prompt          string         `json:"prompt"`
	Options         []string       `json:"options"`
	CorrectIndex    int            `json:"correct_index"`
	Explanation     string         `json:"explanation,omitempty"`
	SourceReference string         `json:"source_reference,omitempty"`
	CognitiveLevel  CognitiveLevel `json:"cognitive_level,omitempty"`
	ConceptTested   string         `json:"concept_tested,omitempty"`
}

// Severity partitions validation findings into blocking and informational.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is one finding from the structural validator.
type ValidationIssue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the outcome of a structural check. IsValid holds
// exactly when Errors is empty. Fixed carries an auto-repaired variant when
// the original had structural errors that could be patched.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
	Fixed    *Question         `json:"fixed,omitempty"`
}

// FactCategory classifies an extracted claim.
type FactCategory string

const (
	FactDefinition   FactCategory = "definition"
	FactFormula      FactCategory = "formula"
	FactProcess      FactCategory = "process"
	FactRelationship FactCategory = "relationship"
	FactStatistic    FactCategory = "statistic"
	FactExample      FactCategory = "example"
)

func (c FactCategory) Valid() bool {
	switch c {
	case FactDefinition, FactFormula, FactProcess, FactRelationship, FactStatistic, FactExample:
		return true
	}
	return false
}

// Fact is an atomic verifiable claim extracted from source text. SourceQuote
// is a literal excerpt of the text the fact was drawn from.
type Fact struct {
	ID          string       `json:"id"`
	Statement   string       `json:"statement"`
	SourceQuote string       `json:"source_quote"`
	Category    FactCategory `json:"category"`
	Confidence  float64      `json:"confidence"`
	Keywords    []string     `json:"keywords,omitempty"`
}

// SemanticValidationResult is the grounding check for one question.
type SemanticValidationResult struct {
	IsValid        bool     `json:"is_valid"`
	Confidence     float64  `json:"confidence"`
	MatchedFactIDs []string `json:"matched_fact_ids,omitempty"`
	Issues         []string `json:"issues,omitempty"`
}

// ChapterMeta is the abstract chapter description produced upstream of
// segmentation (title plus whatever summary/concepts generation declared).
type ChapterMeta struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	KeyConcepts []string `json:"key_concepts,omitempty"`
}

// ChapterBoundary is a resolved chapter span inside the raw source text.
// 0 <= StartPosition < EndPosition <= len(source); consecutive spans never
// overlap.
type ChapterBoundary struct {
	Index         int    `json:"index"`
	Title         string `json:"title"`
	StartPosition int    `json:"start_position"`
	EndPosition   int    `json:"end_position"`
	Text          string `json:"text"`
}
