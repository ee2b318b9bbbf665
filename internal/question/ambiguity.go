package question

import (
	"fmt"
	"strings"

	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

const minSourceForAmbiguity = 100

// AmbiguityDetector flags questions likely to have more than one defensible
// answer. Every rule is a pure scan over the prompt/options/source; rules are
// pattern-level language-agnostic and draw their vocabulary from the
// embedded locale tables.
type AmbiguityDetector struct {
	log    *logger.Logger
	tables map[string]*localeTable
}

func NewAmbiguityDetector(log *logger.Logger) (*AmbiguityDetector, error) {
	tables, err := loadLocales()
	if err != nil {
		return nil, err
	}
	return &AmbiguityDetector{
		log:    log.With("service", "AmbiguityDetector"),
		tables: tables,
	}, nil
}

// Detect returns human-readable ambiguity findings. It returns nothing when
// the source text is absent or too short to judge plausibility against, and
// restricts itself to the calculation-pattern rule when the options are
// predominantly numeric.
func (d *AmbiguityDetector) Detect(prompt string, options []string, correctIndex int, sourceText string) []string {
	if len(strings.TrimSpace(sourceText)) < minSourceForAmbiguity {
		return nil
	}

	numericOpts := 0
	for _, o := range options {
		if isNumericLiteral(o) {
			numericOpts++
		}
	}

	var issues []string
	if numericOpts >= 3 {
		issues = append(issues, d.checkMemorizedCalculation(prompt, options, numericOpts)...)
	}
	if numericOpts*2 > len(options) {
		return issues
	}

	issues = append(issues, d.checkVagueInterrogative(prompt, options, sourceText)...)
	issues = append(issues, d.checkCategoryPileUp(prompt, options)...)
	issues = append(issues, d.checkInclusiveConjunction(prompt)...)
	issues = append(issues, d.checkSynonymClusters(options)...)
	issues = append(issues, d.checkFormulaPrefix(prompt, options)...)
	return issues
}

// rawWords keeps every token including short ones, for conjunction and
// first-word checks where "or"/"y"/"o" matter.
func rawWords(s string) []string {
	return wordRE.FindAllString(strings.ToLower(s), -1)
}

func isNumericLiteral(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	digits, other := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("$€£%.,-+ ():xX", r):
			// currency, separators, sign, percent, multiplier
		default:
			other++
		}
	}
	return digits > 0 && digits >= other
}

func (d *AmbiguityDetector) hasDisambiguator(prompt string) bool {
	for _, t := range d.tables {
		if _, ok := containsAnyWord(prompt, t.Disambiguators); ok {
			return true
		}
	}
	return false
}

func (d *AmbiguityDetector) checkVagueInterrogative(prompt string, options []string, sourceText string) []string {
	words := rawWords(prompt)
	if len(words) == 0 {
		return nil
	}
	first := words[0]

	opensVague := false
	for _, t := range d.tables {
		for _, q := range t.Interrogatives {
			if first == strings.ToLower(q) {
				opensVague = true
				break
			}
		}
	}
	if !opensVague || d.hasDisambiguator(prompt) {
		return nil
	}

	// The question is only ambiguous if several options look independently
	// plausible: overlapping the prompt's keywords or appearing in source.
	plausible := 0
	for _, o := range options {
		if OverlapCount(o, prompt) > 0 || OverlapCount(o, sourceText) > 0 {
			plausible++
		}
	}
	if plausible > 2 {
		return []string{fmt.Sprintf(
			"prompt opens with a vague interrogative and %d options look independently plausible; add a qualifier such as \"primary\" or \"best\"",
			plausible,
		)}
	}
	return nil
}

func (d *AmbiguityDetector) checkCategoryPileUp(prompt string, options []string) []string {
	if d.hasDisambiguator(prompt) {
		return nil
	}
	var issues []string
	for _, t := range d.tables {
		for _, noun := range t.CategoryNouns {
			count := 0
			for _, o := range options {
				if containsWord(o, noun) {
					count++
				}
			}
			if count >= 3 {
				issues = append(issues, fmt.Sprintf(
					"%d options are instances of the same category %q and the prompt has no disambiguating qualifier",
					count, noun,
				))
			}
		}
	}
	return issues
}

func (d *AmbiguityDetector) checkInclusiveConjunction(prompt string) []string {
	lower := strings.ToLower(prompt)
	for _, t := range d.tables {
		stripped := lower
		for _, idiom := range t.BinaryIdioms {
			stripped = strings.ReplaceAll(stripped, strings.ToLower(idiom), " ")
		}
		words := rawWords(stripped)
		for _, conj := range t.Conjunctions {
			for _, w := range words {
				if w == strings.ToLower(conj) {
					return []string{fmt.Sprintf(
						"prompt contains the inclusive conjunction %q; consider splitting into separate single-answer questions",
						conj,
					)}
				}
			}
		}
	}
	return nil
}

func (d *AmbiguityDetector) checkMemorizedCalculation(prompt string, options []string, numericOpts int) []string {
	for _, t := range d.tables {
		if term, ok := containsAnyWord(prompt, t.ComputedTerms); ok {
			return []string{fmt.Sprintf(
				"prompt asks for the computed quantity %q and %d options are numeric literals; this rewards memorizing the result rather than applying the method",
				term, numericOpts,
			)}
		}
	}
	return nil
}

func (d *AmbiguityDetector) checkSynonymClusters(options []string) []string {
	var issues []string
	for _, t := range d.tables {
		for _, group := range t.SynonymGroups {
			hits := 0
			for _, o := range options {
				if _, ok := containsAnyWord(o, group); ok {
					hits++
				}
			}
			if hits >= 2 {
				issues = append(issues, fmt.Sprintf(
					"%d options fall in the same synonym group (%s); they may be interchangeable answers",
					hits, strings.Join(group, "/"),
				))
			}
		}
	}
	return issues
}

func (d *AmbiguityDetector) checkFormulaPrefix(prompt string, options []string) []string {
	var issues []string
	for _, t := range d.tables {
		for _, re := range t.formulaRE {
			m := re.FindStringSubmatch(prompt)
			if len(m) < 2 {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(m[1]))
			if name == "" {
				continue
			}

			revealing := -1
			plain := 0
			for i, o := range options {
				lo := strings.ToLower(strings.TrimSpace(o))
				if strings.HasPrefix(lo, name+" =") || strings.HasPrefix(lo, name+"=") {
					revealing = i
				} else {
					plain++
				}
			}
			// When every option carries the same prefix the formatting is
			// consistent rather than revealing.
			if revealing >= 0 && plain >= 2 {
				issues = append(issues, fmt.Sprintf(
					"option %d starts with %q and gives away the asked-for formula by construction",
					revealing, m[1]+" =",
				))
			}
		}
	}
	return issues
}
