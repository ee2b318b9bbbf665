package question

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// localeTable is one language's detector vocabulary. Tables are data, not
// code: adding a locale means adding a YAML file.
type localeTable struct {
	Locale          string              `yaml:"locale"`
	Interrogatives  []string            `yaml:"interrogatives"`
	Disambiguators  []string            `yaml:"disambiguators"`
	Conjunctions    []string            `yaml:"conjunctions"`
	BinaryIdioms    []string            `yaml:"binary_idioms"`
	CategoryNouns   []string            `yaml:"category_nouns"`
	ComputedTerms   []string            `yaml:"computed_terms"`
	FormulaPatterns []string            `yaml:"formula_patterns"`
	SynonymGroups   [][]string          `yaml:"synonym_groups"`
	AdminPatterns   []string            `yaml:"admin_patterns"`
	AdminKeywords   map[string][]string `yaml:"admin_keywords"`

	formulaRE []*regexp.Regexp
	adminRE   []*regexp.Regexp
}

func loadLocales() (map[string]*localeTable, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	tables := make(map[string]*localeTable, len(entries))
	for _, e := range entries {
		raw, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var t localeTable
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if t.Locale == "" {
			return nil, fmt.Errorf("%s: missing locale id", e.Name())
		}
		for _, p := range t.FormulaPatterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("%s: formula pattern %q: %w", e.Name(), p, err)
			}
			t.formulaRE = append(t.formulaRE, re)
		}
		for _, p := range t.AdminPatterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("%s: admin pattern %q: %w", e.Name(), p, err)
			}
			t.adminRE = append(t.adminRE, re)
		}
		tables[t.Locale] = &t
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no locale tables embedded")
	}
	return tables, nil
}

func (t *localeTable) adminCategories() []string {
	cats := make([]string, 0, len(t.AdminKeywords))
	for c := range t.AdminKeywords {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

func containsWord(text string, word string) bool {
	for _, tok := range Tokens(text) {
		if tok == strings.ToLower(word) {
			return true
		}
	}
	return false
}

func containsAnyWord(text string, words []string) (string, bool) {
	set := TokenSet(text)
	for _, w := range words {
		lw := strings.ToLower(w)
		if strings.Contains(lw, " ") {
			if strings.Contains(strings.ToLower(text), lw) {
				return w, true
			}
			continue
		}
		if _, ok := set[lw]; ok {
			return w, true
		}
	}
	return "", false
}
