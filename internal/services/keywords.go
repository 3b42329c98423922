package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// KeywordExtractor condenses a retrieval query into its most informative
// terms before the query is sent to the keyword-search service.
type KeywordExtractor struct {
	// Common stop words to filter out
	stopWords map[string]bool
	// Minimum keyword length
	minLength int
}

// NewKeywordExtractor creates a new keyword extractor
func NewKeywordExtractor() *KeywordExtractor {
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "been": true, "have": true, "has": true, "had": true, "do": true,
		"does": true, "did": true, "will": true, "would": true, "could": true, "should": true,
		"this": true, "that": true, "these": true, "those": true, "i": true, "you": true,
		"he": true, "she": true, "it": true, "we": true, "they": true, "my": true,
		"your": true, "his": true, "her": true, "its": true, "our": true, "their": true,
		"what": true, "which": true, "who": true, "how": true, "when": true, "where": true,
	}

	return &KeywordExtractor{
		stopWords: stopWords,
		minLength: 2,
	}
}

// KeywordResult represents a keyword with its frequency and importance
type KeywordResult struct {
	Word      string  `json:"word"`
	Frequency int     `json:"frequency"`
	Score     float64 `json:"score"`
	PosTag    string  `json:"pos_tag"`
}

// Extract returns up to limit keywords from text, scored by POS tag and
// frequency
func (ke *KeywordExtractor) Extract(text string, limit int) ([]KeywordResult, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	wordFreq := make(map[string]*KeywordResult)
	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)

		if ke.shouldSkipWord(word, tok.Tag) {
			continue
		}

		score := ke.calculateScore(tok.Tag)
		if existing, exists := wordFreq[word]; exists {
			existing.Frequency++
			existing.Score += score
		} else {
			wordFreq[word] = &KeywordResult{
				Word:      word,
				Frequency: 1,
				Score:     score,
				PosTag:    tok.Tag,
			}
		}
	}

	results := make([]KeywordResult, 0, len(wordFreq))
	for _, kr := range wordFreq {
		results = append(results, *kr)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// QueryString extracts keywords and joins them into a search query. Falls
// back to the raw text when extraction fails or yields nothing.
func (ke *KeywordExtractor) QueryString(text string, limit int) string {
	results, err := ke.Extract(text, limit)
	if err != nil || len(results) == 0 {
		return text
	}

	words := make([]string, len(results))
	for i, kr := range results {
		words[i] = kr.Word
	}
	return strings.Join(words, " ")
}

// shouldSkipWord filters stop words, short tokens and non-words
func (ke *KeywordExtractor) shouldSkipWord(word, tag string) bool {
	if len(word) < ke.minLength {
		return true
	}
	if ke.stopWords[word] {
		return true
	}
	// Keep nouns, verbs and adjectives only
	if !strings.HasPrefix(tag, "NN") && !strings.HasPrefix(tag, "VB") && !strings.HasPrefix(tag, "JJ") {
		return true
	}
	for _, r := range word {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return true
		}
	}
	return false
}

// calculateScore weights terms by their part of speech
func (ke *KeywordExtractor) calculateScore(tag string) float64 {
	switch {
	case strings.HasPrefix(tag, "NNP"):
		return 3.0 // proper nouns carry the most signal
	case strings.HasPrefix(tag, "NN"):
		return 2.5
	case strings.HasPrefix(tag, "JJ"):
		return 1.5
	case strings.HasPrefix(tag, "VB"):
		return 1.0
	default:
		return 0.5
	}
}
