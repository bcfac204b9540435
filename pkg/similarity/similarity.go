// Package similarity scores how much pieces of free text have in common.
package similarity

import (
	"strings"
	"unicode"
)

// Terms is a set of normalized words.
type Terms map[string]bool

// stopWords never count as terms.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "for": true, "from": true,
	"with": true, "about": true, "into": true, "to": true, "of": true,
	"in": true, "on": true, "at": true, "by": true, "it": true,
	"its": true, "which": true, "who": true, "what": true, "when": true,
	"where": true, "how": true, "why": true, "we": true, "you": true,
	"our": true, "my": true, "me": true, "any": true, "tell": true,
	"discuss": true, "discussed": true, "talk": true, "talked": true,
	"interaction": true, "interactions": true, "last": true,
}

// TermsOf tokenizes texts into one term set. Words shorter than three letters are dropped.
func TermsOf(texts ...string) Terms {
	terms := make(Terms)
	for _, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if len(w) >= 3 && !stopWords[w] {
				terms[w] = true
			}
		}
	}
	return terms
}

// Jaccard returns |a∩b| / |a∪b|: 1 for identical sets, 0 for no overlap.
func Jaccard(a, b Terms) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := intersection(a, b)
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Coverage returns the share of query terms found in doc.
// Unlike Jaccard it does not penalize long documents.
func Coverage(query, doc Terms) float64 {
	if len(query) == 0 {
		return 0.0
	}
	return float64(intersection(query, doc)) / float64(len(query))
}

func intersection(a, b Terms) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}

// Best returns the item whose text covers the most of query, first one on ties.
// ok is false when no item reaches threshold.
func Best[T any](query string, items []T, text func(T) string, threshold float64) (best T, score float64, ok bool) {
	q := TermsOf(query)
	if len(q) == 0 {
		return best, 0, false
	}
	for _, it := range items {
		s := Coverage(q, TermsOf(text(it)))
		if s > score {
			best, score = it, s
		}
	}
	if score < threshold || score == 0 {
		var zero T
		return zero, score, false
	}
	return best, score, true
}

// IsSimilarToAny reports whether text reaches threshold Jaccard similarity with any of others.
func IsSimilarToAny(text string, others []string, threshold float64) bool {
	terms := TermsOf(text)
	if len(terms) == 0 {
		return false
	}
	for _, o := range others {
		if Jaccard(terms, TermsOf(o)) >= threshold {
			return true
		}
	}
	return false
}
