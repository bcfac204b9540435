package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTermsOf(t *testing.T) {
	terms := TermsOf("Discussed the Cardiozen trial data.", "Left 10 samples")
	assert.Equal(t, Terms{"cardiozen": true, "trial": true, "data": true, "left": true, "samples": true}, terms)
	assert.Empty(t, TermsOf("who did we talk to?"))
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b Terms
		want float64
	}{
		{"both empty", Terms{}, Terms{}, 1.0},
		{"one empty", Terms{"x": true}, Terms{}, 0.0},
		{"identical", Terms{"a": true, "b": true}, Terms{"a": true, "b": true}, 1.0},
		{"disjoint", Terms{"a": true}, Terms{"b": true}, 0.0},
		{"half", Terms{"a": true, "b": true}, Terms{"b": true, "c": true}, 1.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCoverage(t *testing.T) {
	q := TermsOf("cardiozen pricing")
	assert.InDelta(t, 0.5, Coverage(q, TermsOf("Cardiozen trial data and formulary")), 1e-9)
	assert.InDelta(t, 1.0, Coverage(q, TermsOf("pricing of Cardiozen")), 1e-9)
	assert.Zero(t, Coverage(Terms{}, q))
}

func TestBest(t *testing.T) {
	notes := []string{
		"Dr. Evans: trial data",
		"Dr. Patel: Cardiozen pricing, samples",
		"Dr. Wu: Cardiozen formulary",
	}
	id := func(s string) string { return s }

	got, score, ok := Best("What did we discuss about Cardiozen pricing?", notes, id, 0.5)
	assert.True(t, ok)
	assert.Equal(t, notes[1], got)
	assert.InDelta(t, 1.0, score, 1e-9)

	got, _, ok = Best("Cardiozen", notes, id, 0.5)
	assert.True(t, ok)
	assert.Equal(t, notes[1], got, "first match wins ties")

	_, _, ok = Best("Tell me a joke", notes, id, 0.5)
	assert.False(t, ok)

	_, _, ok = Best("who?", notes, id, 0.5)
	assert.False(t, ok)
}

func TestIsSimilarToAny(t *testing.T) {
	existing := []string{"Met Dr. Evans, discussed trial data", "Called Dr. Patel about pricing"}
	assert.True(t, IsSimilarToAny("Met Dr. Evans and discussed the trial data", existing, 0.8))
	assert.False(t, IsSimilarToAny("Emailed Dr. Wu the formulary", existing, 0.5))
	assert.False(t, IsSimilarToAny("the and of", existing, 0.1))
}
