// Package similarity compares transcripts so near-identical utterances can be dropped.
package similarity

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DuplicateThreshold is the score at or above which two transcripts are the same utterance.
const DuplicateThreshold = 0.8

// Similarity returns 1 - editDistance(a,b)/max(len(a),len(b)) over runes.
// Either input being empty yields 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// IsDuplicate reports whether next repeats prev under threshold
func IsDuplicate(prev, next string, threshold float64) bool {
	return Similarity(prev, next) >= threshold
}
