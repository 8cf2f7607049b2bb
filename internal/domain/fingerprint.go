package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"
)

// Fingerprint returns a stable content hash for dedup purposes: SHA-256 hex
// of the lowercased, whitespace-collapsed text. Identical text always maps
// to the same fingerprint across restarts.
func Fingerprint(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// SimilarityScore returns the word-overlap ratio between two texts on a
// 0–1 scale: |shared words| / |smaller word set|. Symmetric by
// construction.
func SimilarityScore(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	smaller, larger := setA, setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}
	shared := 0
	for w := range smaller {
		if _, ok := larger[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

// TooSimilar reports whether candidate scores at or above threshold against
// any of recentTexts, along with the highest score seen.
func TooSimilar(recentTexts []string, candidate string, threshold float64) (bool, float64) {
	highest := 0.0
	for _, prev := range recentTexts {
		score := SimilarityScore(prev, candidate)
		if score > highest {
			highest = score
		}
	}
	return threshold > 0 && highest >= threshold, highest
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?:;\"'()[]")
		if len(w) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

// PickNonRecentIndex picks a uniformly-random template index in
// [0, templateCount) that does not appear in the last lookback entries of
// recentIndices. When every index was used recently it falls back to the
// least-recently-used one instead of failing.
func PickNonRecentIndex(templateCount int, recentIndices []int, lookback int, rng *rand.Rand) int {
	if templateCount <= 0 {
		return 0
	}
	if lookback > len(recentIndices) {
		lookback = len(recentIndices)
	}
	recent := recentIndices[len(recentIndices)-lookback:]

	used := make(map[int]struct{}, len(recent))
	for _, idx := range recent {
		used[idx] = struct{}{}
	}

	var candidates []int
	for i := 0; i < templateCount; i++ {
		if _, ok := used[i]; !ok {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) > 0 {
		return candidates[rng.Intn(len(candidates))]
	}

	// Everything was used recently: take the one seen longest ago.
	lastSeen := make(map[int]int, len(recent))
	for pos, idx := range recent {
		lastSeen[idx] = pos
	}
	best, bestPos := 0, len(recent)
	for i := 0; i < templateCount; i++ {
		if pos, ok := lastSeen[i]; ok && pos < bestPos {
			best, bestPos = i, pos
		}
	}
	return best
}
