package query

import "math"

// bitapOptions configures bitapMatch, a Fuse.js-shaped approximate string match: a
// single-pattern bitap search (Wu-Manber) returning both a boolean hit
// and a 0 (perfect) to 1 (no match) score, honoring the same
// threshold/distance/location parameters Fuse.js exposes. The teacher
// has no equivalent of this in Go — its fuzzy matching lives entirely
// inside DuckDB's rapidfuzz_ratio/rapidfuzz_token_set_ratio extension
// functions (internal/database/search_fuzzy.go) — so this is a ported
// algorithm rather than an adapted teacher file; see DESIGN.md for the
// library-search trail that led here.
type bitapOptions struct {
	Threshold       float64
	Distance        int
	Location        int
	MinMatchLength  int
	IgnoreLocation  bool
	IgnoreFieldNorm bool
}

const bitapMaxPatternLength = 32

// bitapMatch scores needle against text. ok is false when the score
// exceeds Threshold or the needle is shorter than MinMatchLength.
func bitapMatch(text, needle string, opts bitapOptions) (score float64, ok bool) {
	if len(needle) == 0 {
		return 0, true
	}
	if len(needle) < opts.MinMatchLength {
		return 1, false
	}
	runesNeedle := []rune(needle)
	if len(runesNeedle) > bitapMaxPatternLength {
		runesNeedle = runesNeedle[:bitapMaxPatternLength]
		needle = string(runesNeedle)
	}
	textRunes := []rune(text)

	// Exact substring short-circuit: no edit errors, so the score is
	// only the proximity penalty of the match index against Location
	// (0 when IgnoreLocation), still subject to Threshold.
	if idx := indexOfRunes(textRunes, runesNeedle); idx >= 0 {
		loc := idx
		if opts.IgnoreLocation {
			return 0, true
		}
		score = bitapProximityScore(loc, opts.Location, len(runesNeedle), opts.Distance)
		return score, score <= opts.Threshold
	}

	patternAlphabet := bitapAlphabet(runesNeedle)
	bestLoc, distErr := bitapSearch(textRunes, runesNeedle, patternAlphabet, opts)
	if bestLoc < 0 {
		return 1, false
	}
	score = distErr
	if score > opts.Threshold {
		return score, false
	}
	return score, true
}

func indexOfRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func bitapAlphabet(pattern []rune) map[rune]uint32 {
	alphabet := make(map[rune]uint32, len(pattern))
	for i, c := range pattern {
		alphabet[c] |= 1 << uint(len(pattern)-i-1)
	}
	return alphabet
}

// bitapSearch runs Wu-Manber bounded-error search for the allowed edit
// distance implied by Threshold, returning the best match location and
// its normalized score (0 perfect .. 1 worst).
func bitapSearch(text, pattern []rune, alphabet map[rune]uint32, opts bitapOptions) (int, float64) {
	patternLen := len(pattern)
	textLen := len(text)
	maxErrors := patternLen // upper bound; threshold prunes in practice

	searchLocStart := 0
	searchLocEnd := textLen
	if !opts.IgnoreLocation && opts.Distance > 0 {
		searchLocStart = maxInt(0, opts.Location-opts.Distance)
		searchLocEnd = minInt(textLen, opts.Location+opts.Distance+patternLen)
	}

	bestLoc := -1
	bestScore := opts.Threshold

	var lastRowArr []uint32
	for errCount := 0; errCount <= maxErrors; errCount++ {
		row := make([]uint32, textLen+2)
		var mask uint32 = 1 << uint(patternLen-1)
		row[textLen+1] = (1 << uint(errCount+1)) - 1

		for j := textLen; j >= searchLocStart; j-- {
			if j > searchLocEnd {
				row[j] = row[j+1]
				continue
			}
			charMatch := alphabet[charAt(text, j-1)]
			if errCount == 0 {
				row[j] = ((row[j+1] << 1) | 1) & charMatch
			} else {
				row[j] = (((row[j+1] << 1) | 1) & charMatch) |
					(((lastRowArr[j+1] | lastRowArr[j]) << 1) | 1) | lastRowArr[j+1]
			}
			if row[j]&mask != 0 {
				loc := j - 1
				score := bitapProximityScore(loc, opts.Location, patternLen, opts.Distance)
				score = bitapErrorScore(errCount, patternLen, score)
				if score <= bestScore {
					bestScore = score
					bestLoc = loc
				} else if bestLoc >= 0 {
					break
				}
			}
		}
		if bestLoc >= 0 && float64(errCount) > bestScore*float64(patternLen) {
			break
		}
		lastRowArr = row
	}
	return bestLoc, bestScore
}

func charAt(runes []rune, i int) rune {
	if i < 0 || i >= len(runes) {
		return 0
	}
	return runes[i]
}

// bitapProximityScore penalizes matches far from the expected location,
// mirroring Fuse.js's computeLocationScore.
func bitapProximityScore(matchLoc, expectedLoc, patternLen, distance int) float64 {
	if distance <= 0 {
		return 0
	}
	d := math.Abs(float64(matchLoc - expectedLoc))
	return d / float64(distance)
}

func bitapErrorScore(errCount, patternLen int, proximity float64) float64 {
	if patternLen == 0 {
		return proximity
	}
	editScore := float64(errCount) / float64(patternLen)
	return math.Min(1, editScore+proximity)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
