package dedupe

// Distance returns the Levenshtein edit distance between a and b, counted
// in runes, with unit cost for insertion, deletion and substitution.
func Distance(a, b string) int {
	ar := []rune(a)
	br := []rune(b)

	// matrix[i][j] is the distance between br[:i] and ar[:j].
	matrix := make([][]int, len(br)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(ar)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(ar); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(br); i++ {
		for j := 1; j <= len(ar); j++ {
			cost := 1
			if br[i-1] == ar[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(br)][len(ar)]
}

// Similarity normalizes Distance into [0,1] by the longer rune length.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(a, b))/float64(maxLen)
}
