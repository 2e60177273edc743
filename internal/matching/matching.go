// package matching canonicalizes free-text names and scores their similarity.
//
// Every fuzzy decision in the resolver stack (headliner pick, lineup merging,
// catalog track scoring) runs through Similarity, so thresholds elsewhere are
// tuned against its 0-100 scale.
package matching

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
)

// Normalize lower-cases s, strips characters that are neither alphanumeric
// nor whitespace, and trims the result.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity computes a token-set fuzzy ratio between a and b on a 0-100
// scale. It is symmetric, order-insensitive and tolerant of extra or missing
// words; identical inputs score 100 and any empty input scores 0.
func Similarity(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}

	inter, onlyA, onlyB := splitTokenSets(na, nb)

	shared := strings.Join(inter, " ")
	full1 := strings.TrimSpace(shared + " " + strings.Join(onlyA, " "))
	full2 := strings.TrimSpace(shared + " " + strings.Join(onlyB, " "))

	best := ratio(full1, full2)
	if shared != "" {
		// A full token-set overlap on either side counts as a near match.
		if r := ratio(shared, full1); r > best {
			best = r
		}
		if r := ratio(shared, full2); r > best {
			best = r
		}
	}

	return int(best*100 + 0.5)
}

// splitTokenSets returns the sorted shared tokens and each side's sorted
// remainder, with duplicate tokens collapsed.
func splitTokenSets(a, b string) (inter, onlyA, onlyB []string) {
	setA := tokenSet(a)
	setB := tokenSet(b)

	for tok := range setA {
		if setB[tok] {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}

	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return inter, onlyA, onlyB
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// ratio is the underlying edit-distance similarity on a 0-1 scale.
func ratio(a, b string) float32 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return sim
}
