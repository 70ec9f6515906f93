// Package deck implements the card legality oracle for the meld engine.
//
// Cards are integer ids in [0, deckSize) encoding base-featureSize feature
// vectors: featureCount features, each taking one of featureSize values. A
// group of featureSize cards is a legal meld iff for every feature the values
// are either all equal or all distinct.
package deck

import "fmt"

// Oracle judges card groups for the configured geometry.
// It is stateless and safe for concurrent use.
type Oracle struct {
	featureSize  int
	featureCount int
	deckSize     int
}

// NewOracle creates an oracle for the given geometry.
// deckSize is featureSize^featureCount.
func NewOracle(featureSize, featureCount int) (*Oracle, error) {
	if featureSize < 2 {
		return nil, fmt.Errorf("feature size must be >= 2, got %d", featureSize)
	}
	if featureCount < 1 {
		return nil, fmt.Errorf("feature count must be >= 1, got %d", featureCount)
	}

	size := 1
	for i := 0; i < featureCount; i++ {
		size *= featureSize
	}

	return &Oracle{
		featureSize:  featureSize,
		featureCount: featureCount,
		deckSize:     size,
	}, nil
}

// DeckSize returns the number of distinct cards the geometry produces.
func (o *Oracle) DeckSize() int {
	return o.deckSize
}

// Features decodes a card id into its feature vector.
func (o *Oracle) Features(card int) []int {
	features := make([]int, o.featureCount)
	for i := 0; i < o.featureCount; i++ {
		features[i] = card % o.featureSize
		card /= o.featureSize
	}
	return features
}

// TestSet reports whether the cards form a legal meld: exactly featureSize
// cards, and for every feature the values are all equal or all distinct.
func (o *Oracle) TestSet(cards []int) bool {
	if len(cards) != o.featureSize {
		return false
	}

	for _, card := range cards {
		if card < 0 || card >= o.deckSize {
			return false
		}
	}

	features := make([][]int, len(cards))
	for i, card := range cards {
		features[i] = o.Features(card)
	}

	for f := 0; f < o.featureCount; f++ {
		seen := make(map[int]int)
		for _, fv := range features {
			seen[fv[f]]++
		}
		// All equal (one value) or all distinct (featureSize values).
		if len(seen) != 1 && len(seen) != o.featureSize {
			return false
		}
	}

	return true
}

// FindSets enumerates legal melds within the given cards, in combination
// order, stopping once limit melds are found. A limit <= 0 means no bound.
func (o *Oracle) FindSets(cards []int, limit int) [][]int {
	var found [][]int
	combo := make([]int, o.featureSize)

	var search func(start, depth int) bool
	search = func(start, depth int) bool {
		if depth == o.featureSize {
			if o.TestSet(combo) {
				meld := make([]int, len(combo))
				copy(meld, combo)
				found = append(found, meld)
				if limit > 0 && len(found) >= limit {
					return true
				}
			}
			return false
		}
		for i := start; i < len(cards); i++ {
			combo[depth] = cards[i]
			if search(i+1, depth+1) {
				return true
			}
		}
		return false
	}

	search(0, 0)
	return found
}
