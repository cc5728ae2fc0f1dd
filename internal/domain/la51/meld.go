package la51

import "sort"

// MeldKind distinguishes runs from sets.
type MeldKind string

const (
	MeldRun MeldKind = "run"
	MeldSet MeldKind = "set"
)

// MinMeldSize is the smallest legal meld.
const MinMeldSize = 3

// Meld is a shared table group. Once placed it belongs to the table, not a player.
type Meld struct {
	Kind     MeldKind `json:"kind"`
	Cards    []Card   `json:"cards"`
	PlacedBy int      `json:"placedBy"`
}

// ClassifyMeld reports whether cards form a valid run or set and returns
// them arranged in table order.
func ClassifyMeld(cards []Card) (MeldKind, []Card, bool) {
	if len(cards) < MinMeldSize {
		return "", nil, false
	}
	if arranged, ok := asSet(cards); ok {
		return MeldSet, arranged, true
	}
	if arranged, ok := asRun(cards); ok {
		return MeldRun, arranged, true
	}
	return "", nil, false
}

func asSet(cards []Card) ([]Card, bool) {
	if len(cards) > len(suits) {
		return nil, false
	}
	seen := make(map[Suit]bool, len(cards))
	rank := cards[0].Rank
	for _, c := range cards {
		if c.Rank != rank || seen[c.Suit] {
			return nil, false
		}
		seen[c.Suit] = true
	}
	arranged := append([]Card(nil), cards...)
	SortByRank(arranged)
	return arranged, true
}

func asRun(cards []Card) ([]Card, bool) {
	suit := cards[0].Suit
	for _, c := range cards {
		if c.Suit != suit {
			return nil, false
		}
	}
	if arranged, ok := consecutive(cards, false); ok {
		return arranged, true
	}
	return consecutive(cards, true)
}

// consecutive checks for a gap-free run. aceHigh ranks the Ace above the King.
func consecutive(cards []Card, aceHigh bool) ([]Card, bool) {
	rankOf := func(c Card) int {
		if aceHigh && c.Rank == Ace {
			return King + 1
		}
		return c.Rank
	}
	arranged := append([]Card(nil), cards...)
	sort.SliceStable(arranged, func(i, j int) bool { return rankOf(arranged[i]) < rankOf(arranged[j]) })
	for i := 1; i < len(arranged); i++ {
		if rankOf(arranged[i]) != rankOf(arranged[i-1])+1 {
			return nil, false
		}
	}
	return arranged, true
}

// Value is the meld's contribution to the opening threshold.
func (m Meld) Value() int {
	total := 0
	lowAce := m.Kind == MeldRun && len(m.Cards) > 1 && m.Cards[0].Rank == Ace && m.Cards[1].Rank == 2
	for i, c := range m.Cards {
		if lowAce && i == 0 {
			total++
			continue
		}
		total += cardValue(c)
	}
	return total
}

func (m Meld) clone() Meld {
	m.Cards = append([]Card(nil), m.Cards...)
	return m
}
