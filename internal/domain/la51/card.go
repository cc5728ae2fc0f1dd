package la51

import (
	"fmt"
	"math/rand"
	"sort"
)

// Suit of a playing card.
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

var suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Ranks run from Ace (1) to King (13).
const (
	Ace   = 1
	Jack  = 11
	Queen = 12
	King  = 13
)

// Card is immutable once dealt. ID is unique across all decks in play.
type Card struct {
	ID   string `json:"id"`
	Rank int    `json:"rank"`
	Suit Suit   `json:"suit"`
}

func (c Card) String() string {
	return c.ID
}

// NewDeck returns deckCount ordered 52-card decks with unique card ids.
func NewDeck(deckCount int) []Card {
	deck := make([]Card, 0, 52*deckCount)
	for d := 0; d < deckCount; d++ {
		for _, s := range suits {
			for r := Ace; r <= King; r++ {
				deck = append(deck, Card{
					ID:   fmt.Sprintf("%s-%d-%d", s, r, d),
					Rank: r,
					Suit: s,
				})
			}
		}
	}
	return deck
}

// Shuffle shuffles cards in place.
func Shuffle(rng *rand.Rand, cards []Card) {
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

// SortByRank orders cards by rank, then suit, for display and validation.
func SortByRank(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Rank != cards[j].Rank {
			return cards[i].Rank < cards[j].Rank
		}
		return cards[i].Suit < cards[j].Suit
	})
}

// cardValue is the scoring value used for the opening threshold.
func cardValue(c Card) int {
	switch {
	case c.Rank == Ace:
		return 10
	case c.Rank >= Jack:
		return 10
	default:
		return c.Rank
	}
}

func ids(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

// takeCards removes the cards with the given ids from hand.
// It returns the taken cards in request order and the remaining hand, or ok=false
// when an id is missing or repeated.
func takeCards(hand []Card, cardIDs []string) (taken []Card, rest []Card, ok bool) {
	want := make(map[string]int, len(cardIDs))
	for i, id := range cardIDs {
		if _, dup := want[id]; dup {
			return nil, nil, false
		}
		want[id] = i
	}

	taken = make([]Card, len(cardIDs))
	rest = make([]Card, 0, len(hand))
	found := 0
	for _, c := range hand {
		if i, hit := want[c.ID]; hit {
			taken[i] = c
			found++
			continue
		}
		rest = append(rest, c)
	}
	if found != len(cardIDs) {
		return nil, nil, false
	}
	return taken, rest, true
}
