package la51

import "sort"

// HandCount is how many cards a seat holds, visible to everyone.
type HandCount struct {
	Seat  int `json:"seat"`
	Count int `json:"count"`
}

// View is the La51 table as seen by one seat. Only the viewer's own hand is included.
type View struct {
	Hand            []Card      `json:"hand,omitempty"`
	DoneFirstMeld   bool        `json:"doneFirstMeld"`
	HandCounts      []HandCount `json:"playerHandCounts"`
	DiscardPile     []Card      `json:"discardPile"`
	Melds           []Meld      `json:"melds"`
	TurnMelds       []int       `json:"turnMelds"`
	DeckCount       int         `json:"deckCount"`
	TurnSeat        int         `json:"turnSeat"`
	HasDrawn        bool        `json:"hasDrawn"`
	DrewFromDiscard bool        `json:"drewFromDiscard"`
	DiscardCardID   string      `json:"discardCardId,omitempty"`
}

// View renders the game for viewer. A viewer of -1 (spectator) sees no hand.
func (g *Game) View(viewer int) View {
	v := View{
		HandCounts:      g.HandCounts(),
		DiscardPile:     append([]Card{}, g.DiscardPile...),
		Melds:           g.MeldsCopy(),
		TurnMelds:       append([]int{}, g.Turn.TurnMelds...),
		DeckCount:       len(g.Deck),
		TurnSeat:        g.Turn.Seat,
		HasDrawn:        g.Turn.HasDrawn,
		DrewFromDiscard: g.Turn.DrewFromDiscard,
	}
	if p, ok := g.Players[viewer]; ok {
		v.Hand = append([]Card{}, p.Hand...)
		v.DoneFirstMeld = p.DoneFirstMeld
		if viewer == g.Turn.Seat {
			v.DiscardCardID = g.Turn.DiscardCardID
		}
	}
	return v
}

// HandCounts lists the hand size of every seat still in the deal, in seat order.
func (g *Game) HandCounts() []HandCount {
	out := make([]HandCount, 0, len(g.Players))
	for seat, p := range g.Players {
		if p.Out {
			continue
		}
		out = append(out, HandCount{Seat: seat, Count: len(p.Hand)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

// MeldsCopy returns a deep copy of the table melds.
func (g *Game) MeldsCopy() []Meld {
	out := make([]Meld, len(g.Melds))
	for i, m := range g.Melds {
		out[i] = m.clone()
	}
	return out
}
