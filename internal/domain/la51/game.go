package la51

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"mesa/internal/domain"
)

var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrAlreadyDrew    = errors.New("already drew this turn")
	ErrMustDraw       = errors.New("must draw before melding or discarding")
	ErrCardNotInHand  = errors.New("card not in hand")
	ErrNoCardsLeft    = errors.New("no cards left to draw")
	ErrEmptyDiscard   = errors.New("discard pile is empty")
	ErrUnknownMeld    = errors.New("meld does not exist")
	ErrOpenFirst      = errors.New("first meld must be completed before adding to table melds")
	ErrUnknownPlayer  = errors.New("player not in game")
	ErrNotEnoughCards = errors.New("not enough cards to deal")
)

// Options tune the deal and the opening rule.
type Options struct {
	DeckCount          int
	HandSize           int
	FirstMeldThreshold int
}

// DefaultOptions is two decks, fourteen cards and the 51-point opening.
func DefaultOptions() Options {
	return Options{DeckCount: 2, HandSize: 14, FirstMeldThreshold: 51}
}

// Player holds the per-seat card state.
type Player struct {
	Seat          int
	Hand          []Card
	DoneFirstMeld bool
	Out           bool
}

// TurnState tracks what the current seat has done this turn.
type TurnState struct {
	Seat            int
	HasDrawn        bool
	DrewFromDiscard bool
	DiscardCardID   string
	DiscardCardUsed bool
	// TurnMelds are indexes into Game.Melds placed this turn by a player who
	// has not opened yet. They count toward the opening threshold.
	TurnMelds []int
}

// Game is the authoritative card state of one La51 deal.
type Game struct {
	Deck        []Card // top is the last element
	DiscardPile []Card // top is the last element
	Melds       []Meld
	Players     map[int]*Player
	Turn        TurnState

	opts Options
	rng  *rand.Rand
}

// MeldResult describes a successful meld or addition.
type MeldResult struct {
	Index     int
	Meld      Meld
	Cards     []Card
	Opened    bool
	HandEmpty bool
}

// DiscardResult describes a successful discard.
type DiscardResult struct {
	Card   Card
	Opened bool
	Won    bool
}

// NewGame shuffles, deals opts.HandSize cards to each seat and flips the first discard.
func NewGame(seats []int, opts Options, rng *rand.Rand) (*Game, error) {
	deck := NewDeck(opts.DeckCount)
	if len(seats)*opts.HandSize+1 > len(deck) {
		return nil, ErrNotEnoughCards
	}
	Shuffle(rng, deck)

	g := &Game{
		Players: make(map[int]*Player, len(seats)),
		opts:    opts,
		rng:     rng,
	}
	for _, seat := range seats {
		hand := append([]Card(nil), deck[len(deck)-opts.HandSize:]...)
		deck = deck[:len(deck)-opts.HandSize]
		g.Players[seat] = &Player{Seat: seat, Hand: hand}
	}
	g.DiscardPile = []Card{deck[len(deck)-1]}
	g.Deck = deck[:len(deck)-1]
	return g, nil
}

// Options returns the rule options the game was dealt with.
func (g *Game) Options() Options {
	return g.opts
}

// BeginTurn resets the per-turn bookkeeping for seat.
func (g *Game) BeginTurn(seat int) {
	g.Turn = TurnState{Seat: seat}
}

// CanDrawFromDeck reports whether a deck draw (possibly after a reshuffle) is possible.
func (g *Game) CanDrawFromDeck() bool {
	return len(g.Deck) > 0 || len(g.DiscardPile) > 1
}

func (g *Game) player(seat int) (*Player, error) {
	p, ok := g.Players[seat]
	if !ok || p.Out {
		return nil, ErrUnknownPlayer
	}
	if g.Turn.Seat != seat {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// DrawFromDeck draws the top deck card. When the deck is empty the discard
// pile, minus its top card, is shuffled into a new deck first.
func (g *Game) DrawFromDeck(seat int) (card Card, reshuffled bool, err error) {
	p, err := g.player(seat)
	if err != nil {
		return Card{}, false, err
	}
	if g.Turn.HasDrawn {
		return Card{}, false, ErrAlreadyDrew
	}
	if len(g.Deck) == 0 {
		if len(g.DiscardPile) <= 1 {
			return Card{}, false, ErrNoCardsLeft
		}
		g.reshuffle()
		reshuffled = true
	}

	card = g.Deck[len(g.Deck)-1]
	g.Deck = g.Deck[:len(g.Deck)-1]
	p.Hand = append(p.Hand, card)
	g.Turn.HasDrawn = true
	return card, reshuffled, nil
}

func (g *Game) reshuffle() {
	top := g.DiscardPile[len(g.DiscardPile)-1]
	g.Deck = append(g.Deck, g.DiscardPile[:len(g.DiscardPile)-1]...)
	Shuffle(g.rng, g.Deck)
	g.DiscardPile = []Card{top}
}

// DrawFromDiscard takes the top discard. The card must later be melded before
// any other card may be discarded.
func (g *Game) DrawFromDiscard(seat int) (Card, error) {
	p, err := g.player(seat)
	if err != nil {
		return Card{}, err
	}
	if g.Turn.HasDrawn {
		return Card{}, ErrAlreadyDrew
	}
	if len(g.DiscardPile) == 0 {
		return Card{}, ErrEmptyDiscard
	}

	card := g.DiscardPile[len(g.DiscardPile)-1]
	g.DiscardPile = g.DiscardPile[:len(g.DiscardPile)-1]
	p.Hand = append(p.Hand, card)
	g.Turn.HasDrawn = true
	g.Turn.DrewFromDiscard = true
	g.Turn.DiscardCardID = card.ID
	return card, nil
}

// Meld places a new table meld from the seat's hand.
// An invalid composition is a *domain.Fault; nothing is mutated in that case.
func (g *Game) Meld(seat int, cardIDs []string) (MeldResult, error) {
	p, err := g.player(seat)
	if err != nil {
		return MeldResult{}, err
	}
	if !g.Turn.HasDrawn {
		return MeldResult{}, ErrMustDraw
	}
	taken, rest, ok := takeCards(p.Hand, cardIDs)
	if !ok {
		return MeldResult{}, ErrCardNotInHand
	}
	kind, arranged, ok := ClassifyMeld(taken)
	if !ok {
		return MeldResult{}, &domain.Fault{
			Reason:       domain.FaultInvalidMeld,
			Seat:         seat,
			InvalidCards: ids(taken),
		}
	}
	meld := Meld{Kind: kind, Cards: arranged, PlacedBy: seat}

	if len(rest) == 0 && !p.DoneFirstMeld {
		if total := g.stagedValue() + meld.Value(); total < g.opts.FirstMeldThreshold {
			return MeldResult{}, g.thresholdFault(seat, taken, total)
		}
	}

	p.Hand = rest
	g.Melds = append(g.Melds, meld)
	index := len(g.Melds) - 1
	if !p.DoneFirstMeld {
		g.Turn.TurnMelds = append(g.Turn.TurnMelds, index)
	}
	g.markDiscardCardUsed(taken)

	res := MeldResult{Index: index, Meld: meld.clone(), Cards: taken, HandEmpty: len(rest) == 0}
	if res.HandEmpty && !p.DoneFirstMeld {
		p.DoneFirstMeld = true
		g.Turn.TurnMelds = nil
		res.Opened = true
	}
	return res, nil
}

// AddToMeld extends an existing table meld with cards from the seat's hand.
// Before opening, a player may only extend melds they staged this turn.
func (g *Game) AddToMeld(seat, meldIndex int, cardIDs []string) (MeldResult, error) {
	p, err := g.player(seat)
	if err != nil {
		return MeldResult{}, err
	}
	if !g.Turn.HasDrawn {
		return MeldResult{}, ErrMustDraw
	}
	if meldIndex < 0 || meldIndex >= len(g.Melds) {
		return MeldResult{}, ErrUnknownMeld
	}
	if !p.DoneFirstMeld && !g.isStaged(meldIndex) {
		return MeldResult{}, ErrOpenFirst
	}
	taken, rest, ok := takeCards(p.Hand, cardIDs)
	if !ok || len(taken) == 0 {
		return MeldResult{}, ErrCardNotInHand
	}

	target := g.Melds[meldIndex]
	combined := append(append([]Card(nil), target.Cards...), taken...)
	kind, arranged, ok := ClassifyMeld(combined)
	if !ok {
		return MeldResult{}, &domain.Fault{
			Reason:       domain.FaultInvalidAddition,
			Seat:         seat,
			InvalidCards: ids(taken),
			ContextCards: ids(target.Cards),
		}
	}
	extended := Meld{Kind: kind, Cards: arranged, PlacedBy: target.PlacedBy}

	if len(rest) == 0 && !p.DoneFirstMeld {
		total := g.stagedValue() - target.Value() + extended.Value()
		if total < g.opts.FirstMeldThreshold {
			return MeldResult{}, g.thresholdFault(seat, taken, total)
		}
	}

	p.Hand = rest
	g.Melds[meldIndex] = extended
	g.markDiscardCardUsed(taken)

	res := MeldResult{Index: meldIndex, Meld: extended.clone(), Cards: taken, HandEmpty: len(rest) == 0}
	if res.HandEmpty && !p.DoneFirstMeld {
		p.DoneFirstMeld = true
		g.Turn.TurnMelds = nil
		res.Opened = true
	}
	return res, nil
}

// Discard ends the seat's turn by placing one card on the discard pile.
// Discarding a card other than the discard-drawn one before that card was
// melded is a fault, as is closing a turn whose staged opening melds fall
// short of the threshold.
func (g *Game) Discard(seat int, cardID string) (DiscardResult, error) {
	p, err := g.player(seat)
	if err != nil {
		return DiscardResult{}, err
	}
	if !g.Turn.HasDrawn {
		return DiscardResult{}, ErrMustDraw
	}
	pos := -1
	for i, c := range p.Hand {
		if c.ID == cardID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return DiscardResult{}, ErrCardNotInHand
	}

	if g.Turn.DrewFromDiscard && !g.Turn.DiscardCardUsed && cardID != g.Turn.DiscardCardID {
		return DiscardResult{}, &domain.Fault{
			Reason:       domain.FaultIllegalDiscard,
			Seat:         seat,
			InvalidCards: []string{cardID},
			ContextCards: []string{g.Turn.DiscardCardID},
		}
	}
	if !p.DoneFirstMeld && len(g.Turn.TurnMelds) > 0 {
		if total := g.stagedValue(); total < g.opts.FirstMeldThreshold {
			return DiscardResult{}, g.thresholdFault(seat, nil, total)
		}
	}

	card := p.Hand[pos]
	p.Hand = append(append([]Card(nil), p.Hand[:pos]...), p.Hand[pos+1:]...)
	g.DiscardPile = append(g.DiscardPile, card)

	res := DiscardResult{Card: card, Won: len(p.Hand) == 0}
	if len(g.Turn.TurnMelds) > 0 {
		p.DoneFirstMeld = true
		res.Opened = true
	}
	g.Turn.TurnMelds = nil
	return res, nil
}

// RemovePlayer takes seat out of the deal. Its hand, plus any opening melds it
// staged this turn, go to the bottom of the deck so no card is lost.
func (g *Game) RemovePlayer(seat int) {
	p, ok := g.Players[seat]
	if !ok || p.Out {
		return
	}
	returned := append([]Card(nil), p.Hand...)

	if g.Turn.Seat == seat && !p.DoneFirstMeld && len(g.Turn.TurnMelds) > 0 {
		staged := append([]int(nil), g.Turn.TurnMelds...)
		sort.Sort(sort.Reverse(sort.IntSlice(staged)))
		for _, idx := range staged {
			returned = append(returned, g.Melds[idx].Cards...)
			g.Melds = append(g.Melds[:idx], g.Melds[idx+1:]...)
		}
		g.Turn.TurnMelds = nil
	}

	g.Deck = append(returned, g.Deck...)
	p.Hand = nil
	p.Out = true
}

// CardCount is the number of cards across every zone.
func (g *Game) CardCount() int {
	n := len(g.Deck) + len(g.DiscardPile)
	for _, m := range g.Melds {
		n += len(m.Cards)
	}
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	return n
}

// TotalCards is the size of the full deal.
func (g *Game) TotalCards() int {
	return 52 * g.opts.DeckCount
}

// CardByID finds a card in any zone.
func (g *Game) CardByID(id string) (Card, bool) {
	for _, p := range g.Players {
		for _, c := range p.Hand {
			if c.ID == id {
				return c, true
			}
		}
	}
	for _, m := range g.Melds {
		for _, c := range m.Cards {
			if c.ID == id {
				return c, true
			}
		}
	}
	for _, zone := range [][]Card{g.DiscardPile, g.Deck} {
		for _, c := range zone {
			if c.ID == id {
				return c, true
			}
		}
	}
	return Card{}, false
}

func (g *Game) isStaged(index int) bool {
	for _, i := range g.Turn.TurnMelds {
		if i == index {
			return true
		}
	}
	return false
}

func (g *Game) stagedValue() int {
	total := 0
	for _, i := range g.Turn.TurnMelds {
		total += g.Melds[i].Value()
	}
	return total
}

func (g *Game) stagedCards() []Card {
	var out []Card
	for _, i := range g.Turn.TurnMelds {
		out = append(out, g.Melds[i].Cards...)
	}
	return out
}

func (g *Game) thresholdFault(seat int, pending []Card, total int) *domain.Fault {
	return &domain.Fault{
		Reason:       domain.FaultFirstMeldThreshold,
		Seat:         seat,
		InvalidCards: ids(append(g.stagedCards(), pending...)),
		Detail:       fmt.Sprintf("opening total %d is below %d", total, g.opts.FirstMeldThreshold),
	}
}

func (g *Game) markDiscardCardUsed(cards []Card) {
	if !g.Turn.DrewFromDiscard {
		return
	}
	for _, c := range cards {
		if c.ID == g.Turn.DiscardCardID {
			g.Turn.DiscardCardUsed = true
			return
		}
	}
}
