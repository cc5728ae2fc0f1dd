package ludo

import (
	"errors"
	"fmt"
	"math/rand"

	"mesa/internal/domain"
)

var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrMustRoll       = errors.New("dice must be rolled first")
	ErrAlreadyRolled  = errors.New("dice already rolled")
	ErrIllegalMove    = errors.New("move is not legal")
	ErrInvalidDice    = errors.New("dice values out of range")
	ErrUnknownPlayer  = errors.New("player not in game")
	ErrUnknownVariant = errors.New("not a board game")
	ErrPairsNeedFour  = errors.New("pairs mode needs four players")
	ErrGameFinished   = errors.New("game already finished")
)

// PieceState is where a piece currently is.
type PieceState string

const (
	StateBase   PieceState = "base"
	StateActive PieceState = "active"
	StateHome   PieceState = "home"
)

// Piece is one token. Progress is counted from the owner's start square.
type Piece struct {
	ID       string     `json:"id"`
	Color    Color      `json:"color"`
	State    PieceState `json:"state"`
	Progress int        `json:"progress"`
}

// Player owns a color and its pieces.
type Player struct {
	Seat   int
	Color  Color
	Pieces []Piece
	Out    bool
}

// Dice are the two values of the current roll and which of them were consumed.
type Dice struct {
	Values [2]int  `json:"values"`
	Used   [2]bool `json:"used"`
}

// Doubles reports whether both dice show the same value.
func (d Dice) Doubles() bool {
	return d.Values[0] != 0 && d.Values[0] == d.Values[1]
}

// Spent reports whether both dice were consumed.
func (d Dice) Spent() bool {
	return d.Used[0] && d.Used[1]
}

// Turn is the dice state of the current seat.
type Turn struct {
	Seat           int
	Dice           Dice
	CanRoll        bool
	DoublesInRow   int
	ExtraRolls     int
	LastMovedPiece string
}

// Options are the room settings the engine honours.
type Options struct {
	AutoExit bool
	Pairs    bool
}

// Roller produces dice values. Tests inject fixed sequences.
type Roller interface {
	Roll() [2]int
}

// RandRoller rolls two fair six-sided dice.
type RandRoller struct {
	rng *rand.Rand
}

func NewRandRoller(rng *rand.Rand) *RandRoller {
	return &RandRoller{rng: rng}
}

func (r *RandRoller) Roll() [2]int {
	return [2]int{r.rng.Intn(6) + 1, r.rng.Intn(6) + 1}
}

// Game is the authoritative board state of one Ludo or Parchís game.
type Game struct {
	Board    *Board
	Players  map[int]*Player
	Turn     Turn
	Finished bool

	opts Options
}

// NewGame places every seat's pieces in base.
func NewGame(variant domain.GameType, seats []int, opts Options) (*Game, error) {
	board, ok := BoardFor(variant)
	if !ok {
		return nil, ErrUnknownVariant
	}
	if opts.Pairs && (variant != domain.GameParchis || len(seats) != domain.SeatCount) {
		return nil, ErrPairsNeedFour
	}

	g := &Game{Board: board, Players: make(map[int]*Player, len(seats)), opts: opts}
	for _, seat := range seats {
		color := board.Colors[seat]
		p := &Player{Seat: seat, Color: color, Pieces: make([]Piece, PiecesPerColor)}
		for i := range p.Pieces {
			p.Pieces[i] = Piece{ID: fmt.Sprintf("%s-%d", color, i+1), Color: color, State: StateBase}
		}
		g.Players[seat] = p
	}
	return g, nil
}

// Options returns the options the game was created with.
func (g *Game) Options() Options {
	return g.opts
}

// BeginTurn hands the dice to seat.
func (g *Game) BeginTurn(seat int) {
	g.Turn = Turn{Seat: seat, CanRoll: true}
}

func (g *Game) current(seat int) (*Player, error) {
	if g.Finished {
		return nil, ErrGameFinished
	}
	p, ok := g.Players[seat]
	if !ok || p.Out {
		return nil, ErrUnknownPlayer
	}
	if g.Turn.Seat != seat {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// RemoveSeat takes a seat off the board. Its pieces no longer occupy squares.
func (g *Game) RemoveSeat(seat int) {
	p, ok := g.Players[seat]
	if !ok || p.Out {
		return
	}
	p.Out = true
	for i := range p.Pieces {
		if p.Pieces[i].State == StateActive {
			p.Pieces[i].State = StateBase
			p.Pieces[i].Progress = 0
		}
	}
}

// controlledSeat is whose pieces seat moves: its own, or its partner's once
// its own are all home in pairs mode.
func (g *Game) controlledSeat(seat int) int {
	if !g.opts.Pairs || !g.allHome(seat) {
		return seat
	}
	if partner, ok := g.Players[Partner(seat)]; ok && !partner.Out {
		return partner.Seat
	}
	return seat
}

func (g *Game) allHome(seat int) bool {
	p, ok := g.Players[seat]
	if !ok {
		return false
	}
	for _, pc := range p.Pieces {
		if pc.State != StateHome {
			return false
		}
	}
	return true
}

func (g *Game) friendly(a, b int) bool {
	return a == b || (g.opts.Pairs && b == Partner(a))
}

// pieceRef addresses a piece by owner seat and index.
type pieceRef struct {
	seat  int
	index int
}

func (g *Game) piece(ref pieceRef) *Piece {
	return &g.Players[ref.seat].Pieces[ref.index]
}

func (g *Game) findPiece(owner int, id string) (pieceRef, bool) {
	p, ok := g.Players[owner]
	if !ok {
		return pieceRef{}, false
	}
	for i, pc := range p.Pieces {
		if pc.ID == id {
			return pieceRef{seat: owner, index: i}, true
		}
	}
	return pieceRef{}, false
}

// occupants lists the active pieces on a shared square in seat order.
func (g *Game) occupants(square int) []pieceRef {
	var out []pieceRef
	for seat := 0; seat < domain.SeatCount; seat++ {
		p, ok := g.Players[seat]
		if !ok || p.Out {
			continue
		}
		for i, pc := range p.Pieces {
			if pc.State == StateActive && g.Board.Square(seat, pc.Progress) == square {
				out = append(out, pieceRef{seat: seat, index: i})
			}
		}
	}
	return out
}

// blockadeAgainst reports whether a non-friendly color holds two or more
// pieces on a non-safe square.
func (g *Game) blockadeAgainst(owner, square int) bool {
	if g.Board.IsSafe(square) {
		return false
	}
	counts := make(map[int]int)
	for _, ref := range g.occupants(square) {
		if g.friendly(owner, ref.seat) {
			continue
		}
		counts[ref.seat]++
		if counts[ref.seat] >= 2 {
			return true
		}
	}
	return false
}
