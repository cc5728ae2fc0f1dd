package ludo

import "mesa/internal/domain"

// SeatPieces is one color's pieces as shown to clients.
type SeatPieces struct {
	Seat   int         `json:"seat"`
	Color  Color       `json:"color"`
	Out    bool        `json:"out"`
	Pieces []PieceView `json:"pieces"`
}

// PieceView adds the shared-track square (-1 off the main track) to a piece.
type PieceView struct {
	Piece
	Square int `json:"square"`
}

// View is the full board state; nothing on the board is hidden.
type View struct {
	Variant       domain.GameType `json:"variant"`
	Seats         []SeatPieces    `json:"seats"`
	TurnSeat      int             `json:"turnSeat"`
	Dice          Dice            `json:"dice"`
	CanRoll       bool            `json:"canRoll"`
	DoublesInRow  int             `json:"doublesInRow"`
	PossibleMoves []Move          `json:"possibleMoves"`
	Pairs         bool            `json:"pairs"`
}

// View renders the board in seat order.
func (g *Game) View() View {
	v := View{
		Variant:       g.Board.Variant,
		TurnSeat:      g.Turn.Seat,
		Dice:          g.Turn.Dice,
		CanRoll:       g.Turn.CanRoll,
		DoublesInRow:  g.Turn.DoublesInRow,
		PossibleMoves: g.LegalMoves(g.Turn.Seat),
		Pairs:         g.opts.Pairs,
	}
	for seat := 0; seat < domain.SeatCount; seat++ {
		p, ok := g.Players[seat]
		if !ok {
			continue
		}
		sp := SeatPieces{Seat: seat, Color: p.Color, Out: p.Out, Pieces: make([]PieceView, len(p.Pieces))}
		for i, pc := range p.Pieces {
			square := -1
			if pc.State == StateActive && !p.Out {
				square = g.Board.Square(seat, pc.Progress)
			}
			sp.Pieces[i] = PieceView{Piece: pc, Square: square}
		}
		v.Seats = append(v.Seats, sp)
	}
	if v.PossibleMoves == nil {
		v.PossibleMoves = []Move{}
	}
	return v
}

// ActiveSeats lists seats still on the board, in seat order.
func (g *Game) ActiveSeats() []int {
	var out []int
	for seat := 0; seat < domain.SeatCount; seat++ {
		if p, ok := g.Players[seat]; ok && !p.Out {
			out = append(out, seat)
		}
	}
	return out
}
