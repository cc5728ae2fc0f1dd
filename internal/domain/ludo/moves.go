package ludo

// MoveType selects how dice are spent.
type MoveType string

const (
	MoveExit MoveType = "exit"
	MoveDie  MoveType = "die"
	MoveSum  MoveType = "sum"
)

// Move is a client-submitted move. DiceValue is the die value for MoveDie,
// the sum for MoveSum and the exit value for MoveExit.
type Move struct {
	Type      MoveType `json:"type"`
	PieceID   string   `json:"pieceId"`
	DiceValue int      `json:"diceValue"`
}

// FoulType names a board foul.
type FoulType string

const (
	FoulAbandon      FoulType = "abandon"
	FoulThreeDoubles FoulType = "three_doubles"
	FoulMissedKill   FoulType = "missed_kill"
)

// Foul is the evidence attached to a ludoFoulPenalty event.
type Foul struct {
	Type          FoulType `json:"type"`
	Seat          int      `json:"seat"`
	PieceID       string   `json:"pieceId,omitempty"`
	TargetPieceID string   `json:"targetPieceId,omitempty"`
	TargetSquare  int      `json:"targetSquare"`
}

// Kill records a piece sent back to base.
type Kill struct {
	PieceID string `json:"pieceId"`
	Color   Color  `json:"color"`
	Square  int    `json:"square"`
}

// MoveResult describes an applied move, or a foul that replaced it.
type MoveResult struct {
	Seat        int    `json:"seat"`
	Move        Move   `json:"move"`
	From        int    `json:"from"`
	To          int    `json:"to"`
	Square      int    `json:"square"`
	Kills       []Kill `json:"kills,omitempty"`
	ReachedHome bool   `json:"reachedHome"`
	Foul        *Foul  `json:"-"`
	Winners     []int  `json:"-"`
	RollAgain   bool   `json:"rollAgain"`
	TurnOver    bool   `json:"-"`
}

// RollResult describes a roll and anything it triggered.
type RollResult struct {
	Seat       int          `json:"seat"`
	Dice       Dice         `json:"dice"`
	Doubles    bool         `json:"doubles"`
	Foul       *Foul        `json:"-"`
	AutoMoves  []MoveResult `json:"autoMoves,omitempty"`
	LegalMoves []Move       `json:"possibleMoves"`
	RollAgain  bool         `json:"rollAgain"`
	TurnOver   bool         `json:"-"`
}

// plan is a validated move ready to apply.
type plan struct {
	move  Move
	piece pieceRef
	from  int
	to    int
	kills []pieceRef
	use   [2]bool
}

// LegalMoves lists every move the current seat may submit. Die and sum moves
// are offered separately; the engine never picks one for the player.
func (g *Game) LegalMoves(seat int) []Move {
	if _, err := g.current(seat); err != nil || g.Turn.CanRoll {
		return nil
	}
	owner := g.controlledSeat(seat)
	seen := make(map[Move]bool)
	var moves []Move
	add := func(m Move) {
		if !seen[m] {
			seen[m] = true
			moves = append(moves, m)
		}
	}

	for _, pc := range g.Players[owner].Pieces {
		switch pc.State {
		case StateBase:
			m := Move{Type: MoveExit, PieceID: pc.ID, DiceValue: g.Board.ExitValue}
			if _, ok := g.plan(owner, m); ok {
				add(m)
			}
		case StateActive:
			for i, v := range g.Turn.Dice.Values {
				if g.Turn.Dice.Used[i] {
					continue
				}
				m := Move{Type: MoveDie, PieceID: pc.ID, DiceValue: v}
				if _, ok := g.plan(owner, m); ok {
					add(m)
				}
			}
			if !g.Turn.Dice.Used[0] && !g.Turn.Dice.Used[1] {
				m := Move{Type: MoveSum, PieceID: pc.ID, DiceValue: g.Turn.Dice.Values[0] + g.Turn.Dice.Values[1]}
				if _, ok := g.plan(owner, m); ok {
					add(m)
				}
			}
		}
	}
	return moves
}

// plan validates m for owner's pieces against the current dice and board.
func (g *Game) plan(owner int, m Move) (plan, bool) {
	ref, ok := g.findPiece(owner, m.PieceID)
	if !ok {
		return plan{}, false
	}
	pc := g.piece(ref)
	dice := g.Turn.Dice
	p := plan{move: m, piece: ref, from: pc.Progress}

	switch m.Type {
	case MoveExit:
		if pc.State != StateBase || m.DiceValue != g.Board.ExitValue {
			return plan{}, false
		}
		if !g.useExitDice(&p) {
			return plan{}, false
		}
		kills, ok := g.exitKills(owner)
		if !ok {
			return plan{}, false
		}
		p.from, p.to, p.kills = -1, 0, kills
		return p, true

	case MoveDie:
		idx := -1
		for i, v := range dice.Values {
			if !dice.Used[i] && v == m.DiceValue {
				idx = i
				break
			}
		}
		if idx < 0 {
			return plan{}, false
		}
		p.use[idx] = true

	case MoveSum:
		if dice.Used[0] || dice.Used[1] || dice.Values[0]+dice.Values[1] != m.DiceValue {
			return plan{}, false
		}
		p.use = [2]bool{true, true}

	default:
		return plan{}, false
	}

	if pc.State != StateActive {
		return plan{}, false
	}
	to, kills, ok := g.walk(owner, pc.Progress, m.DiceValue)
	if !ok {
		return plan{}, false
	}
	p.to, p.kills = to, kills
	return p, true
}

func (g *Game) useExitDice(p *plan) bool {
	dice := g.Turn.Dice
	for i, v := range dice.Values {
		if !dice.Used[i] && v == g.Board.ExitValue {
			p.use[i] = true
			return true
		}
	}
	if g.Board.ExitOnSum && !dice.Used[0] && !dice.Used[1] && dice.Values[0]+dice.Values[1] == g.Board.ExitValue {
		p.use = [2]bool{true, true}
		return true
	}
	return false
}

// exitKills checks the owner's start square. A full start square can only be
// entered when an opponent sits on it, and that opponent is killed.
func (g *Game) exitKills(owner int) ([]pieceRef, bool) {
	occ := g.occupants(g.Board.StartSquares[owner])
	if g.Board.MaxPerSquare == 0 || len(occ) < g.Board.MaxPerSquare {
		return nil, true
	}
	for i := len(occ) - 1; i >= 0; i-- {
		if !g.friendly(owner, occ[i].seat) {
			return []pieceRef{occ[i]}, true
		}
	}
	return nil, false
}

// walk advances from progress by steps, rejecting overshoot, blockades and full squares.
func (g *Game) walk(owner, from, steps int) (int, []pieceRef, bool) {
	to := from + steps
	if to > g.Board.Goal() {
		return 0, nil, false
	}
	for pos := from + 1; pos <= to && pos < g.Board.MainSteps; pos++ {
		if g.blockadeAgainst(owner, g.Board.Square(owner, pos)) {
			return 0, nil, false
		}
	}
	if to >= g.Board.MainSteps {
		return to, nil, true
	}

	square := g.Board.Square(owner, to)
	occ := g.occupants(square)
	var kills []pieceRef
	if !g.Board.IsSafe(square) {
		for _, ref := range occ {
			if !g.friendly(owner, ref.seat) {
				kills = append(kills, ref)
			}
		}
	}
	if limit := g.Board.MaxPerSquare; limit > 0 && len(occ)-len(kills)+1 > limit {
		return 0, nil, false
	}
	return to, kills, true
}

func (g *Game) apply(seat int, p plan) MoveResult {
	pc := g.piece(p.piece)
	res := MoveResult{Seat: seat, Move: p.move, From: p.from, To: p.to}

	pc.Progress = p.to
	pc.State = StateActive
	if p.to == g.Board.Goal() {
		pc.State = StateHome
		res.ReachedHome = true
	}
	res.Square = g.Board.Square(p.piece.seat, p.to)

	for _, ref := range p.kills {
		victim := g.piece(ref)
		res.Kills = append(res.Kills, Kill{PieceID: victim.ID, Color: victim.Color, Square: res.Square})
		victim.State = StateBase
		victim.Progress = 0
	}
	if len(p.kills) > 0 {
		g.Turn.ExtraRolls++
	}
	for i, used := range p.use {
		if used {
			g.Turn.Dice.Used[i] = true
		}
	}
	g.Turn.LastMovedPiece = pc.ID
	return res
}

// Roll records the dice for seat. Three doubles in a row is a foul that sends
// the last moved piece back to base and ends the turn.
func (g *Game) Roll(seat int, values [2]int) (RollResult, error) {
	if _, err := g.current(seat); err != nil {
		return RollResult{}, err
	}
	if !g.Turn.CanRoll {
		return RollResult{}, ErrAlreadyRolled
	}
	for _, v := range values {
		if v < 1 || v > 6 {
			return RollResult{}, ErrInvalidDice
		}
	}

	g.Turn.Dice = Dice{Values: values}
	g.Turn.CanRoll = false
	res := RollResult{Seat: seat, Doubles: g.Turn.Dice.Doubles()}

	if res.Doubles {
		g.Turn.DoublesInRow++
		if g.Turn.DoublesInRow >= 3 {
			res.Foul = g.threeDoublesFoul(seat)
			g.Turn.Dice.Used = [2]bool{true, true}
			g.Turn.ExtraRolls = 0
			res.Dice = g.Turn.Dice
			res.TurnOver = true
			return res, nil
		}
		g.Turn.ExtraRolls++
	} else {
		g.Turn.DoublesInRow = 0
	}

	if g.opts.AutoExit {
		owner := g.controlledSeat(seat)
		for {
			p, ok := g.autoExit(owner)
			if !ok {
				break
			}
			res.AutoMoves = append(res.AutoMoves, g.apply(seat, p))
		}
	}

	res.LegalMoves = g.LegalMoves(seat)
	if len(res.LegalMoves) == 0 {
		res.RollAgain, res.TurnOver = g.closeDice()
	}
	res.Dice = g.Turn.Dice
	return res, nil
}

func (g *Game) autoExit(owner int) (plan, bool) {
	for _, pc := range g.Players[owner].Pieces {
		if pc.State != StateBase {
			continue
		}
		if p, ok := g.plan(owner, Move{Type: MoveExit, PieceID: pc.ID, DiceValue: g.Board.ExitValue}); ok {
			return p, true
		}
		return plan{}, false
	}
	return plan{}, false
}

// threeDoublesFoul sends the last moved piece back to base. A piece that
// already reached home stays there; the foul then only ends the turn.
func (g *Game) threeDoublesFoul(seat int) *Foul {
	foul := &Foul{Type: FoulThreeDoubles, Seat: seat, TargetSquare: -1}
	if g.Turn.LastMovedPiece == "" {
		return foul
	}
	for _, owner := range []int{seat, Partner(seat)} {
		ref, ok := g.findPiece(owner, g.Turn.LastMovedPiece)
		if !ok {
			continue
		}
		pc := g.piece(ref)
		if pc.State == StateActive {
			foul.PieceID = pc.ID
			foul.TargetSquare = g.Board.Square(owner, pc.Progress)
			pc.State = StateBase
			pc.Progress = 0
		}
		break
	}
	return foul
}

// closeDice ends the dice of the current roll: either the seat rolls again or the turn is over.
func (g *Game) closeDice() (rollAgain, turnOver bool) {
	g.Turn.Dice.Used = [2]bool{true, true}
	if g.Turn.ExtraRolls > 0 {
		g.Turn.ExtraRolls--
		g.Turn.CanRoll = true
		return true, false
	}
	return false, true
}

// Move validates and applies a submitted move. In Parchís, a move that kills
// nothing and leaves no individual die kill playable, while one was on offer,
// is the missed_kill foul: the piece that could have killed goes back to base,
// the submitted move is not applied and the turn ends.
func (g *Game) Move(seat int, m Move) (MoveResult, error) {
	if _, err := g.current(seat); err != nil {
		return MoveResult{}, err
	}
	if g.Turn.CanRoll {
		return MoveResult{}, ErrMustRoll
	}
	legal := g.LegalMoves(seat)
	found := false
	for _, l := range legal {
		if l == m {
			found = true
			break
		}
	}
	if !found {
		return MoveResult{}, ErrIllegalMove
	}
	owner := g.controlledSeat(seat)
	p, _ := g.plan(owner, m)

	if g.Board.MandatoryKill && len(p.kills) == 0 {
		if foul := g.missedKill(seat, owner, legal, p); foul != nil {
			g.Turn.Dice.Used = [2]bool{true, true}
			g.Turn.ExtraRolls = 0
			return MoveResult{Seat: seat, Move: m, Foul: foul, TurnOver: true}, nil
		}
	}

	res := g.apply(seat, p)
	if winners := g.winners(owner); len(winners) > 0 {
		g.Finished = true
		res.Winners = winners
		res.TurnOver = true
		return res, nil
	}
	if g.Turn.Dice.Spent() || len(g.LegalMoves(seat)) == 0 {
		res.RollAgain, res.TurnOver = g.closeDice()
	}
	return res, nil
}

// missedKill reports the foul when p throws away every kill an individual die
// offered: it spends the die, moves the killer, or otherwise leaves no kill
// standing. A kill that is still playable afterwards is not missed.
func (g *Game) missedKill(seat, owner int, legal []Move, p plan) *Foul {
	var missed []plan
	for _, m := range legal {
		if m.Type != MoveDie {
			continue
		}
		k, ok := g.plan(owner, m)
		if !ok || len(k.kills) == 0 {
			continue
		}
		if g.killSurvives(owner, p, k) {
			return nil
		}
		missed = append(missed, k)
	}
	if len(missed) == 0 {
		return nil
	}
	k := missed[0]
	killer := g.piece(k.piece)
	foul := &Foul{
		Type:          FoulMissedKill,
		Seat:          seat,
		PieceID:       killer.ID,
		TargetPieceID: g.piece(k.kills[0]).ID,
		TargetSquare:  g.Board.Square(owner, k.to),
	}
	killer.State = StateBase
	killer.Progress = 0
	return foul
}

// killSurvives plays p on the board, checks whether k still kills and puts
// the board back.
func (g *Game) killSurvives(owner int, p, k plan) bool {
	if p.piece == k.piece {
		return false
	}
	pc := g.piece(p.piece)
	saved, dice := *pc, g.Turn.Dice
	defer func() {
		*pc = saved
		g.Turn.Dice = dice
	}()
	pc.State, pc.Progress = StateActive, p.to
	if p.to == g.Board.Goal() {
		pc.State = StateHome
	}
	for i, used := range p.use {
		if used {
			g.Turn.Dice.Used[i] = true
		}
	}
	after, ok := g.plan(owner, k.move)
	return ok && len(after.kills) > 0
}

// winners returns the seats that won after owner's piece moved, if any.
func (g *Game) winners(owner int) []int {
	if !g.opts.Pairs {
		if g.allHome(owner) {
			return []int{owner}
		}
		return nil
	}
	partner := Partner(owner)
	if g.allHome(owner) && g.allHome(partner) {
		if owner < partner {
			return []int{owner, partner}
		}
		return []int{partner, owner}
	}
	return nil
}
