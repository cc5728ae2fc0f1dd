package ludo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa/internal/domain"
)

func newGame(t *testing.T, variant domain.GameType, seats []int, opts Options) *Game {
	t.Helper()
	g, err := NewGame(variant, seats, opts)
	require.NoError(t, err)
	g.BeginTurn(seats[0])
	return g
}

func place(g *Game, seat, index, progress int) {
	pc := &g.Players[seat].Pieces[index]
	pc.State = StateActive
	pc.Progress = progress
	if progress == g.Board.Goal() {
		pc.State = StateHome
	}
}

func findMove(moves []Move, typ MoveType, pieceID string) (Move, bool) {
	for _, m := range moves {
		if m.Type == typ && m.PieceID == pieceID {
			return m, true
		}
	}
	return Move{}, false
}

func TestNewGameValidation(t *testing.T) {
	_, err := NewGame(domain.GameLa51, []int{0, 1}, Options{})
	require.ErrorIs(t, err, ErrUnknownVariant)

	_, err = NewGame(domain.GameParchis, []int{0, 1}, Options{Pairs: true})
	require.ErrorIs(t, err, ErrPairsNeedFour)

	g, err := NewGame(domain.GameParchis, []int{0, 1, 2, 3}, Options{Pairs: true})
	require.NoError(t, err)
	assert.Equal(t, Yellow, g.Players[0].Color)
	assert.Equal(t, "green-4", g.Players[3].Pieces[3].ID)
}

func TestRollRejections(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})

	_, err := g.Roll(1, [2]int{1, 2})
	require.ErrorIs(t, err, ErrNotYourTurn)
	_, err = g.Roll(0, [2]int{0, 7})
	require.ErrorIs(t, err, ErrInvalidDice)
	_, err = g.Move(0, Move{Type: MoveExit, PieceID: "red-1", DiceValue: 6})
	require.ErrorIs(t, err, ErrMustRoll)

	place(g, 0, 0, 10)
	_, err = g.Roll(0, [2]int{1, 2})
	require.NoError(t, err)
	_, err = g.Roll(0, [2]int{1, 2})
	require.ErrorIs(t, err, ErrAlreadyRolled)

	_, err = g.Move(0, Move{Type: MoveDie, PieceID: "red-1", DiceValue: 5})
	require.ErrorIs(t, err, ErrIllegalMove)
}

func TestNoMovesEndsTurn(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})

	res, err := g.Roll(0, [2]int{2, 3})
	require.NoError(t, err)
	assert.Empty(t, res.LegalMoves)
	assert.True(t, res.TurnOver)
	assert.False(t, res.RollAgain)
}

func TestDoublesWithoutMovesRollAgain(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})

	res, err := g.Roll(0, [2]int{2, 2})
	require.NoError(t, err)
	assert.True(t, res.RollAgain)
	assert.False(t, res.TurnOver)
	assert.True(t, g.Turn.CanRoll)
}

func TestDoublesGrantRollAndThreeDoublesFoul(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})
	place(g, 0, 0, 10)

	res, err := g.Roll(0, [2]int{3, 3})
	require.NoError(t, err)
	require.True(t, res.Doubles)
	_, ok := findMove(res.LegalMoves, MoveSum, "red-1")
	assert.True(t, ok, "sum is offered separately")

	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "red-1", DiceValue: 3})
	require.NoError(t, err)
	assert.False(t, mv.RollAgain, "one die still unused")
	mv, err = g.Move(0, Move{Type: MoveDie, PieceID: "red-1", DiceValue: 3})
	require.NoError(t, err)
	assert.True(t, mv.RollAgain)
	assert.Equal(t, 16, g.Players[0].Pieces[0].Progress)

	_, err = g.Roll(0, [2]int{2, 2})
	require.NoError(t, err)
	mv, err = g.Move(0, Move{Type: MoveSum, PieceID: "red-1", DiceValue: 4})
	require.NoError(t, err)
	assert.True(t, mv.RollAgain)

	res, err = g.Roll(0, [2]int{5, 5})
	require.NoError(t, err)
	require.NotNil(t, res.Foul)
	assert.Equal(t, FoulThreeDoubles, res.Foul.Type)
	assert.Equal(t, "red-1", res.Foul.PieceID)
	assert.Equal(t, 20, res.Foul.TargetSquare)
	assert.True(t, res.TurnOver)
	assert.Equal(t, StateBase, g.Players[0].Pieces[0].State)
}

func TestThreeDoublesSparesAPieceAlreadyHome(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})
	goal := g.Board.Goal()
	place(g, 0, 0, goal-4)
	place(g, 0, 1, 10)

	_, err := g.Roll(0, [2]int{3, 3})
	require.NoError(t, err)
	mv, err := g.Move(0, Move{Type: MoveSum, PieceID: "red-2", DiceValue: 6})
	require.NoError(t, err)
	require.True(t, mv.RollAgain)

	_, err = g.Roll(0, [2]int{2, 2})
	require.NoError(t, err)
	mv, err = g.Move(0, Move{Type: MoveSum, PieceID: "red-1", DiceValue: 4})
	require.NoError(t, err)
	require.True(t, mv.ReachedHome)
	require.True(t, mv.RollAgain)

	res, err := g.Roll(0, [2]int{5, 5})
	require.NoError(t, err)
	require.NotNil(t, res.Foul)
	assert.Equal(t, Foul{Type: FoulThreeDoubles, Seat: 0, TargetSquare: -1}, *res.Foul)
	assert.True(t, res.TurnOver)
	assert.Equal(t, StateHome, g.Players[0].Pieces[0].State)
	assert.Equal(t, 16, g.Players[0].Pieces[1].Progress)
}

func TestKillSendsToBaseAndGrantsRoll(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})
	place(g, 0, 0, 5)
	place(g, 1, 0, 48) // square 9

	_, err := g.Roll(0, [2]int{4, 1})
	require.NoError(t, err)
	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "red-1", DiceValue: 4})
	require.NoError(t, err)
	require.Len(t, mv.Kills, 1)
	assert.Equal(t, Kill{PieceID: "green-1", Color: Green, Square: 9}, mv.Kills[0])
	assert.Equal(t, StateBase, g.Players[1].Pieces[0].State)

	mv, err = g.Move(0, Move{Type: MoveDie, PieceID: "red-1", DiceValue: 1})
	require.NoError(t, err)
	assert.True(t, mv.RollAgain)
}

func TestNoKillOnSafeSquare(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})
	place(g, 0, 0, 5)
	place(g, 1, 0, 47) // square 8, safe

	_, err := g.Roll(0, [2]int{3, 1})
	require.NoError(t, err)
	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "red-1", DiceValue: 3})
	require.NoError(t, err)
	assert.Empty(t, mv.Kills)
	assert.Equal(t, StateActive, g.Players[1].Pieces[0].State)
}

func TestBlockadeCannotBeLandedOnOrPassed(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})
	place(g, 0, 0, 5)
	place(g, 1, 0, 48)
	place(g, 1, 1, 48) // green blockade on square 9

	res, err := g.Roll(0, [2]int{4, 6})
	require.NoError(t, err)
	for _, m := range res.LegalMoves {
		assert.NotEqual(t, "red-1", m.PieceID, "red-1 is stuck behind the blockade: %+v", m)
	}
	_, ok := findMove(res.LegalMoves, MoveExit, "red-2")
	assert.True(t, ok)
}

func TestExactRollToReachHome(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{})
	place(g, 0, 0, g.Board.Goal()-2)

	res, err := g.Roll(0, [2]int{2, 5})
	require.NoError(t, err)
	_, ok := findMove(res.LegalMoves, MoveSum, "red-1")
	assert.False(t, ok, "overshoot is not legal")

	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "red-1", DiceValue: 2})
	require.NoError(t, err)
	assert.True(t, mv.ReachedHome)
	assert.Equal(t, -1, mv.Square)
}

func TestAutoExit(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1}, Options{AutoExit: true})

	res, err := g.Roll(0, [2]int{6, 2})
	require.NoError(t, err)
	require.Len(t, res.AutoMoves, 1)
	assert.Equal(t, MoveExit, res.AutoMoves[0].Move.Type)
	assert.Equal(t, 0, res.AutoMoves[0].Square)
	assert.Equal(t, []Move{{Type: MoveDie, PieceID: "red-1", DiceValue: 2}}, res.LegalMoves)
}

func TestParchisExitOnSum(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1}, Options{})

	res, err := g.Roll(0, [2]int{2, 3})
	require.NoError(t, err)
	m, ok := findMove(res.LegalMoves, MoveExit, "yellow-1")
	require.True(t, ok)

	mv, err := g.Move(0, m)
	require.NoError(t, err)
	assert.Equal(t, 4, mv.Square)
	assert.True(t, mv.TurnOver, "both dice consumed by the exit")
}

func TestParchisExitKillsOnFullStart(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1}, Options{})
	place(g, 0, 0, 0)  // yellow on its start square 4
	place(g, 1, 0, 51) // blue on square 4

	res, err := g.Roll(0, [2]int{5, 1})
	require.NoError(t, err)
	m, ok := findMove(res.LegalMoves, MoveExit, "yellow-2")
	require.True(t, ok)

	mv, err := g.Move(0, m)
	require.NoError(t, err)
	require.Len(t, mv.Kills, 1)
	assert.Equal(t, "blue-1", mv.Kills[0].PieceID)
}

func TestParchisSquareCapacity(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1}, Options{})
	place(g, 0, 0, 1)  // square 5
	place(g, 1, 0, 58) // square 11, safe
	place(g, 1, 1, 58)

	res, err := g.Roll(0, [2]int{6, 1})
	require.NoError(t, err)
	_, ok := findMove(res.LegalMoves, MoveDie, "yellow-1")
	assert.True(t, ok, "die 1 is still legal")
	for _, m := range res.LegalMoves {
		if m.PieceID == "yellow-1" {
			assert.NotEqual(t, 6, m.DiceValue, "square 11 is full")
		}
	}
}

func TestParchisMissedKillFoul(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1}, Options{})
	place(g, 0, 0, 0)  // square 4
	place(g, 1, 0, 54) // square 7

	res, err := g.Roll(0, [2]int{3, 4})
	require.NoError(t, err)
	_, ok := findMove(res.LegalMoves, MoveDie, "yellow-1")
	require.True(t, ok)

	mv, err := g.Move(0, Move{Type: MoveSum, PieceID: "yellow-1", DiceValue: 7})
	require.NoError(t, err)
	require.NotNil(t, mv.Foul)
	assert.Equal(t, Foul{Type: FoulMissedKill, Seat: 0, PieceID: "yellow-1", TargetPieceID: "blue-1", TargetSquare: 7}, *mv.Foul)
	assert.True(t, mv.TurnOver)
	assert.Equal(t, StateBase, g.Players[0].Pieces[0].State)
	assert.Equal(t, 54, g.Players[1].Pieces[0].Progress, "submitted move is not applied")
}

func TestParchisOtherDieFirstKeepsTheKill(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1}, Options{})
	place(g, 0, 0, 0)  // square 4, three short of blue-1
	place(g, 0, 1, 20) // square 24
	place(g, 1, 0, 54) // square 7

	_, err := g.Roll(0, [2]int{3, 4})
	require.NoError(t, err)

	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "yellow-2", DiceValue: 4})
	require.NoError(t, err)
	assert.Nil(t, mv.Foul)
	assert.False(t, mv.TurnOver)
	assert.Equal(t, 24, g.Players[0].Pieces[1].Progress)
	assert.Equal(t, StateActive, g.Players[0].Pieces[0].State)

	mv, err = g.Move(0, Move{Type: MoveDie, PieceID: "yellow-1", DiceValue: 3})
	require.NoError(t, err)
	assert.Nil(t, mv.Foul)
	require.Len(t, mv.Kills, 1)
	assert.Equal(t, "blue-1", mv.Kills[0].PieceID)
	assert.True(t, mv.RollAgain)
}

func TestParchisSpendingTheKillingDieIsAFoul(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1}, Options{})
	place(g, 0, 0, 0)
	place(g, 0, 1, 20)
	place(g, 1, 0, 54)

	_, err := g.Roll(0, [2]int{3, 4})
	require.NoError(t, err)

	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "yellow-2", DiceValue: 3})
	require.NoError(t, err)
	require.NotNil(t, mv.Foul)
	assert.Equal(t, FoulMissedKill, mv.Foul.Type)
	assert.Equal(t, "yellow-1", mv.Foul.PieceID)
	assert.True(t, mv.TurnOver)
	assert.Equal(t, StateBase, g.Players[0].Pieces[0].State)
	assert.Equal(t, 20, g.Players[0].Pieces[1].Progress, "submitted move is not applied")
}

func TestParchisTakingTheKillIsNotAFoul(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1}, Options{})
	place(g, 0, 0, 0)
	place(g, 1, 0, 54)

	_, err := g.Roll(0, [2]int{3, 4})
	require.NoError(t, err)
	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "yellow-1", DiceValue: 3})
	require.NoError(t, err)
	assert.Nil(t, mv.Foul)
	assert.Len(t, mv.Kills, 1)
}

func TestPairsMovePartnerAndTeamWin(t *testing.T) {
	g := newGame(t, domain.GameParchis, []int{0, 1, 2, 3}, Options{Pairs: true})
	goal := g.Board.Goal()
	for i := 0; i < PiecesPerColor; i++ {
		place(g, 0, i, goal)
	}
	for i := 0; i < PiecesPerColor-1; i++ {
		place(g, 2, i, goal)
	}
	place(g, 2, 3, goal-3)

	res, err := g.Roll(0, [2]int{3, 1})
	require.NoError(t, err)
	_, ok := findMove(res.LegalMoves, MoveDie, "red-4")
	require.True(t, ok, "seat 0 moves its partner's pieces")

	mv, err := g.Move(0, Move{Type: MoveDie, PieceID: "red-4", DiceValue: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, mv.Winners)
	assert.True(t, g.Finished)
}

func TestRemoveSeatClearsBoard(t *testing.T) {
	g := newGame(t, domain.GameLudo, []int{0, 1, 2}, Options{})
	place(g, 1, 0, 48)

	g.RemoveSeat(1)
	assert.Equal(t, []int{0, 2}, g.ActiveSeats())
	assert.Empty(t, g.occupants(9))

	v := g.View()
	require.Len(t, v.Seats, 3)
	assert.True(t, v.Seats[1].Out)
	assert.Equal(t, -1, v.Seats[1].Pieces[0].Square)
}
