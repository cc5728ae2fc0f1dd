package ludo

import "mesa/internal/domain"

// Color of a seat's pieces.
type Color string

const (
	Red    Color = "red"
	Green  Color = "green"
	Yellow Color = "yellow"
	Blue   Color = "blue"
)

// PiecesPerColor is the number of pieces every color owns.
const PiecesPerColor = 4

// Board is the static geometry of a variant. Pieces measure position as
// progress from their own start square: [0, MainSteps) is the shared track,
// [MainSteps, Goal) the private home stretch and Goal is home.
type Board struct {
	Variant      domain.GameType
	TrackSize    int
	StartSquares [domain.SeatCount]int
	Colors       [domain.SeatCount]Color
	MainSteps    int
	StretchLen   int
	Safe         map[int]bool
	MaxPerSquare int // 0 means unlimited
	ExitValue    int
	ExitOnSum    bool

	// MandatoryKill makes skipping an available individual-die kill a foul.
	MandatoryKill bool
}

var ludoBoard = Board{
	Variant:      domain.GameLudo,
	TrackSize:    52,
	StartSquares: [domain.SeatCount]int{0, 13, 26, 39},
	Colors:       [domain.SeatCount]Color{Red, Green, Yellow, Blue},
	MainSteps:    51,
	StretchLen:   5,
	Safe:         squares(0, 13, 26, 39, 8, 21, 34, 47),
	ExitValue:    6,
}

var parchisBoard = Board{
	Variant:      domain.GameParchis,
	TrackSize:    68,
	StartSquares: [domain.SeatCount]int{4, 21, 38, 55},
	Colors:       [domain.SeatCount]Color{Yellow, Blue, Red, Green},
	MainSteps:    64,
	StretchLen:   7,
	Safe:         squares(4, 11, 16, 21, 28, 33, 38, 45, 50, 55, 62, 67),
	MaxPerSquare: 2,
	ExitValue:    5,
	ExitOnSum:    true,

	MandatoryKill: true,
}

func squares(ids ...int) map[int]bool {
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// BoardFor returns the board for a board game type.
func BoardFor(game domain.GameType) (*Board, bool) {
	switch game {
	case domain.GameLudo:
		b := ludoBoard
		return &b, true
	case domain.GameParchis:
		b := parchisBoard
		return &b, true
	}
	return nil, false
}

// Goal is the progress value of a piece that reached home.
func (b *Board) Goal() int {
	return b.MainSteps + b.StretchLen
}

// Square maps a seat's progress to a shared track square, or -1 when the
// progress is in the private home stretch.
func (b *Board) Square(seat, progress int) int {
	if progress < 0 || progress >= b.MainSteps {
		return -1
	}
	return (b.StartSquares[seat] + progress) % b.TrackSize
}

// IsSafe reports whether a shared square is exempt from kills and blockades.
func (b *Board) IsSafe(square int) bool {
	return b.Safe[square]
}

// Partner is the team mate seat in pairs mode.
func Partner(seat int) int {
	return (seat + 2) % domain.SeatCount
}
