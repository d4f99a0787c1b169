package models

// Side is one face of the coin.
type Side string

// Supported coin sides
const (
	Heads Side = "heads"
	Tails Side = "tails"
)

// Sides lists every outcome a wager can resolve to.
var Sides = [2]Side{Heads, Tails}

// Valid reports whether s is one of the two coin faces.
func (s Side) Valid() bool {
	return s == Heads || s == Tails
}

func (s Side) String() string {
	return string(s)
}
