package coin

import (
	"math/rand/v2"
	"sync"

	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
)

// Coin draws the outcome of a flip.
type Coin interface {
	Flip() models.Side
}

// Fair flips using the runtime-seeded global generator. Safe for concurrent use.
type Fair struct{}

// NewFair returns a fair coin.
func NewFair() Fair {
	return Fair{}
}

// Flip returns heads or tails with equal probability.
func (Fair) Flip() models.Side {
	return models.Sides[rand.IntN(len(models.Sides))]
}

// Fixed replays a sequence of outcomes, repeating the last one once exhausted.
type Fixed struct {
	mu    sync.Mutex
	sides []models.Side
	next  int
}

// NewFixed returns a coin that lands on sides in order.
func NewFixed(sides ...models.Side) *Fixed {
	if len(sides) == 0 {
		sides = []models.Side{models.Heads}
	}
	return &Fixed{sides: sides}
}

// Flip returns the next scripted side.
func (f *Fixed) Flip() models.Side {
	f.mu.Lock()
	defer f.mu.Unlock()

	side := f.sides[f.next]
	if f.next < len(f.sides)-1 {
		f.next++
	}
	return side
}
