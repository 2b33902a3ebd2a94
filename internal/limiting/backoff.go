package limiting

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

var jitterRng = rand.New(rand.NewSource(time.Now().UnixNano()))
var jitterMu sync.Mutex

// BackoffPolicy computes capped exponential delays with additive jitter.
type BackoffPolicy struct {
	Base      time.Duration // delay for attempt zero
	Cap       time.Duration // upper bound for the exponential part
	MaxJitter time.Duration // exclusive upper bound of the random additive term
}

// Delay returns min(Base * 2^attempt, Cap) plus a random jitter below MaxJitter.
// Negative attempts are treated as zero.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.Base) * math.Pow(2, float64(attempt))
	if delay > float64(p.Cap) {
		delay = float64(p.Cap)
	}

	return time.Duration(delay) + p.jitter()
}

func (p BackoffPolicy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return time.Duration(jitterRng.Int63n(int64(p.MaxJitter)))
}
