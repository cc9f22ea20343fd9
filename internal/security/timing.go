package security

import (
	"math/rand"
	"time"
)

// AddTimingNoise sleeps for a uniform random duration in [min, max], used
// before equivocating responses so timing does not leak which branch ran.
func AddTimingNoise(min, max time.Duration) {
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}
