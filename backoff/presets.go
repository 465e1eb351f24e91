package backoff

import "time"

// Aggressive returns short delays (100ms -> 5s) with a 20-attempt cap,
// suited to low-latency reconnect scenarios.
func Aggressive() Policy {
	return &Exponential{
		Initial:     100 * time.Millisecond,
		Multiplier:  2,
		Max:         5 * time.Second,
		Jitter:      0.1,
		MaxAttempts: 20,
	}
}

// Conservative returns 1s -> 2min delays, 10 attempts, ±30% jitter.
func Conservative() Policy {
	return &Exponential{
		Initial:     1 * time.Second,
		Multiplier:  2,
		Max:         2 * time.Minute,
		Jitter:      0.3,
		MaxAttempts: 10,
	}
}

// Infinite never stops; delays grow exponentially from 1s up to 1 minute.
func Infinite() Policy {
	return &Exponential{
		Initial:     1 * time.Second,
		Multiplier:  2,
		Max:         1 * time.Minute,
		Jitter:      0.2,
		MaxAttempts: 0,
	}
}
