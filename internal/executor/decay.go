package executor

import "math/big"

// DecayPolicy computes the amount for the next attempt.
type DecayPolicy interface {
	// Next returns the amount for attempt+1, given the original amount and
	// the amount used on attempt (1-based).
	Next(original, previous *big.Int, attempt int) *big.Int
}

// Compounding reduces the previous attempt's amount by attempt×25%.
// Starting from A: A, 0.75A, 0.375A, 0.09375A.
type Compounding struct{}

func (Compounding) Next(_, previous *big.Int, attempt int) *big.Int {
	return scale(previous, 100-int64(attempt)*25)
}

// Flat cuts 25% of the original amount per attempt: A, 0.75A, 0.5A, 0.25A.
type Flat struct{}

func (Flat) Next(original, _ *big.Int, attempt int) *big.Int {
	return scale(original, 100-int64(attempt)*25)
}

// PolicyByName maps a configured name to a policy, defaulting to Compounding.
func PolicyByName(name string) DecayPolicy {
	if name == "flat" {
		return Flat{}
	}
	return Compounding{}
}

func scale(v *big.Int, pct int64) *big.Int {
	if pct < 0 {
		pct = 0
	}
	out := new(big.Int).Mul(v, big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}
