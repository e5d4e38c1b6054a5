// Package auction computes Dutch auction price decay for Fusion+ orders.
// The rate decays linearly from the start rate to the end rate over the
// auction duration; outside the window the boundary rate applies.
package auction

import (
	"fmt"
	"math/big"
	"time"
)

// Terms are the static auction parameters carried on an intent.
type Terms struct {
	StartTime time.Time
	Duration  time.Duration
	StartRate string
	EndRate   string
}

// IsDutchAuction reports whether the terms describe a decaying auction. The
// "0"/"0" rate pair is the not-an-auction sentinel.
func (t Terms) IsDutchAuction() bool {
	start, ok1 := new(big.Rat).SetString(t.StartRate)
	end, ok2 := new(big.Rat).SetString(t.EndRate)
	if !ok1 || !ok2 {
		return false
	}
	return start.Sign() != 0 || end.Sign() != 0
}

// CurrentRate returns the auction rate at the given instant as a decimal
// string. Before the start it is the start rate, after start+duration the
// end rate, and linear interpolation in between.
func CurrentRate(t Terms, now time.Time) (string, error) {
	start, ok := new(big.Rat).SetString(t.StartRate)
	if !ok {
		return "", fmt.Errorf("invalid start rate %q", t.StartRate)
	}
	end, ok := new(big.Rat).SetString(t.EndRate)
	if !ok {
		return "", fmt.Errorf("invalid end rate %q", t.EndRate)
	}
	if !t.IsDutchAuction() {
		return ratString(end), nil
	}
	if start.Cmp(end) <= 0 {
		return "", fmt.Errorf("start rate %q must exceed end rate %q", t.StartRate, t.EndRate)
	}
	if t.Duration <= 0 {
		return "", fmt.Errorf("auction duration must be positive")
	}

	if !now.After(t.StartTime) {
		return ratString(start), nil
	}
	elapsed := now.Sub(t.StartTime)
	if elapsed >= t.Duration {
		return ratString(end), nil
	}

	// rate = start - (start - end) * elapsed / duration
	span := new(big.Rat).Sub(start, end)
	frac := new(big.Rat).SetFrac64(elapsed.Milliseconds(), t.Duration.Milliseconds())
	decay := new(big.Rat).Mul(span, frac)
	return ratString(new(big.Rat).Sub(start, decay)), nil
}

// TakingAmountAt applies the rate at the given instant to a making amount,
// rounding the result down to an integer smallest-unit amount.
func TakingAmountAt(t Terms, makingAmount string, now time.Time) (string, error) {
	amount, ok := new(big.Rat).SetString(makingAmount)
	if !ok {
		return "", fmt.Errorf("invalid making amount %q", makingAmount)
	}
	rateStr, err := CurrentRate(t, now)
	if err != nil {
		return "", err
	}
	rate, _ := new(big.Rat).SetString(rateStr)
	product := new(big.Rat).Mul(amount, rate)
	return new(big.Int).Quo(product.Num(), product.Denom()).String(), nil
}

// ratString renders a rational as a fixed-point decimal with up to 18 places,
// trailing zeros trimmed.
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(18)
	// trim trailing zeros, keep at least one decimal digit
	i := len(s) - 1
	for i > 0 && s[i] == '0' {
		i--
	}
	if s[i] == '.' {
		i--
	}
	return s[:i+1]
}
