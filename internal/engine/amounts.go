package engine

import "math/big"

// currentAmount computes an item's amount at time t. When start and end
// amounts differ the value interpolates linearly across the order's validity
// window. Rounding always favors the offerer: offer outputs round down,
// consideration obligations round up, so a fulfiller never receives more or
// owes less than the exact fraction.
func currentAmount(start, end *big.Int, startTime, endTime, t uint64, roundUp bool) *big.Int {
	if start.Cmp(end) == 0 || t <= startTime {
		return new(big.Int).Set(start)
	}
	if t >= endTime || endTime == startTime {
		return new(big.Int).Set(end)
	}

	elapsed := new(big.Int).SetUint64(t - startTime)
	duration := new(big.Int).SetUint64(endTime - startTime)
	remaining := new(big.Int).Sub(duration, elapsed)

	// Weighted average start*remaining + end*elapsed keeps every
	// intermediate value non-negative.
	total := new(big.Int).Mul(start, remaining)
	total.Add(total, new(big.Int).Mul(end, elapsed))
	if roundUp {
		total.Add(total, new(big.Int).Sub(duration, bigOne))
	}
	return total.Div(total, duration)
}

// scaleFraction applies numerator/denominator to an amount with the same
// asymmetric rounding as currentAmount. Interpolation runs first, scaling
// second.
func scaleFraction(amount, numerator, denominator *big.Int, roundUp bool) *big.Int {
	if numerator.Cmp(denominator) == 0 {
		return new(big.Int).Set(amount)
	}
	total := new(big.Int).Mul(amount, numerator)
	if roundUp {
		total.Add(total, new(big.Int).Sub(denominator, bigOne))
	}
	return total.Div(total, denominator)
}

var bigOne = big.NewInt(1)
