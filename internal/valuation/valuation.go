// Package valuation turns raw CL position primitives (ticks, liquidity,
// sqrt price) into token amounts, prices and USD value. Everything here is
// a pure function of its inputs.
package valuation

import (
	"math"
	"math/big"

	"positionscope/internal/model"
)

// Inputs is one position plus the pool snapshot it is valued against.
// Tick and SqrtPriceX96 must come from the same snapshot.
type Inputs struct {
	TickLower      int32
	TickUpper      int32
	Liquidity      *big.Int
	Token0Decimals uint8
	Token1Decimals uint8

	Tick         int32
	SqrtPriceX96 *big.Int
}

// TickToPrice returns the token1-per-token0 price at a tick, adjusted for
// token decimals.
func TickToPrice(tick int32, decimals0, decimals1 uint8) float64 {
	return math.Pow(1.0001, float64(tick)) * math.Pow(10, float64(decimals0)-float64(decimals1))
}

// sqrtRatioAtTick returns sqrt(1.0001^tick) in raw (decimal-free) terms.
func sqrtRatioAtTick(tick int32) float64 {
	return math.Sqrt(math.Pow(1.0001, float64(tick)))
}

// sqrtRatioFromX96 converts a Q64.96 fixed-point sqrt price to a float.
func sqrtRatioFromX96(x *big.Int) float64 {
	if x == nil || x.Sign() == 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(x).Float64()
	return f / math.Ldexp(1, 96)
}

// Amounts decomposes liquidity into raw token amounts at the current tick.
// The lower bound is inclusive: at tick == tickLower the position is in
// range. The upper bound is exclusive: at tick >= tickUpper it is entirely
// token1.
func Amounts(in Inputs) (amount0, amount1 float64) {
	if in.Liquidity == nil || in.Liquidity.Sign() == 0 {
		return 0, 0
	}

	liquidity, _ := new(big.Float).SetInt(in.Liquidity).Float64()
	sqrtLower := sqrtRatioAtTick(in.TickLower)
	sqrtUpper := sqrtRatioAtTick(in.TickUpper)

	switch {
	case in.Tick < in.TickLower:
		amount0 = liquidity * (1/sqrtLower - 1/sqrtUpper)
	case in.Tick >= in.TickUpper:
		amount1 = liquidity * (sqrtUpper - sqrtLower)
	default:
		sqrtCurrent := sqrtRatioFromX96(in.SqrtPriceX96)
		if sqrtCurrent <= 0 {
			// No usable sqrt price in the snapshot; the tick itself
			// still pins the curve.
			sqrtCurrent = sqrtRatioAtTick(in.Tick)
		}
		amount0 = liquidity * (1/sqrtCurrent - 1/sqrtUpper)
		amount1 = liquidity * (sqrtCurrent - sqrtLower)
	}
	return amount0, amount1
}

// Build computes the fallback valuation from the closed-form formula and
// tags it approximate.
func Build(in Inputs) *model.Valuation {
	if in.Liquidity == nil {
		return nil
	}

	raw0, raw1 := Amounts(in)
	v := &model.Valuation{
		Source:  model.SourceApproximate,
		Amount0: scaleDown(raw0, in.Token0Decimals),
		Amount1: scaleDown(raw1, in.Token1Decimals),
	}
	attachPrices(v, in)
	return v
}

// BuildExact wraps helper-computed raw amounts and tags them exact. Prices
// and ranges still come from the snapshot tick.
func BuildExact(in Inputs, amount0Raw, amount1Raw *big.Int) *model.Valuation {
	raw0, _ := new(big.Float).SetInt(amount0Raw).Float64()
	raw1, _ := new(big.Float).SetInt(amount1Raw).Float64()
	v := &model.Valuation{
		Source:  model.SourceExact,
		Amount0: scaleDown(raw0, in.Token0Decimals),
		Amount1: scaleDown(raw1, in.Token1Decimals),
	}
	attachPrices(v, in)
	return v
}

// AttachFees scales raw unclaimed-fee amounts onto the valuation.
func AttachFees(v *model.Valuation, fees0Raw, fees1Raw *big.Int, decimals0, decimals1 uint8) {
	if v == nil || fees0Raw == nil || fees1Raw == nil {
		return
	}
	raw0, _ := new(big.Float).SetInt(fees0Raw).Float64()
	raw1, _ := new(big.Float).SetInt(fees1Raw).Float64()
	fees0 := scaleDown(raw0, decimals0)
	fees1 := scaleDown(raw1, decimals1)
	v.UnclaimedFees0 = &fees0
	v.UnclaimedFees1 = &fees1
}

// ApplyUSD fills the USD-denominated fields. A token whose unit price did
// not resolve contributes zero; it never blocks the other token.
func ApplyUSD(v *model.Valuation, price0, price1 float64, ok0, ok1 bool) {
	if v == nil {
		return
	}
	if ok0 {
		v.Token0PriceUSD = ptr(price0)
	}
	if ok1 {
		v.Token1PriceUSD = ptr(price1)
	}
	if !ok0 && !ok1 {
		return
	}

	value := 0.0
	if ok0 {
		value += v.Amount0 * price0
	}
	if ok1 {
		value += v.Amount1 * price1
	}
	v.ValueUSD = ptr(value)

	if v.UnclaimedFees0 != nil && v.UnclaimedFees1 != nil {
		fees := 0.0
		if ok0 {
			fees += *v.UnclaimedFees0 * price0
		}
		if ok1 {
			fees += *v.UnclaimedFees1 * price1
		}
		v.UnclaimedFeesUSD = ptr(fees)
	}
}

func attachPrices(v *model.Valuation, in Inputs) {
	price1Per0 := TickToPrice(in.Tick, in.Token0Decimals, in.Token1Decimals)
	v.Price1Per0 = ptr(price1Per0)
	if price1Per0 != 0 {
		v.Price0Per1 = ptr(1 / price1Per0)
	}

	lower := TickToPrice(in.TickLower, in.Token0Decimals, in.Token1Decimals)
	upper := TickToPrice(in.TickUpper, in.Token0Decimals, in.Token1Decimals)
	// Tick order does not survive inversion, so take elementwise min/max
	// per direction.
	min1Per0 := math.Min(lower, upper)
	max1Per0 := math.Max(lower, upper)
	v.Range1Per0Min = ptr(min1Per0)
	v.Range1Per0Max = ptr(max1Per0)
	if max1Per0 != 0 {
		v.Range0Per1Min = ptr(1 / max1Per0)
	}
	if min1Per0 != 0 {
		v.Range0Per1Max = ptr(1 / min1Per0)
	}
}

func scaleDown(raw float64, decimals uint8) float64 {
	return raw / math.Pow(10, float64(decimals))
}

func ptr(v float64) *float64 {
	return &v
}
