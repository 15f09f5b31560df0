package dex

import "fmt"

// LowestFeeTier is the stable-pair tier excluded from rankings.
const LowestFeeTier = "0.01%"

var feeTiers = map[uint32]string{
	100:   LowestFeeTier,
	500:   "0.05%",
	2500:  "0.25%",
	3000:  "0.3%",
	10000: "1%",
}

// FeeTier converts the on-chain fee (hundredths of a basis point) to its
// display percentage.
func FeeTier(fee uint32) string {
	if tier, ok := feeTiers[fee]; ok {
		return tier
	}
	return fmt.Sprintf("%.2f%%", float64(fee)/10000)
}
