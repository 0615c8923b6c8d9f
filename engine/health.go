package engine

import "github.com/shopspring/decimal"

// =============================================================================
// HEALTH CLASSIFIER - GREEN / YELLOW / RED
// =============================================================================

// HealthStatus is a three-tier budget health, severity RED > YELLOW > GREEN.
type HealthStatus string

const (
	StatusGreen  HealthStatus = "green"  // remaining >= 20% of approved
	StatusYellow HealthStatus = "yellow" // 0 < remaining < 20% of approved
	StatusRed    HealthStatus = "red"    // remaining <= 0
)

// yellowThresholdRatio is the fraction of approved budget under which a
// still-positive remaining turns YELLOW.
var yellowThresholdRatio = decimal.NewFromFloat(0.20)

// Classify maps (approved, remaining) to a health status. State-free.
//
// approved <= 0 makes the 20% threshold vacuous; policy: RED when
// remaining <= 0 (money is being spent against nothing), GREEN otherwise.
func Classify(approved, remaining decimal.Decimal) HealthStatus {
	if approved.Sign() <= 0 {
		if remaining.Sign() <= 0 {
			return StatusRed
		}
		return StatusGreen
	}

	switch {
	case remaining.Sign() <= 0:
		return StatusRed
	case remaining.LessThan(approved.Mul(yellowThresholdRatio)):
		return StatusYellow
	default:
		return StatusGreen
	}
}
