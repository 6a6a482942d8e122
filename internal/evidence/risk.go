package evidence

// Risk factor weights. The score is a pure function of its inputs: the same
// factors always produce the same number, capped at 100.
const (
	riskNewDevice         = 25
	riskDivergentLocation = 35
	riskPerExtraAttempt   = 10
	riskExtraAttemptsCap  = 30
	riskOffHours          = 10
)

// RiskInput enumerates the explicit factors the score is derived from.
type RiskInput struct {
	NewDevice         bool
	DivergentLocation bool
	AttemptsUsed      int
	// OffHours is true when the local signing time falls outside 06:00-23:00.
	OffHours bool
}

// Score computes the deterministic 0-100 risk score and names the factors
// that contributed to it.
func Score(in RiskInput) (int, []string) {
	score := 0
	var factors []string

	if in.NewDevice {
		score += riskNewDevice
		factors = append(factors, "new_device")
	}
	if in.DivergentLocation {
		score += riskDivergentLocation
		factors = append(factors, "divergent_location")
	}
	if in.AttemptsUsed > 1 {
		extra := (in.AttemptsUsed - 1) * riskPerExtraAttempt
		if extra > riskExtraAttemptsCap {
			extra = riskExtraAttemptsCap
		}
		score += extra
		factors = append(factors, "repeated_attempts")
	}
	if in.OffHours {
		score += riskOffHours
		factors = append(factors, "off_hours")
	}

	if score > 100 {
		score = 100
	}
	return score, factors
}
