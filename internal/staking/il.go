package staking

// CoverageAt returns the impermanent-loss protection coverage for a position,
// in [0,1]. Coverage vests linearly from zero at stake time to full coverage
// after vestingDays. The ramp shape is a product decision surfaced on the
// dashboard, not a contract with the compute process.
func CoverageAt(stakedAt, now int64, vestingDays int) float64 {
	if vestingDays <= 0 || now <= stakedAt {
		return 0
	}
	full := int64(vestingDays) * 24 * 60 * 60
	elapsed := now - stakedAt
	if elapsed >= full {
		return 1
	}
	return float64(elapsed) / float64(full)
}
