package circulation

const (
	defaultDailyRateCents = int64(100)
	defaultGraceDays      = 0
)

// FinePolicy is the configuration surface for fine assessment. The original
// system buried rate and grace period inside its schema script; here they are
// explicit and injected into the storage engine.
type FinePolicy struct {
	// DailyRateCents is charged per chargeable overdue day.
	DailyRateCents int64

	// GraceDays is the number of overdue days forgiven before any amount
	// accrues. Days beyond the grace period are charged in full.
	GraceDays int
}

// DefaultFinePolicy returns the policy used when none is configured:
// one currency unit per overdue day, no grace period.
func DefaultFinePolicy() FinePolicy {
	return FinePolicy{
		DailyRateCents: defaultDailyRateCents,
		GraceDays:      defaultGraceDays,
	}
}

// AmountFor computes the fine amount for the given overdue days. Within the
// grace period the amount is zero and no fine should be recorded.
func (p FinePolicy) AmountFor(overdueDays int) int64 {
	chargeable := overdueDays - p.GraceDays
	if chargeable <= 0 {
		return 0
	}

	return int64(chargeable) * p.DailyRateCents
}
