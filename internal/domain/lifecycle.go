package domain

import "time"

// EvaluateTransitions applies the time- and data-driven lifecycle rules to a
// battle and reports whether anything changed. The service calls it before
// every persist; the sweeper calls it on schedule. It is idempotent: running
// it on an already-consistent record is a no-op.
//
// Rules:
//   - pending + opponent accepted + both baselines set -> active
//   - active + end date passed -> completed (scored exactly as Complete)
func EvaluateTransitions(b *Battle, now time.Time) bool {
	changed := false

	if b.Status == BattleStatusPending &&
		b.OpponentID != nil &&
		b.CreatorProgress.Baseline != nil &&
		b.OpponentProgress.Baseline != nil {
		b.Status = BattleStatusActive
		b.StartedAt = &now
		changed = true
	}

	if b.Status == BattleStatusActive && b.EndDate != nil && now.After(*b.EndDate) {
		if err := b.Complete(now); err == nil {
			changed = true
		}
	}

	return changed
}
