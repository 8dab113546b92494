package convert

// Baseline holds the send time of the first converted comment of a run.
// The zero value is unset.
type Baseline struct {
	firstMs int64
	set     bool
}

func (b Baseline) IsSet() bool { return b.set }

// FirstMs returns the baseline timestamp in epoch milliseconds.
func (b Baseline) FirstMs() int64 { return b.firstMs }

// Observe returns b, or a baseline anchored at ms when b is unset.
func (b Baseline) Observe(ms int64) Baseline {
	if b.set {
		return b
	}
	return Baseline{firstMs: ms, set: true}
}

// Offset is the whole seconds from the baseline to ms, rounded toward
// negative infinity. Lines older than the first comment yield negative
// offsets; nothing clamps them.
func (b Baseline) Offset(ms int64) int64 {
	if !b.set {
		return 0
	}
	return floorDiv(ms-b.firstMs, 1000)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
