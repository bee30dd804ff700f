package analytics

// ChangeType classifies the direction of a period-over-period delta.
type ChangeType string

const (
	ChangeIncrease ChangeType = "increase"
	ChangeDecrease ChangeType = "decrease"
	ChangeNeutral  ChangeType = "neutral"
)

// TrendStat compares a count for the current period against the
// immediately preceding period of equal length.
type TrendStat struct {
	Label      string     `json:"label"`
	Current    int        `json:"current"`
	Previous   int        `json:"previous"`
	Change     int        `json:"change"`
	ChangeType ChangeType `json:"changeType"`
}

// NewTrendStat derives the delta and its direction from two adjacent
// period counts. A previous-period count of zero with a positive current
// count is an ordinary increase, never an error.
func NewTrendStat(label string, current, previous int) TrendStat {
	change := current - previous
	ct := ChangeNeutral
	switch {
	case change > 0:
		ct = ChangeIncrease
	case change < 0:
		ct = ChangeDecrease
	}
	return TrendStat{
		Label:      label,
		Current:    current,
		Previous:   previous,
		Change:     change,
		ChangeType: ct,
	}
}
