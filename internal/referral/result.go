package referral

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Credit is one ancestor level that was rewarded
type Credit struct {
	ReferrerID string          `json:"referrer_id"`
	Level      int             `json:"level"`
	Points     int64           `json:"points,omitempty"`
	AmountUSD  decimal.Decimal `json:"amount_usd,omitempty"`
}

// Skip is a level that was deliberately not rewarded
type Skip struct {
	ReferrerID string `json:"referrer_id"`
	Level      int    `json:"level"`
	Reason     string `json:"reason"`
}

// LevelError records the failure of one ancestor level. Level 0 means the
// fan-out could not start at all.
type LevelError struct {
	ReferrerID string
	Level      int
	Stage      string
	Err        error
}

func (e LevelError) Error() string {
	if e.Level == 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("level %d (%s) %s: %v", e.Level, e.ReferrerID, e.Stage, e.Err)
}

func (e LevelError) Unwrap() error {
	return e.Err
}

// FanOutResult reports partial success of a fan-out
type FanOutResult struct {
	Credited []Credit
	Skipped  []Skip
	Failed   []LevelError
}

// TotalPoints sums the credited points
func (r FanOutResult) TotalPoints() int64 {
	var total int64
	for _, c := range r.Credited {
		total += c.Points
	}
	return total
}

// TotalUSD sums the credited currency amounts
func (r FanOutResult) TotalUSD() decimal.Decimal {
	total := decimal.Zero
	for _, c := range r.Credited {
		total = total.Add(c.AmountUSD)
	}
	return total
}

// Err joins every level failure, or returns nil
func (r FanOutResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Aborted returns the error that stopped the fan-out before any level ran
func (r FanOutResult) Aborted() error {
	for _, f := range r.Failed {
		if f.Level == 0 {
			return f
		}
	}
	return nil
}

func (r *FanOutResult) fail(referrer string, level int, stage string, err error) {
	r.Failed = append(r.Failed, LevelError{ReferrerID: referrer, Level: level, Stage: stage, Err: err})
}

func (r *FanOutResult) skip(referrer string, level int, reason string) {
	r.Skipped = append(r.Skipped, Skip{ReferrerID: referrer, Level: level, Reason: reason})
}
