package metrics

import (
	"time"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/numeric"
)

// DefaultTimelineDays is the window used by the dashboard overview.
const DefaultTimelineDays = 10

// TimelineLabelLayout formats the day label of a timeline point.
const TimelineLabelLayout = "Jan 02"

// TimelinePoint is the volume of one UTC calendar day.
type TimelinePoint struct {
	Date        time.Time `json:"date"`
	Label       string    `json:"label"`
	Deposits    float64   `json:"deposits"`
	Withdrawals float64   `json:"withdrawals"`
	Net         float64   `json:"net"`
}

type dayBucket struct {
	deposits    float64
	withdrawals float64
}

// BuildTimeline returns exactly windowDays points, oldest first, ending with
// the UTC day that contains now. Days without operations are present with
// zero volumes.
//
// Operations are bucketed by the UTC calendar date of created_at; records
// whose created_at cannot be parsed are skipped. Anything that is not a
// deposit counts as a withdrawal.
func BuildTimeline(ops []domain.OperationRecord, windowDays int, now time.Time) []TimelinePoint {
	if windowDays <= 0 {
		return []TimelinePoint{}
	}

	buckets := make(map[time.Time]*dayBucket)
	for _, op := range ops {
		created, ok := op.CreatedTime()
		if !ok {
			continue
		}
		day := utcDay(created)
		b, exists := buckets[day]
		if !exists {
			b = &dayBucket{}
			buckets[day] = b
		}
		if op.IsDeposit() {
			b.deposits += numeric.ToNumber(op.Amount)
		} else {
			b.withdrawals += numeric.ToNumber(op.Amount)
		}
	}

	today := utcDay(now)
	points := make([]TimelinePoint, 0, windowDays)
	for i := windowDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		point := TimelinePoint{Date: day, Label: day.Format(TimelineLabelLayout)}
		if b, ok := buckets[day]; ok {
			point.Deposits = b.deposits
			point.Withdrawals = b.withdrawals
		}
		point.Net = point.Deposits - point.Withdrawals
		points = append(points, point)
	}
	return points
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
