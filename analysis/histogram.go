package analysis

import (
	"math"

	"github.com/trelay/railstream/types"
)

// Histogram bucket labels, in display order.
const (
	bucketEarly35  = "3-5 min early"
	bucketEarly23  = "2-3 min early"
	bucketOnTime   = "On time (±1 min)"
	bucketLate23   = "2-3 min late"
	bucketLate35   = "3-5 min late"
	bucketLate510  = "5-10 min late"
	bucketLate1015 = "10-15 min late"
	bucketLate1530 = "15-30 min late"
	bucketLate30   = "30+ min late"
	bucketCanc     = "Cancelled"
)

// BucketOrder returns the histogram bucket labels in display order.
func BucketOrder() []string {
	return []string{
		bucketEarly35, bucketEarly23, bucketOnTime,
		bucketLate23, bucketLate35, bucketLate510,
		bucketLate1015, bucketLate1530, bucketLate30,
		bucketCanc,
	}
}

// BuildHistogram buckets delays into the named distribution and derives the
// summary stats. Histogram values are percentages of the total including
// cancellations; the Cancelled bucket only appears when something was
// cancelled. Delays of more than five minutes early fall outside every
// bucket but still count toward the totals.
func BuildHistogram(delays []int, cancelled int) types.DelayHistogram {
	counts := map[string]int{
		bucketEarly35:  0,
		bucketEarly23:  0,
		bucketOnTime:   0,
		bucketLate23:   0,
		bucketLate35:   0,
		bucketLate510:  0,
		bucketLate1015: 0,
		bucketLate1530: 0,
		bucketLate30:   0,
	}

	var early, onTime, late, extreme int
	var sum int
	for _, d := range delays {
		switch {
		case d >= -5 && d <= -3:
			counts[bucketEarly35]++
		case d > -3 && d <= -2:
			counts[bucketEarly23]++
		case d >= -1 && d <= 1:
			counts[bucketOnTime]++
		case d > 1 && d <= 3:
			counts[bucketLate23]++
		case d > 3 && d <= 5:
			counts[bucketLate35]++
		case d > 5 && d <= 10:
			counts[bucketLate510]++
		case d > 10 && d <= 15:
			counts[bucketLate1015]++
		case d > 15 && d <= 30:
			counts[bucketLate1530]++
		case d > 30:
			counts[bucketLate30]++
		}

		switch {
		case d < -1:
			early++
		case d <= 1:
			onTime++
		default:
			late++
		}
		if d > 30 {
			extreme++
		}
		sum += d
	}
	if cancelled > 0 {
		counts[bucketCanc] = cancelled
	}

	total := len(delays) + cancelled
	histogram := make(map[string]float64, len(counts))
	for bucket, count := range counts {
		histogram[bucket] = percentage(count, total)
	}

	var avg float64
	if len(delays) > 0 {
		avg = round1(float64(sum) / float64(len(delays)))
	}

	return types.DelayHistogram{
		Histogram: histogram,
		RawCounts: counts,
		Stats: types.DelayStats{
			AvgDelay:            avg,
			EarlyCount:          early,
			OnTimeCount:         onTime,
			LateCount:           late,
			ExtremeDelays:       extreme,
			CancelledCount:      cancelled,
			TotalCount:          total,
			OnTimePercentage:    percentage(onTime, total),
			EarlyPercentage:     percentage(early, total),
			LatePercentage:      percentage(late, total),
			CancelledPercentage: percentage(cancelled, total),
		},
	}
}

func percentage(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(count) / float64(total) * 100)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
