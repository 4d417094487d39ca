// Package analysis computes journey delay statistics from HSP service data
// and drives the progress-emitting analysis run.
package analysis

import (
	"strconv"

	"github.com/trelay/railstream/hsp"
)

// DelayMinutes computes the delay between a scheduled and an actual HHMM
// time. Positive is late, negative is early. ok is false for missing or
// unparseable times, which callers treat as a cancellation signal.
//
// Times near midnight can land on the other side of a day boundary; a gap
// of more than twelve hours is assumed to be a rollover rather than a real
// half-day delay.
func DelayMinutes(scheduled, actual string) (int, bool) {
	if scheduled == "" || actual == "" {
		return 0, false
	}
	if scheduled == actual {
		return 0, true
	}

	schedMins, ok := parseHHMM(scheduled)
	if !ok {
		return 0, false
	}
	actualMins, ok := parseHHMM(actual)
	if !ok {
		return 0, false
	}

	diff := actualMins - schedMins
	if diff < -720 {
		diff += 24 * 60
	} else if diff > 720 {
		diff -= 24 * 60
	}
	return diff, true
}

func parseHHMM(t string) (int, bool) {
	if len(t) != 4 {
		return 0, false
	}
	hours, err := strconv.Atoi(t[:2])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.Atoi(t[2:])
	if err != nil {
		return 0, false
	}
	return hours*60 + mins, true
}

// JourneyDelays is what one service run contributes to the analysis: a
// delay per direction when the service ran, or a cancellation reason when
// it did not.
type JourneyDelays struct {
	Departure       *int
	Arrival         *int
	DepartureCancel string
	ArrivalCancel   string
}

// cancelledUnknown is recorded when a service has no actual time and the
// feed gave no reason.
const cancelledUnknown = "Service cancelled"

// StationDelays extracts the origin departure delay and destination arrival
// delay from a service run's calling points. A calling point with a
// scheduled time but no actual time is a cancellation at that station.
func StationDelays(locations []hsp.Location, origin, destination string) JourneyDelays {
	var jd JourneyDelays

	for _, loc := range locations {
		if loc.Name == origin && loc.GBTTPTD != "" {
			if loc.ActualTD != "" {
				if d, ok := DelayMinutes(loc.GBTTPTD, loc.ActualTD); ok {
					v := d
					jd.Departure = &v
				}
			} else if loc.LateCancReason != "" {
				jd.DepartureCancel = loc.LateCancReason
			} else {
				jd.DepartureCancel = cancelledUnknown
			}
		}

		if loc.Name == destination && loc.GBTTPTA != "" {
			if loc.ActualTA != "" {
				if d, ok := DelayMinutes(loc.GBTTPTA, loc.ActualTA); ok {
					v := d
					jd.Arrival = &v
				}
			} else if loc.LateCancReason != "" {
				jd.ArrivalCancel = loc.LateCancReason
			} else {
				jd.ArrivalCancel = cancelledUnknown
			}
		}
	}

	return jd
}
