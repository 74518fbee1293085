package freight

import (
	"sort"
	"time"

	"github.com/warp/freight-engine/generic"
)

// SortStops orders stops by SequenceNumber in place.
func SortStops(stops []Stop) {
	sort.SliceStable(stops, func(i, j int) bool {
		return stops[i].SequenceNumber < stops[j].SequenceNumber
	})
}

// IndexStops maps stop ID to stop.
func IndexStops(stops []Stop) map[string]Stop {
	m := make(map[string]Stop, len(stops))
	for _, s := range stops {
		m[s.ID] = s
	}
	return m
}

// StopIndex returns the position of stopID in an ordered slice, or -1.
func StopIndex(stops []Stop, stopID string) int {
	for i, s := range stops {
		if s.ID == stopID {
			return i
		}
	}
	return -1
}

// StopBegin resolves a stop's window begin.
func StopBegin(s Stop) (time.Time, bool) {
	return generic.ParseStopDateTime(s.WindowBeginDate, s.WindowBeginTime)
}

// stopEnd resolves a stop's window end. A window end without its own date
// falls on the begin date.
func stopEnd(s Stop) (time.Time, bool) {
	date := s.WindowEndDate
	if date == "" {
		date = s.WindowBeginDate
	}
	return generic.ParseStopDateTime(date, s.WindowEndTime)
}

// LegTimeRange spans from the start stop's window begin to the end stop's
// window end. The bool is false when either stop is missing or unparseable.
func LegTimeRange(start, end *Stop) (generic.TimeRange, bool) {
	if start == nil || end == nil {
		return generic.TimeRange{}, false
	}
	b, ok := StopBegin(*start)
	if !ok {
		return generic.TimeRange{}, false
	}
	e, ok := stopEnd(*end)
	if !ok {
		return generic.TimeRange{}, false
	}
	return generic.TimeRange{Start: b, End: e}, true
}

// RangeOf resolves a leg's time range from an index of its load's stops.
func RangeOf(leg Leg, stops map[string]Stop) (generic.TimeRange, bool) {
	start, okStart := stops[leg.StartStopID]
	end, okEnd := stops[leg.EndStopID]
	if !okStart || !okEnd {
		return generic.TimeRange{}, false
	}
	return LegTimeRange(&start, &end)
}

// StopsInLeg returns the stops from the leg's start stop through its end stop.
// stops must be ordered by SequenceNumber.
func StopsInLeg(leg Leg, stops []Stop) []Stop {
	from := StopIndex(stops, leg.StartStopID)
	to := StopIndex(stops, leg.EndStopID)
	if from < 0 || to < 0 || to < from {
		return nil
	}
	return stops[from : to+1]
}

// OpenLegs filters legs to PENDING/ACTIVE.
func OpenLegs(legs []Leg) []Leg {
	var out []Leg
	for _, l := range legs {
		if l.Status.IsOpen() {
			out = append(out, l)
		}
	}
	return out
}
