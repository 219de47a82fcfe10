package ranges

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScanOptions controls which events a scan considers.
type ScanOptions struct {
	// Filter restricts the scan to a single month. Nil means all months.
	Filter *Month

	// Lenient skips qualifying trips that carry no distance instead of
	// failing the scan.
	Lenient bool
}

// ScanStats counts how events were treated during a scan.
type ScanStats struct {
	Events        int
	Qualifying    int
	SkippedYear   int
	SkippedFilter int
	BadDistances  int // unparsable distances counted as zero
	Malformed     int // skipped in lenient mode
}

// Add accumulates o into s.
func (s *ScanStats) Add(o ScanStats) {
	s.Events += o.Events
	s.Qualifying += o.Qualifying
	s.SkippedYear += o.SkippedYear
	s.SkippedFilter += o.SkippedFilter
	s.BadDistances += o.BadDistances
	s.Malformed += o.Malformed
}

// DeviceResult is the outcome of scanning one device's events.
type DeviceResult struct {
	DeviceID string
	Monthly  map[Month]float64
	Yearly   float64
	Stats    ScanStats
}

// segmentState is the per-device scan state. It lives for one Scan call.
type segmentState struct {
	inTrip        bool
	running       float64
	runningYearly float64
	maxMonth      float64
	maxYearly     float64
	currentMonth  Month
	hasMonth      bool
}

// closeSegment folds the running accumulators into the maxima and zeroes them.
func (s *segmentState) closeSegment() {
	if !s.inTrip {
		return
	}
	s.maxMonth = max(s.maxMonth, s.running)
	s.maxYearly = max(s.maxYearly, s.runningYearly)
	s.running = 0
	s.runningYearly = 0
}

// Scan folds one device's events, in start-time order, into monthly and
// yearly maximum contiguous trip distances.
// This is a PURE function.
func Scan(deviceID string, events []Event, opts ScanOptions) (DeviceResult, error) {
	res := DeviceResult{
		DeviceID: deviceID,
		Monthly:  make(map[Month]float64),
	}
	var st segmentState

	flushMonth := func() {
		res.Monthly[st.currentMonth] = max(res.Monthly[st.currentMonth], st.maxMonth)
	}

	for i, e := range events {
		res.Stats.Events++

		month := MonthOf(e.Start)
		if !IsRecognizedYear(month.Year) {
			res.Stats.SkippedYear++
			continue
		}
		if opts.Filter != nil && month != *opts.Filter {
			res.Stats.SkippedFilter++
			continue
		}
		if e.Kind == KindTrip && !e.HasDistance {
			if !opts.Lenient {
				return DeviceResult{}, fmt.Errorf("%w: device %s event %d: trip without ride_distance", ErrMalformedRecord, deviceID, i)
			}
			res.Stats.Malformed++
			continue
		}
		res.Stats.Qualifying++

		switch {
		case !st.hasMonth:
			st.currentMonth = month
			st.hasMonth = true
		case month != st.currentMonth:
			// An open trip is closed into the finished month; the yearly
			// accumulator keeps running across the boundary.
			if st.inTrip {
				st.maxMonth = max(st.maxMonth, st.running)
			}
			flushMonth()
			st.running = 0
			st.maxMonth = 0
			st.currentMonth = month
		}

		switch e.Kind {
		case KindCharging:
			st.closeSegment()
			st.inTrip = false
		case KindTrip:
			st.inTrip = true
			d, ok := ParseDistance(e.Distance)
			if !ok {
				res.Stats.BadDistances++
			}
			st.running += d
			st.runningYearly += d
		}
	}

	st.closeSegment()
	if st.hasMonth {
		flushMonth()
	}
	res.Yearly = st.maxYearly

	return res, nil
}

// ParseDistance parses a stored distance as a plain decimal number.
// Unparsable or non-finite input yields (0, false). Digit separators and
// hexadecimal forms are not distances.
func ParseDistance(s string) (float64, bool) {
	if strings.ContainsRune(s, '_') || hasHexPrefix(s) {
		return 0, false
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

func hasHexPrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
