package ranges

import "sort"

// Aggregates accumulates per-device maxima across one invocation.
// The only mutation is a max-merge: stored values never decrease and are
// never summed. Not safe for concurrent use; merge one device at a time.
type Aggregates struct {
	monthly map[MonthlyKey]float64
	yearly  map[string]float64
}

// NewAggregates creates an empty aggregate store.
func NewAggregates() *Aggregates {
	return &Aggregates{
		monthly: make(map[MonthlyKey]float64),
		yearly:  make(map[string]float64),
	}
}

// UpsertMonthly stores max(stored, v) for key.
func (a *Aggregates) UpsertMonthly(key MonthlyKey, v float64) {
	if cur, ok := a.monthly[key]; !ok || v > cur {
		a.monthly[key] = max(v, 0)
	}
}

// UpsertYearly stores max(stored, v) for the device.
func (a *Aggregates) UpsertYearly(deviceID string, v float64) {
	if cur, ok := a.yearly[deviceID]; !ok || v > cur {
		a.yearly[deviceID] = max(v, 0)
	}
}

// Merge folds one device's scan result into the store.
func (a *Aggregates) Merge(r DeviceResult) {
	for m, v := range r.Monthly {
		a.UpsertMonthly(MonthlyKey{DeviceID: r.DeviceID, Month: m}, v)
	}
	a.UpsertYearly(r.DeviceID, r.Yearly)
}

// MonthlyValue returns the stored value for key.
func (a *Aggregates) MonthlyValue(key MonthlyKey) (float64, bool) {
	v, ok := a.monthly[key]
	return v, ok
}

// YearlyValue returns the stored value for a device.
func (a *Aggregates) YearlyValue(deviceID string) (float64, bool) {
	v, ok := a.yearly[deviceID]
	return v, ok
}

// Len returns the number of monthly aggregates.
func (a *Aggregates) Len() int {
	return len(a.monthly)
}

// Monthly returns all monthly aggregates ordered by device, then month.
func (a *Aggregates) Monthly() []MonthlyAggregate {
	out := make([]MonthlyAggregate, 0, len(a.monthly))
	for k, v := range a.monthly {
		out = append(out, MonthlyAggregate{DeviceID: k.DeviceID, Month: k.Month, MaxDistance: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// Yearly returns all yearly aggregates ordered by device.
func (a *Aggregates) Yearly() []YearlyAggregate {
	out := make([]YearlyAggregate, 0, len(a.yearly))
	for id, v := range a.yearly {
		out = append(out, YearlyAggregate{DeviceID: id, MaxDistance: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}
