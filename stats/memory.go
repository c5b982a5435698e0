package stats

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStatsFactory keeps every metric in process memory.  Metrics created
// with the same name and tags share storage, so independent components that
// report the same metric accumulate into one value.  Useful for tests and for
// hosts that export numbers on demand.
type MemoryStatsFactory struct {
	mutex        sync.Mutex
	values       map[string]float64   // guarded by mutex
	observations map[string][]float64 // guarded by mutex
}

func NewMemoryStatsFactory() *MemoryStatsFactory {
	return &MemoryStatsFactory{
		values:       make(map[string]float64),
		observations: make(map[string][]float64),
	}
}

// Canonical storage key: metric name followed by tags sorted by key.
func metricKey(metric string, tags map[string]string) string {
	if len(tags) == 0 {
		return metric
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(metric)
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(tags[k])
	}
	b.WriteString("}")
	return b.String()
}

// Returns the current value of a counter or gauge (0 if never touched).
func (f *MemoryStatsFactory) Value(metric string, tags map[string]string) float64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.values[metricKey(metric, tags)]
}

// Returns a copy of everything observed by a summary.
func (f *MemoryStatsFactory) Observations(
	metric string,
	tags map[string]string) []float64 {

	f.mutex.Lock()
	defer f.mutex.Unlock()
	obs := f.observations[metricKey(metric, tags)]
	result := make([]float64, len(obs))
	copy(result, obs)
	return result
}

// Returns the storage keys of every counter and gauge, sorted.
func (f *MemoryStatsFactory) Keys() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Returns a copy of every counter and gauge value, keyed as Keys.
func (f *MemoryStatsFactory) Snapshot() map[string]float64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	result := make(map[string]float64, len(f.values))
	for k, v := range f.values {
		result[k] = v
	}
	return result
}

func (f *MemoryStatsFactory) add(key string, delta float64) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.values[key] += delta
}

func (f *MemoryStatsFactory) set(key string, v float64) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.values[key] = v
}

func (f *MemoryStatsFactory) get(key string) float64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.values[key]
}

func (f *MemoryStatsFactory) observe(key string, v float64) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.observations[key] = append(f.observations[key], v)
}

type memoryStat struct {
	factory *MemoryStatsFactory
	key     string
}

func (s memoryStat) Inc() {
	s.factory.add(s.key, 1)
}

func (s memoryStat) Add(v float64) {
	s.factory.add(s.key, v)
}

func (s memoryStat) Dec() {
	s.factory.add(s.key, -1)
}

func (s memoryStat) Sub(v float64) {
	s.factory.add(s.key, -v)
}

func (s memoryStat) Set(v float64) {
	s.factory.set(s.key, v)
}

func (s memoryStat) Get() float64 {
	return s.factory.get(s.key)
}

func (s memoryStat) Observe(v float64) {
	s.factory.observe(s.key, v)
}

func (f *MemoryStatsFactory) NewCounter(
	metric string,
	tags map[string]string) CounterStat {

	return memoryStat{f, metricKey(metric, tags)}
}

func (f *MemoryStatsFactory) NewGauge(
	metric string,
	tags map[string]string) GaugeStat {

	return memoryStat{f, metricKey(metric, tags)}
}

func (f *MemoryStatsFactory) NewSummary(
	metric string,
	tags map[string]string) SummaryStat {

	return memoryStat{f, metricKey(metric, tags)}
}
