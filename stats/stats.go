// Package stats defines the metric interfaces used across stdutils.  Code
// that wants to be observable takes a StatsFactory and creates its metrics
// up front; embedding hosts decide where the numbers go.
package stats

type CounterStat interface {
	Inc()
	Add(float64)
}

type GaugeStat interface {
	Set(float64)
	Get() float64

	Inc()
	Add(float64)

	Dec()
	Sub(float64)
}

type SummaryStat interface {
	Observe(float64)
}

type StatsFactory interface {
	NewCounter(
		metric string,
		tags map[string]string) CounterStat

	NewGauge(
		metric string,
		tags map[string]string) GaugeStat

	NewSummary(
		metric string,
		tags map[string]string) SummaryStat
}

// Returns factory if non-nil, otherwise NoOpStatsFactory.
func OrNoOp(factory StatsFactory) StatsFactory {
	if factory == nil {
		return NoOpStatsFactory
	}
	return factory
}
