package cffi

import (
	"time"

	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/stats"
	"github.com/covscript/stdutils/time2"
)

// Options configures libraries and the dispatchers bound through them.  The
// zero value is usable.
type Options struct {
	// Receives bridge metrics.  Defaults to stats.NoOpStatsFactory.
	Stats stats.StatsFactory

	// Used to measure native call latency.  Defaults to time2.DefaultClock.
	Clock time2.Clock

	// When set, an inferred call whose call interface cannot be prepared
	// fails with CallInterfacePrepFailed.  Otherwise the call is skipped and
	// the null value returned.
	StrictInferred bool
}

// Metric names.
const (
	callsMetric          = "cffi.calls"
	callErrorsMetric     = "cffi.call_errors"
	prepFailuresMetric   = "cffi.inferred_prep_failures"
	openLibrariesMetric  = "cffi.open_libraries"
	callLatencyMetric    = "cffi.call_latency_usec"
	modeTag              = "mode"
	kindTag              = "kind"
	typedMode            = "typed"
	inferredMode         = "inferred"
	unclassifiedErrorTag = "unclassified"
)

type bridgeStats struct {
	factory      stats.StatsFactory
	clock        time2.Clock
	calls        stats.CounterStat
	prepFailures stats.CounterStat
	latency      stats.SummaryStat
}

func newBridgeStats(options Options, mode string) *bridgeStats {
	factory := stats.OrNoOp(options.Stats)
	tags := map[string]string{modeTag: mode}
	return &bridgeStats{
		factory:      factory,
		clock:        time2.OrDefault(options.Clock),
		calls:        factory.NewCounter(callsMetric, tags),
		prepFailures: factory.NewCounter(prepFailuresMetric, nil),
		latency:      factory.NewSummary(callLatencyMetric, tags),
	}
}

// Counts err under its kind and returns it unchanged.
func (s *bridgeStats) failed(err error) error {
	kind := string(errors.KindOf(err))
	if kind == "" {
		kind = unclassifiedErrorTag
	}
	s.factory.NewCounter(callErrorsMetric, map[string]string{kindTag: kind}).Inc()
	return err
}

// Runs one native call, counting and timing it.
func (s *bridgeStats) timed(call func()) {
	start := s.clock.Now()
	call()
	s.calls.Inc()
	s.latency.Observe(float64(s.clock.Since(start) / time.Microsecond))
}
