package prometheus

import (
	"time"
)

// PipelineMetrics bundles every metric the docking pipeline emits.
type PipelineMetrics struct {
	// Structure fetcher
	FetchesTotal  CounterVec // outcome: hit|downloaded|failed
	FetchDuration HistogramVec

	// Preparation
	ReceptorPrepsTotal  CounterVec // outcome: ok|failed
	ReceptorPrepSeconds HistogramVec
	LigandPrepsTotal    CounterVec // outcome: ok|failed
	LigandPrepSeconds   HistogramVec
	VariantsPerLigand   HistogramVec

	// Docking runs
	RunsTotal      CounterVec // status: succeeded|failed
	RunSeconds     HistogramVec
	ActiveRuns     GaugeVec // scope: worker
	PosesPerRun    HistogramVec
	BestAffinity   HistogramVec
	PoseCacheTotal CounterVec // result: hit|miss
}

func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	return &PipelineMetrics{
		FetchesTotal: collector.RegisterCounter(
			"structure_fetches_total",
			"Structure fetch attempts by outcome.",
			"outcome"),
		FetchDuration: collector.RegisterHistogram(
			"structure_fetch_seconds",
			"Wall-clock time of structure fetches.",
			[]float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}),

		ReceptorPrepsTotal: collector.RegisterCounter(
			"receptor_preparations_total",
			"Receptor preparations by outcome.",
			"outcome"),
		ReceptorPrepSeconds: collector.RegisterHistogram(
			"receptor_preparation_seconds",
			"Wall-clock time of receptor preparation.",
			nil),
		LigandPrepsTotal: collector.RegisterCounter(
			"ligand_preparations_total",
			"Ligand preparations by outcome.",
			"outcome"),
		LigandPrepSeconds: collector.RegisterHistogram(
			"ligand_preparation_seconds",
			"Wall-clock time of ligand preparation.",
			nil),
		VariantsPerLigand: collector.RegisterHistogram(
			"ligand_variants",
			"Protonation variants produced per ligand.",
			[]float64{1, 2, 3, 4, 6, 8, 12, 16}),

		RunsTotal: collector.RegisterCounter(
			"docking_runs_total",
			"Completed docking runs by terminal status.",
			"status"),
		RunSeconds: collector.RegisterHistogram(
			"docking_run_seconds",
			"End-to-end docking run duration.",
			nil),
		ActiveRuns: collector.RegisterGauge(
			"active_docking_runs",
			"Docking runs currently executing.",
			"scope"),
		PosesPerRun: collector.RegisterHistogram(
			"poses_per_run",
			"Pose count per successful run.",
			[]float64{1, 2, 5, 9, 10, 20}),
		BestAffinity: collector.RegisterHistogram(
			"best_affinity_kcal_mol",
			"Best pose affinity per successful run.",
			[]float64{-14, -12, -10, -9, -8, -7, -6, -5, -4, -2, 0}),
		PoseCacheTotal: collector.RegisterCounter(
			"pose_cache_requests_total",
			"Pose cache lookups by result.",
			"result"),
	}
}

func (m *PipelineMetrics) RecordFetch(outcome string, elapsed time.Duration) {
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues().Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) RecordReceptorPrep(err error, elapsed time.Duration) {
	m.ReceptorPrepsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	m.ReceptorPrepSeconds.WithLabelValues().Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) RecordLigandPrep(err error, variants int, elapsed time.Duration) {
	m.LigandPrepsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	m.LigandPrepSeconds.WithLabelValues().Observe(elapsed.Seconds())
	if err == nil {
		m.VariantsPerLigand.WithLabelValues().Observe(float64(variants))
	}
}

func (m *PipelineMetrics) RecordRun(status string, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunSeconds.WithLabelValues().Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) RecordPoses(count int, bestAffinity float64) {
	m.PosesPerRun.WithLabelValues().Observe(float64(count))
	m.BestAffinity.WithLabelValues().Observe(bestAffinity)
}

func (m *PipelineMetrics) RecordPoseCache(hit bool) {
	if hit {
		m.PoseCacheTotal.WithLabelValues("hit").Inc()
	} else {
		m.PoseCacheTotal.WithLabelValues("miss").Inc()
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
