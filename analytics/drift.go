package analytics

import (
	"math"
	"time"
)

// PerformanceTrend is the per-strategy output of a drift analysis window
// (spec §4.6).
type PerformanceTrend struct {
	SuccessRateTrend float64 // [-1,1]
	ConfidenceTrend  float64 // [-1,1]
	PerformanceTrend float64 // [-1,1]
	Volatility       float64 // >=0
}

// TrendDirection classifies the aggregate direction of a DriftAnalysis.
type TrendDirection string

const (
	Improving TrendDirection = "improving"
	Stable    TrendDirection = "stable"
	Degrading TrendDirection = "degrading"
)

// DriftAnalysis is the result of analyzing one selector's strategies over a
// time window (spec §3/§4.6).
type DriftAnalysis struct {
	SelectorName            string
	WindowStart             time.Time
	WindowEnd               time.Time
	DriftScore              float64
	TrendDirection          TrendDirection
	StrategyPerformance     map[string]PerformanceTrend
	Recommendations         []string
	ManualReviewRequired    bool
	RequiresImmediateAttn   bool
}

// DriftAnalyzer is a periodic reader over a Store's recorded samples; it
// never mutates metrics (spec §4.6: "Drift Analyzer is a periodic reader").
type DriftAnalyzer struct {
	store *Store
}

// NewDriftAnalyzer binds a DriftAnalyzer to store.
func NewDriftAnalyzer(store *Store) *DriftAnalyzer {
	return &DriftAnalyzer{store: store}
}

// Analyze computes a DriftAnalysis for selectorName over [windowStart,
// windowEnd].
func (a *DriftAnalyzer) Analyze(selectorName string, windowStart, windowEnd time.Time) DriftAnalysis {
	result := DriftAnalysis{
		SelectorName:        selectorName,
		WindowStart:         windowStart,
		WindowEnd:           windowEnd,
		StrategyPerformance: make(map[string]PerformanceTrend),
	}

	a.store.mu.RLock()
	strategyIDs := make([]string, 0)
	windowed := make(map[string][]sample)
	for key, samples := range a.store.samples {
		if key.selector != selectorName {
			continue
		}
		var inWindow []sample
		for _, s := range samples {
			if !s.at.Before(windowStart) && !s.at.After(windowEnd) {
				inWindow = append(inWindow, s)
			}
		}
		if len(inWindow) > 0 {
			strategyIDs = append(strategyIDs, key.strategy)
			windowed[key.strategy] = inWindow
		}
	}
	a.store.mu.RUnlock()

	var maxAbsSuccess, maxAbsConfidence float64
	var weightedPositiveSum, weightedTotal float64
	flippedInactive := false

	for _, id := range strategyIDs {
		samples := windowed[id]
		trend := computeTrend(samples)
		result.StrategyPerformance[id] = trend

		if math.Abs(trend.SuccessRateTrend) > maxAbsSuccess {
			maxAbsSuccess = math.Abs(trend.SuccessRateTrend)
		}
		if math.Abs(trend.ConfidenceTrend) > maxAbsConfidence {
			maxAbsConfidence = math.Abs(trend.ConfidenceTrend)
		}

		weightedTotal++
		weightedPositiveSum += trend.PerformanceTrend

		if len(samples) >= 2 && samples[0].wasActive && !samples[len(samples)-1].wasActive {
			flippedInactive = true
		}
	}

	result.DriftScore = math.Min(1, math.Max(maxAbsSuccess, maxAbsConfidence))

	if weightedTotal > 0 {
		mean := weightedPositiveSum / weightedTotal
		switch {
		case mean > 0.1:
			result.TrendDirection = Improving
		case mean < -0.1:
			result.TrendDirection = Degrading
		default:
			result.TrendDirection = Stable
		}
	} else {
		result.TrendDirection = Stable
	}

	result.ManualReviewRequired = result.DriftScore > 0.8 || flippedInactive
	result.RequiresImmediateAttn = result.DriftScore > 0.8 || result.ManualReviewRequired

	if result.TrendDirection == Degrading {
		result.Recommendations = append(result.Recommendations, "review strategy configuration for "+selectorName)
	}
	if result.ManualReviewRequired {
		result.Recommendations = append(result.Recommendations, "manual review required: drift exceeds safe bound or a strategy became inactive")
	}

	return result
}

// computeTrend derives a PerformanceTrend from a chronologically ordered
// sample slice: signed first-differences of window-halved means, normalized
// by the series standard deviation (spec §4.6).
func computeTrend(samples []sample) PerformanceTrend {
	if len(samples) < 2 {
		return PerformanceTrend{}
	}

	successSeries := make([]float64, len(samples))
	confidenceSeries := make([]float64, len(samples))
	for i, s := range samples {
		if s.success {
			successSeries[i] = 1
		}
		confidenceSeries[i] = s.confidence
	}

	successTrend := halvedMeanDiff(successSeries)
	confidenceTrend := halvedMeanDiff(confidenceSeries)
	volatility := stddev(confidenceSeries)

	performance := (successTrend + confidenceTrend) / 2

	return PerformanceTrend{
		SuccessRateTrend: clamp(successTrend, -1, 1),
		ConfidenceTrend:  clamp(confidenceTrend, -1, 1),
		PerformanceTrend: clamp(performance, -1, 1),
		Volatility:       volatility,
	}
}

// halvedMeanDiff splits series into two halves, takes the signed difference
// of their means, and normalizes by the full series' standard deviation.
func halvedMeanDiff(series []float64) float64 {
	mid := len(series) / 2
	if mid == 0 {
		return 0
	}
	firstHalf := series[:mid]
	secondHalf := series[mid:]
	diff := mean(secondHalf) - mean(firstHalf)

	sd := stddev(series)
	if sd == 0 {
		if diff == 0 {
			return 0
		}
		if diff > 0 {
			return 1
		}
		return -1
	}
	return diff / sd
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
