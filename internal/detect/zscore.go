package detect

import (
	"math"

	"sentryvision/internal/model"
)

const (
	// Minimum number of scores before the statistic means anything.
	minScores = 5

	DefaultCutoff     = 0.6
	DefaultZThreshold = 3.0
)

// MotionZScore flags a clip whose per-pair motion scores contain at least one
// extreme deviation from the clip's own mean. The maximum z-score is used
// rather than the mean so a single sharp event (crash, fall) embedded in
// otherwise uniform motion is not diluted across the clip. The statistic is
// scale-free: only relative deviation within one clip is meaningful.
type MotionZScore struct {
	Cutoff     float64
	ZThreshold float64
}

func NewMotionZScore(cutoff, zThreshold float64) *MotionZScore {
	if cutoff <= 0 || cutoff > 1 {
		cutoff = DefaultCutoff
	}
	if zThreshold <= 0 {
		zThreshold = DefaultZThreshold
	}
	return &MotionZScore{Cutoff: cutoff, ZThreshold: zThreshold}
}

// Detect never errors: too few scores or perfectly uniform motion is defined
// as "no anomaly", not a failure.
func (d *MotionZScore) Detect(scores []float64) model.AnomalyResult {
	if len(scores) < minScores {
		return model.AnomalyResult{}
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, v := range scores {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(scores))
	std := math.Sqrt(variance)
	if std == 0 {
		return model.AnomalyResult{}
	}

	var maxZ float64
	for _, v := range scores {
		z := math.Abs(v-mean) / std
		if z > maxZ {
			maxZ = z
		}
	}
	score := math.Min(maxZ/d.ZThreshold, 1)
	return model.AnomalyResult{
		IsAnomaly: score >= d.Cutoff,
		Score:     score,
	}
}

func Magnitudes(scores []model.MotionScore) []float64 {
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Magnitude)
	}
	return out
}
