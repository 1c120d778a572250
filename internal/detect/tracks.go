package detect

import (
	"math"

	"sentryvision/internal/model"
)

// TrackEvent is the result of a track-based strategy: where and when the
// event happened, and which objects were involved, so a downstream renderer
// can localize it.
type TrackEvent struct {
	Kind      model.EventKind
	Result    model.AnomalyResult
	StartTime float64
	CX, CY    float64
	ObjectIDs []int
}

// TrackStrategy detects anomalies over object-tracker output instead of raw
// pixel scores. Hosts that run a tracker in front of the core use these; the
// default pipeline uses MotionZScore.
type TrackStrategy interface {
	DetectTracks(samples []model.TrackSample) TrackEvent
}

// Collision fires when two distinct tracked objects close within Radius while
// both are moving faster than MinSpeed at the same instant.
type Collision struct {
	Radius   float64
	MinSpeed float64
}

func NewCollision() *Collision {
	return &Collision{Radius: 150, MinSpeed: 30}
}

func (c *Collision) DetectTracks(samples []model.TrackSample) TrackEvent {
	byTime := groupByTimestamp(samples)
	for _, group := range byTime {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.ObjectID == b.ObjectID {
					continue
				}
				if a.Speed < c.MinSpeed || b.Speed < c.MinSpeed {
					continue
				}
				if dist(a.CX, a.CY, b.CX, b.CY) > c.Radius {
					continue
				}
				return TrackEvent{
					Kind:      model.EventCollision,
					Result:    model.AnomalyResult{IsAnomaly: true, Score: 1},
					StartTime: a.Timestamp,
					CX:        (a.CX + b.CX) / 2,
					CY:        (a.CY + b.CY) / 2,
					ObjectIDs: []int{a.ObjectID, b.ObjectID},
				}
			}
		}
	}
	return TrackEvent{Kind: model.EventNone}
}

// Fall fires when a single track shows a sudden downward displacement that
// dominates its horizontal motion between consecutive observations.
type Fall struct {
	MinDrop  float64
	MaxDrift float64
}

func NewFall() *Fall {
	return &Fall{MinDrop: 60, MaxDrift: 30}
}

func (f *Fall) DetectTracks(samples []model.TrackSample) TrackEvent {
	byObject := make(map[int][]model.TrackSample)
	order := make([]int, 0)
	for _, s := range samples {
		if _, ok := byObject[s.ObjectID]; !ok {
			order = append(order, s.ObjectID)
		}
		byObject[s.ObjectID] = append(byObject[s.ObjectID], s)
	}
	for _, id := range order {
		track := byObject[id]
		for i := 1; i < len(track); i++ {
			drop := track[i].CY - track[i-1].CY
			drift := math.Abs(track[i].CX - track[i-1].CX)
			if drop >= f.MinDrop && drift <= f.MaxDrift {
				return TrackEvent{
					Kind:      model.EventFall,
					Result:    model.AnomalyResult{IsAnomaly: true, Score: 1},
					StartTime: track[i].Timestamp,
					CX:        track[i].CX,
					CY:        track[i].CY,
					ObjectIDs: []int{id},
				}
			}
		}
	}
	return TrackEvent{Kind: model.EventNone}
}

func groupByTimestamp(samples []model.TrackSample) [][]model.TrackSample {
	groups := make([][]model.TrackSample, 0)
	index := make(map[float64]int)
	for _, s := range samples {
		i, ok := index[s.Timestamp]
		if !ok {
			i = len(groups)
			index[s.Timestamp] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}

func dist(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}
