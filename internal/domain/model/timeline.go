package model

import (
	"math"
	"sort"

	"media-pipeline/internal/domain"
)

const (
	// StartTolerance is how late the first scene may begin.
	StartTolerance = 0.5
	// GapTolerance is the largest hole allowed between consecutive scenes.
	GapTolerance = 0.5
	// EndTolerance is how far the last scene may end from the total duration.
	EndTolerance = 1.0
)

// CoverageReason says which check a plan failed, or CoverageOK.
type CoverageReason string

const (
	CoverageOK        CoverageReason = "ok"
	CoverageEmpty     CoverageReason = "empty"
	CoverageBadSpan   CoverageReason = "bad_span"
	CoverageLateStart CoverageReason = "late_start"
	CoverageGap       CoverageReason = "gap"
	CoverageEndDrift  CoverageReason = "end_drift"
)

// CoverageResult is the detailed outcome of a coverage check. Scene is the
// scene number at which the check failed (0 when not scene specific).
type CoverageResult struct {
	Reason CoverageReason
	Scene  int
	Delta  float64
}

func (r CoverageResult) OK() bool { return r.Reason == CoverageOK }

// TimelinePlan is the ordered scene breakdown for a project.
type TimelinePlan struct {
	ProjectName   string      `json:"project_name"`
	TotalDuration float64     `json:"total_duration"`
	Scenes        []SceneStep `json:"scenes"`
}

// Validate reports whether the scenes cover [0, TotalDuration] within tolerance.
func (p *TimelinePlan) Validate() bool {
	return p.Coverage().OK()
}

// Coverage runs the coverage check and reports the first failing rule.
// Overlapping scenes are accepted; only under-coverage is rejected.
func (p *TimelinePlan) Coverage() CoverageResult {
	if p == nil || len(p.Scenes) == 0 {
		return CoverageResult{Reason: CoverageEmpty}
	}
	sorted := p.ByStart()
	for _, s := range sorted {
		if s.TimeEnd <= s.TimeStart {
			return CoverageResult{Reason: CoverageBadSpan, Scene: s.Number}
		}
	}

	first := sorted[0]
	if first.TimeStart > StartTolerance {
		return CoverageResult{Reason: CoverageLateStart, Scene: first.Number, Delta: first.TimeStart}
	}
	for i := 0; i < len(sorted)-1; i++ {
		gap := sorted[i+1].TimeStart - sorted[i].TimeEnd
		if gap > GapTolerance {
			return CoverageResult{Reason: CoverageGap, Scene: sorted[i+1].Number, Delta: gap}
		}
	}
	last := sorted[len(sorted)-1]
	if drift := math.Abs(last.TimeEnd - p.TotalDuration); drift > EndTolerance {
		return CoverageResult{Reason: CoverageEndDrift, Scene: last.Number, Delta: drift}
	}
	return CoverageResult{Reason: CoverageOK}
}

// Check returns a *domain.PlanInvalidError when coverage fails or when a
// scene is malformed on its own (bad number, bad kind, duplicate number).
func (p *TimelinePlan) Check() error {
	if res := p.Coverage(); !res.OK() {
		return &domain.PlanInvalidError{Reason: string(res.Reason)}
	}
	seen := make(map[int]struct{}, len(p.Scenes))
	for _, s := range p.Scenes {
		if err := s.Validate(); err != nil {
			return &domain.PlanInvalidError{Reason: "bad_scene"}
		}
		if _, dup := seen[s.Number]; dup {
			return &domain.PlanInvalidError{Reason: "duplicate_scene"}
		}
		seen[s.Number] = struct{}{}
	}
	return nil
}

// ByStart returns a copy of the scenes sorted by start time, ties broken by scene number.
func (p *TimelinePlan) ByStart() []SceneStep {
	out := append([]SceneStep(nil), p.Scenes...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimeStart == out[j].TimeStart {
			return out[i].Number < out[j].Number
		}
		return out[i].TimeStart < out[j].TimeStart
	})
	return out
}

// ByNumber returns a copy of the scenes in presentation order.
func (p *TimelinePlan) ByNumber() []SceneStep {
	out := append([]SceneStep(nil), p.Scenes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Clone returns a deep copy so callers cannot mutate a stored plan.
func (p *TimelinePlan) Clone() *TimelinePlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Scenes = append([]SceneStep(nil), p.Scenes...)
	return &cp
}
