package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"media-pipeline/internal/domain"
)

type ProjectState string

const (
	ProjectCreated    ProjectState = "CREATED"
	ProjectPlanned    ProjectState = "PLANNED"
	ProjectGenerating ProjectState = "GENERATING"
	ProjectReady      ProjectState = "READY"
	ProjectFailed     ProjectState = "FAILED"
	ProjectRendering  ProjectState = "RENDERING"
	ProjectComplete   ProjectState = "COMPLETE"
)

// projectTransitions lists every legal edge. Re-planning is allowed from any
// state that is not mid-run.
var projectTransitions = map[ProjectState][]ProjectState{
	ProjectCreated:    {ProjectPlanned},
	ProjectPlanned:    {ProjectPlanned, ProjectGenerating},
	ProjectGenerating: {ProjectReady, ProjectFailed},
	ProjectReady:      {ProjectRendering, ProjectPlanned},
	ProjectRendering:  {ProjectComplete, ProjectFailed},
	ProjectFailed:     {ProjectPlanned},
	ProjectComplete:   {ProjectPlanned},
}

// CanTransition reports whether from -> to is a legal edge.
func (s ProjectState) CanTransition(to ProjectState) bool {
	for _, next := range projectTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal is true for states that end a generation attempt.
func (s ProjectState) Terminal() bool {
	return s == ProjectFailed || s == ProjectComplete
}

func ParseProjectState(s string) (ProjectState, error) {
	st := ProjectState(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := projectTransitions[st]; !ok {
		return "", domain.ErrInvalidArgument
	}
	return st, nil
}

// Project is the persisted record of one brief. Plan and Progress are
// replaced wholesale; nothing edits them field by field. Assets holds the
// final per-scene assets of the last successful run, in scene order.
type Project struct {
	ID            string
	Name          string
	Brief         string
	AudioPath     string
	AudioDuration float64
	// Style is a short visual directive appended to every generation prompt.
	Style         string
	State         ProjectState
	Plan          *TimelinePlan
	Progress      *GenerationProgress
	Assets        []GeneratedAsset
	ScriptPath    string
	OutputPath    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewProject(id, name, brief, audioPath string, audioDuration float64) (*Project, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(brief) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if audioDuration < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Project{
		ID:            id,
		Name:          name,
		Brief:         brief,
		AudioPath:     audioPath,
		AudioDuration: audioDuration,
		State:         ProjectCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
