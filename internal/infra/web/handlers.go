package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/usecase"
)

var errInternal = errors.New("internal error")

type createProjectRequest struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Brief         string  `json:"brief"`
	AudioPath     string  `json:"audio_path"`
	AudioDuration float64 `json:"audio_duration"`
	Style         string  `json:"style"`
}

type planRequest struct {
	Duration float64 `json:"duration"`
}

type refineRequest struct {
	Feedback string `json:"feedback"`
}

type styleRequest struct {
	Style string `json:"style"`
}

type scriptRequest struct {
	UseLLM bool `json:"use_llm"`
}

type projectView struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	Brief         string                    `json:"brief"`
	AudioPath     string                    `json:"audio_path,omitempty"`
	AudioDuration float64                   `json:"audio_duration,omitempty"`
	Style         string                    `json:"style,omitempty"`
	State         model.ProjectState        `json:"state"`
	Plan          *model.TimelinePlan       `json:"plan,omitempty"`
	Progress      *model.GenerationProgress `json:"progress,omitempty"`
	Assets        []model.GeneratedAsset    `json:"assets,omitempty"`
	ScriptPath    string                    `json:"script_path,omitempty"`
	OutputPath    string                    `json:"output_path,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

func viewOf(p *model.Project) projectView {
	return projectView{
		ID:            p.ID,
		Name:          p.Name,
		Brief:         p.Brief,
		AudioPath:     p.AudioPath,
		AudioDuration: p.AudioDuration,
		Style:         p.Style,
		State:         p.State,
		Plan:          p.Plan,
		Progress:      p.Progress,
		Assets:        p.Assets,
		ScriptPath:    p.ScriptPath,
		OutputPath:    p.OutputPath,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}
	p, err := s.uc.CreateProject(r.Context(), usecase.CreateProjectRequest{
		ID:            req.ID,
		Name:          req.Name,
		Brief:         req.Brief,
		AudioPath:     req.AudioPath,
		AudioDuration: req.AudioDuration,
		Style:         req.Style,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(p))
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	projects, err := s.uc.ListProjects(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, viewOf(p))
	}
	writeJSON(w, http.StatusOK, struct {
		Data   []projectView `json:"data"`
		Limit  int           `json:"limit"`
		Offset int           `json:"offset"`
	}{Data: views, Limit: limit, Offset: offset})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.uc.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// setStyle replaces the style directive; an empty style clears it.
func (s *Server) setStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}
	p, err := s.uc.SetStyle(r.Context(), chi.URLParam(r, "id"), req.Style)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

type statusView struct {
	*model.ProjectStatus
	Percent float64 `json:"percent"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.uc.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView{ProjectStatus: st, Percent: st.Percent()})
}

func (s *Server) generatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}
	}
	plan, err := s.uc.GeneratePlan(r.Context(), chi.URLParam(r, "id"), req.Duration)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) refinePlan(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}
	plan, err := s.uc.RefinePlan(r.Context(), chi.URLParam(r, "id"), req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// generate answers 202 with the first snapshot; clients poll the status route.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if s.dispatcher == nil {
		progress, err := s.uc.GenerateMedia(ctx, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, progress)
		return
	}

	if err := s.uc.CheckGeneration(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dispatcher.EnqueueGeneration(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	st, err := s.uc.GetStatus(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusView{ProjectStatus: st, Percent: st.Percent()})
}

func (s *Server) cancelGeneration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	err := s.uc.CancelGeneration(ctx, id)
	if s.dispatcher != nil && errors.Is(err, domain.ErrNotFound) {
		if _, gerr := s.uc.GetProject(ctx, id); gerr != nil {
			writeError(w, gerr)
			return
		}
		err = s.dispatcher.CancelGeneration(ctx, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) buildScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}
	}
	script, err := s.uc.BuildScript(r.Context(), chi.URLParam(r, "id"), req.UseLLM)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, script)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if s.dispatcher != nil {
		if _, err := s.uc.GetProject(ctx, id); err != nil {
			writeError(w, err)
			return
		}
		if err := s.dispatcher.EnqueueRender(ctx, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	out, err := s.uc.Render(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OutputPath string `json:"output_path"`
	}{OutputPath: out})
}

// ---- responses ----

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// writeError maps domain error kinds onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status, kind := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = errInternal.Error()
	}
	writeStatus(w, status, kind, msg)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrGenerationInProgress):
		return http.StatusConflict, "generation_in_progress"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrNoAssets):
		return http.StatusConflict, "no_assets"
	}
	switch kind := domain.ErrorKind(err); kind {
	case "plan_invalid":
		return http.StatusUnprocessableEntity, kind
	case "configuration_missing":
		return http.StatusServiceUnavailable, kind
	case "producer_failure", "download_failed", "scene_batch_aborted":
		return http.StatusBadGateway, kind
	case "producer_timeout":
		return http.StatusGatewayTimeout, kind
	case "canceled":
		return http.StatusConflict, kind
	default:
		return http.StatusInternalServerError, kind
	}
}
