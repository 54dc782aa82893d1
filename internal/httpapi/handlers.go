package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Mep-xx/dwellwell-sub001/internal/engine"
	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// GenerateRequest is the request body for POST /scopes/:type/:id/generate.
type GenerateRequest struct {
	// ChangedAttributes narrows the pass to rules reactive to these fields.
	// Empty means a full pass.
	ChangedAttributes []string `json:"changed_attributes,omitempty"`
}

// GenerateResponse is the response body for POST /scopes/:type/:id/generate.
type GenerateResponse struct {
	Created  []model.TaskOccurrence `json:"created"`
	Existing []model.TaskOccurrence `json:"existing"`
	Warnings []string               `json:"warnings,omitempty"`
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	scopeType := model.ScopeType(c.Param("type"))
	res, err := s.engine.GenerateForScope(c.Request().Context(), scopeType, c.Param("id"), req.ChangedAttributes)
	if err != nil {
		return engineHTTPError(err)
	}

	return c.JSON(http.StatusOK, GenerateResponse{
		Created:  emptyIfNil(res.Created),
		Existing: emptyIfNil(res.Existing),
		Warnings: res.Warnings,
	})
}

// TransitionResponse is the response body for task transition endpoints.
type TransitionResponse struct {
	Applied bool                  `json:"applied"`
	Notice  string                `json:"notice,omitempty"`
	Task    model.TaskOccurrence  `json:"task"`
	Next    *model.TaskOccurrence `json:"next,omitempty"`
}

func transitionJSON(c echo.Context, res *engine.TransitionResult) error {
	status := http.StatusOK
	if !res.Applied {
		status = http.StatusConflict
	}
	return c.JSON(status, TransitionResponse{
		Applied: res.Applied,
		Notice:  res.Notice,
		Task:    res.Task,
		Next:    res.Next,
	})
}

func (s *Server) handleCompleteTask(c echo.Context) error {
	res, err := s.engine.CompleteTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

func (s *Server) handleSkipTask(c echo.Context) error {
	res, err := s.engine.SkipTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

// SnoozeRequest is the request body for POST /tasks/:id/snooze.
type SnoozeRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleSnoozeTask(c echo.Context) error {
	var req SnoozeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := s.engine.SnoozeTask(c.Request().Context(), c.Param("id"), req.Days)
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

func (s *Server) handlePauseTask(c echo.Context) error {
	res, err := s.engine.PauseTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

// ResumeRequest is the request body for resume/unarchive/revive endpoints.
type ResumeRequest struct {
	// Mode is "forward" (default) or "now".
	Mode string `json:"mode,omitempty"`
}

func resumeMode(raw string) (model.ResumeMode, error) {
	switch raw {
	case "", string(model.ResumeForward):
		return model.ResumeForward, nil
	case string(model.ResumeNow):
		return model.ResumeNow, nil
	default:
		return "", echo.NewHTTPError(http.StatusBadRequest, "mode must be \"forward\" or \"now\"")
	}
}

func (s *Server) handleResumeTask(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	mode, err := resumeMode(req.Mode)
	if err != nil {
		return err
	}
	res, err := s.engine.ResumeTask(c.Request().Context(), c.Param("id"), mode)
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

func (s *Server) handleArchiveTask(c echo.Context) error {
	res, err := s.engine.ArchiveTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

func (s *Server) handleUnarchiveTask(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	mode, err := resumeMode(req.Mode)
	if err != nil {
		return err
	}
	res, err := s.engine.UnarchiveTask(c.Request().Context(), c.Param("id"), mode)
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

func (s *Server) handleSyncTask(c echo.Context) error {
	res, err := s.engine.SyncTaskFromTemplate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return transitionJSON(c, res)
}

// TrackableResponse is the response body for trackable transition endpoints.
type TrackableResponse struct {
	Applied       bool            `json:"applied"`
	Notice        string          `json:"notice,omitempty"`
	Trackable     model.Trackable `json:"trackable"`
	CascadedTasks int             `json:"cascaded_tasks"`
}

func trackableJSON(c echo.Context, res *engine.TrackableResult) error {
	status := http.StatusOK
	if !res.Applied {
		status = http.StatusConflict
	}
	return c.JSON(status, TrackableResponse{
		Applied:       res.Applied,
		Notice:        res.Notice,
		Trackable:     res.Trackable,
		CascadedTasks: res.CascadedTasks,
	})
}

func (s *Server) handlePauseTrackable(c echo.Context) error {
	res, err := s.engine.PauseTrackable(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return trackableJSON(c, res)
}

func (s *Server) handleResumeTrackable(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	mode, err := resumeMode(req.Mode)
	if err != nil {
		return err
	}
	res, err := s.engine.ResumeTrackable(c.Request().Context(), c.Param("id"), mode)
	if err != nil {
		return engineHTTPError(err)
	}
	return trackableJSON(c, res)
}

// RetireRequest is the request body for POST /trackables/:id/retire.
type RetireRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleRetireTrackable(c echo.Context) error {
	var req RetireRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := s.engine.RetireTrackable(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return engineHTTPError(err)
	}
	return trackableJSON(c, res)
}

func (s *Server) handleReviveTrackable(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	mode, err := resumeMode(req.Mode)
	if err != nil {
		return err
	}
	res, err := s.engine.ReviveTrackable(c.Request().Context(), c.Param("id"), mode)
	if err != nil {
		return engineHTTPError(err)
	}
	return trackableJSON(c, res)
}

func (s *Server) handleListTasks(c echo.Context) error {
	filter := store.OccurrenceFilter{
		HomeID:            c.QueryParam("home_id"),
		RoomID:            c.QueryParam("room_id"),
		TrackableID:       c.QueryParam("trackable_id"),
		Status:            model.TaskStatus(c.QueryParam("status")),
		IncludeArchived:   c.QueryParam("include_archived") == "true",
		IncludePaused:     c.QueryParam("include_paused") == "true",
		IncludeSuperseded: c.QueryParam("include_superseded") == "true",
	}
	if raw := c.QueryParam("due_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "due_before must be RFC 3339")
		}
		filter.DueBefore = &t
	}

	tasks, err := s.store.ListOccurrences(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, emptyIfNil(tasks))
}

func (s *Server) handleGetTask(c echo.Context) error {
	task, err := s.store.GetOccurrence(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleGetTrackable(c echo.Context) error {
	tr, err := s.store.GetTrackable(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineHTTPError(err)
	}
	return c.JSON(http.StatusOK, tr)
}

func (s *Server) handleListTemplates(c echo.Context) error {
	verifiedOnly := c.QueryParam("verified_only") == "true"
	templates, err := s.store.ListTemplates(c.Request().Context(), verifiedOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, templates)
}

func (s *Server) handleListRules(c echo.Context) error {
	rules, err := s.store.ListRules(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rules)
}

// engineHTTPError maps engine and store errors onto HTTP status codes.
func engineHTTPError(err error) error {
	var ee *engine.Error
	if errors.As(err, &ee) {
		switch ee.Code {
		case engine.ErrCodeMissingScope, engine.ErrCodeMissingTemplate:
			return echo.NewHTTPError(http.StatusNotFound, ee.Message)
		case engine.ErrCodeUnknownScopeType:
			return echo.NewHTTPError(http.StatusBadRequest, ee.Message)
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return err
}

func emptyIfNil(tasks []model.TaskOccurrence) []model.TaskOccurrence {
	if tasks == nil {
		return []model.TaskOccurrence{}
	}
	return tasks
}
