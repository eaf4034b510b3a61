// Package api provides HTTP handlers for the REST API.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-fuego/fuego"
	"github.com/google/uuid"

	"github.com/blockedby/mailmerge/internal/dispatcher"
	"github.com/blockedby/mailmerge/internal/models"
	"github.com/blockedby/mailmerge/internal/repository"
	"github.com/blockedby/mailmerge/internal/validation"
)

// ============================================================================
// Health
// ============================================================================

func (s *Server) healthCheck(c fuego.ContextNoBody) (HealthResponse, error) {
	return HealthResponse{
		Status:  "ok",
		Version: s.version,
		Busy:    s.deps.Manager != nil && s.deps.Manager.IsRunning(),
	}, nil
}

// ============================================================================
// Dispatch Handlers
// ============================================================================

func (s *Server) validateDispatch(c fuego.ContextWithBody[DispatchRequest]) (ValidateResponse, error) {
	body, err := c.Body()
	if err != nil {
		return ValidateResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	return ValidateResponseFromReport(validation.Validate(body.ValidationInput())), nil
}

func (s *Server) startRun(c fuego.ContextWithBody[DispatchRequest]) (RunStartResponse, error) {
	if s.deps.Manager == nil {
		return RunStartResponse{}, fuego.InternalServerError{Detail: "Dispatcher not available"}
	}

	body, err := c.Body()
	if err != nil {
		return RunStartResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	report := validation.Validate(body.ValidationInput())
	if !report.OK {
		return RunStartResponse{}, fuego.BadRequestError{
			Title:  "Validation failed",
			Detail: strings.Join(report.Errors, "; "),
		}
	}

	rc := s.deps.RunConfig
	if body.Actor != "" {
		rc.Actor = body.Actor
	}

	active, err := s.deps.Manager.Start(c.Context(), dispatcher.Job{
		Rows:            body.Rows,
		RecipientColumn: body.RecipientColumn,
		Template:        body.Template(),
		Mapping:         body.Mapping,
		Count:           body.Count,
		Config:          rc,
		Preflight:       s.deps.Preflight,
	})
	if err != nil {
		if errors.Is(err, dispatcher.ErrRunInProgress) {
			return RunStartResponse{}, fuego.ConflictError{Detail: err.Error()}
		}
		return RunStartResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	c.SetStatus(http.StatusAccepted)

	return RunStartResponse{
		RunID:     active.ID.String(),
		Status:    "started",
		Requested: active.Requested,
		Warnings:  report.Warnings,
	}, nil
}

func (s *Server) listRuns(c fuego.ContextNoBody) (RunsListResponse, error) {
	if s.deps.History == nil {
		return RunsListResponse{Runs: []models.Run{}}, nil
	}

	limit := parseIntWithDefault(c.QueryParam("limit"), 20)

	runs, err := s.deps.History.List(c.Context(), limit)
	if err != nil {
		return RunsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	out := make([]models.Run, 0, len(runs))
	for _, r := range runs {
		out = append(out, *r)
	}

	return RunsListResponse{Runs: out, Total: len(out)}, nil
}

func (s *Server) getRun(c fuego.ContextNoBody) (RunResponse, error) {
	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return RunResponse{}, fuego.BadRequestError{Detail: "Invalid run ID"}
	}

	var progress *dispatcher.Progress
	if s.deps.Manager != nil {
		if active := s.deps.Manager.Current(); active != nil && active.ID == id {
			p := active.Progress()
			progress = &p
		}
	}

	if s.deps.History == nil {
		if progress != nil {
			return RunResponse{
				Run:      models.Run{ID: id, Status: models.RunStatusRunning, Requested: progress.Requested, Processed: progress.Processed},
				Progress: progress,
			}, nil
		}
		return RunResponse{}, fuego.NotFoundError{Detail: "Run not found"}
	}

	run, err := s.deps.History.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return RunResponse{}, fuego.NotFoundError{Detail: "Run not found"}
		}
		return RunResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return RunResponse{Run: *run, Progress: progress}, nil
}

func (s *Server) stopRun(c fuego.ContextNoBody) (RunStopResponse, error) {
	if s.deps.Manager == nil {
		return RunStopResponse{}, fuego.InternalServerError{Detail: "Dispatcher not available"}
	}

	active := s.deps.Manager.Current()
	if active == nil {
		return RunStopResponse{}, fuego.NotFoundError{Detail: "No run in progress"}
	}

	s.deps.Manager.Stop()

	return RunStopResponse{RunID: active.ID.String(), Status: "stopping"}, nil
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
