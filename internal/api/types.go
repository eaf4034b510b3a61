package api

import (
	"github.com/blockedby/mailmerge/internal/dispatcher"
	"github.com/blockedby/mailmerge/internal/models"
	"github.com/blockedby/mailmerge/internal/validation"
)

// ============================================================================
// Common Types
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status" example:"ok" description:"Health status"`
	Version string `json:"version" example:"dev" description:"Application version"`
	Busy    bool   `json:"busy" description:"Whether a dispatch run is in progress"`
}

// ============================================================================
// Dispatch Types
// ============================================================================

// DispatchRequest is a full mail-merge job.
type DispatchRequest struct {
	Rows            []models.Row         `json:"rows" description:"Data rows, one object per recipient"`
	RecipientColumn string               `json:"recipient_column" example:"Email" description:"Column holding the recipient address"`
	Mapping         models.ColumnMapping `json:"mapping" description:"Template variable to column mapping"`
	Subject         string               `json:"subject" example:"Hello {{name}}" description:"Subject template"`
	Body            string               `json:"body" description:"HTML body template"`
	Count           int                  `json:"count" example:"10" description:"Number of leading rows to send"`
	Actor           string               `json:"actor,omitempty" description:"Actor written to the audit log"`
}

// Template returns the subject/body pair.
func (r DispatchRequest) Template() models.Template {
	return models.Template{Subject: r.Subject, Body: r.Body}
}

// ValidationInput returns the validator view of the request.
func (r DispatchRequest) ValidationInput() validation.Input {
	return validation.Input{
		Rows:            r.Rows,
		RecipientColumn: r.RecipientColumn,
		Template:        r.Template(),
		Mapping:         r.Mapping,
		RequestedCount:  r.Count,
	}
}

// ValidateResponse is the validation report.
type ValidateResponse struct {
	OK       bool             `json:"ok" description:"Whether the job may be sent"`
	Errors   []string         `json:"errors" description:"Blocking problems"`
	Warnings []string         `json:"warnings" description:"Non-blocking problems"`
	Stats    validation.Stats `json:"stats" description:"Recipient address counts"`
}

// ValidateResponseFromReport converts a validation report.
func ValidateResponseFromReport(r validation.Report) ValidateResponse {
	resp := ValidateResponse{
		OK:       r.OK,
		Errors:   r.Errors,
		Warnings: r.Warnings,
		Stats:    r.Stats,
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	return resp
}

// RunStartResponse is returned when a run was accepted.
type RunStartResponse struct {
	RunID     string   `json:"run_id" description:"Run identifier"`
	Status    string   `json:"status" example:"started" description:"Run status"`
	Requested int      `json:"requested" description:"Rows that will be processed"`
	Warnings  []string `json:"warnings,omitempty" description:"Validation warnings"`
}

// RunResponse is a run from history, with live progress while it is active.
type RunResponse struct {
	models.Run
	Progress *dispatcher.Progress `json:"progress,omitempty" description:"Live progress of an active run"`
}

// RunsListResponse contains recent runs.
type RunsListResponse struct {
	Runs  []models.Run `json:"runs" description:"Runs, newest first"`
	Total int          `json:"total" description:"Number of runs returned"`
}

// RunStopResponse is returned after a stop request.
type RunStopResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status" example:"stopping"`
}
