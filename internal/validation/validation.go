// Package validation checks a dataset, template and mapping for send-readiness.
package validation

import (
	"regexp"
	"strings"

	"github.com/blockedby/mailmerge/internal/models"
	"github.com/blockedby/mailmerge/internal/render"
)

// validation messages
const (
	MsgNoData            = "no data loaded"
	MsgNoRecipientColumn = "recipient column is not set"
	MsgNoValidEmails     = "no valid emails to send"
	MsgEmptySubject      = "subject is empty"
	MsgEmptyBody         = "body is empty"
	MsgInvalidCount      = "invalid count"
)

var emailRe = regexp.MustCompile(`(?i)^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether v looks like a deliverable address after trimming.
func IsValidEmail(v string) bool {
	return emailRe.MatchString(strings.TrimSpace(v))
}

// Input is everything needed to decide whether a run may start.
type Input struct {
	Rows            []models.Row         `json:"rows"`
	RecipientColumn string               `json:"recipient_column"`
	Template        models.Template      `json:"template"`
	Mapping         models.ColumnMapping `json:"mapping"`
	RequestedCount  int                  `json:"count"`
}

// Stats summarises recipient quality across the whole dataset.
type Stats struct {
	Total             int `json:"total"`
	ValidRecipients   int `json:"valid_recipients"`
	InvalidRecipients int `json:"invalid_recipients"`
}

// Report is the derived send-readiness verdict. Warnings never block a run.
type Report struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Stats    Stats    `json:"stats"`
}

// Err returns a *Error when the report has blocking errors, nil otherwise.
func (r Report) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Errors: r.Errors, Warnings: r.Warnings}
}

// Validate evaluates every rule independently and reports all violations together.
func Validate(in Input) Report {
	errs := []string{}
	warnings := []string{}

	if len(in.Rows) == 0 {
		errs = append(errs, MsgNoData)
	}

	if strings.TrimSpace(in.RecipientColumn) == "" {
		errs = append(errs, MsgNoRecipientColumn)
	}

	valid := 0
	for _, row := range in.Rows {
		if IsValidEmail(row.String(in.RecipientColumn)) {
			valid++
		}
	}
	if valid == 0 {
		errs = append(errs, MsgNoValidEmails)
	}

	if strings.TrimSpace(in.Template.Subject) == "" {
		errs = append(errs, MsgEmptySubject)
	}
	if strings.TrimSpace(in.Template.Body) == "" {
		errs = append(errs, MsgEmptyBody)
	}

	if unmapped := UnmappedVars(in.Template, in.Mapping); len(unmapped) > 0 {
		warnings = append(warnings, "unmapped variables: "+strings.Join(unmapped, ", "))
	}

	if in.RequestedCount <= 0 || in.RequestedCount > len(in.Rows) {
		errs = append(errs, MsgInvalidCount)
	}

	return Report{
		OK:       len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
		Stats: Stats{
			Total:             len(in.Rows),
			ValidRecipients:   valid,
			InvalidRecipients: len(in.Rows) - valid,
		},
	}
}

// UnmappedVars lists tokens used in subject or body that have no mapping entry.
func UnmappedVars(t models.Template, mapping models.ColumnMapping) []string {
	vars := render.ExtractVars(t.Subject + "\n" + t.Body)

	var out []string
	for _, v := range vars {
		if mapping[v] == "" {
			out = append(out, v)
		}
	}
	return out
}
