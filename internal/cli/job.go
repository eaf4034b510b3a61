package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blockedby/mailmerge/internal/models"
	"github.com/blockedby/mailmerge/internal/validation"
)

// JobFile is the JSON input of validate and send.
type JobFile struct {
	Rows            []models.Row         `json:"rows"`
	RecipientColumn string               `json:"recipient_column"`
	Mapping         models.ColumnMapping `json:"mapping"`
	Subject         string               `json:"subject"`
	Body            string               `json:"body"`
	// Count defaults to every row.
	Count *int `json:"count,omitempty"`
}

// LoadJobFile reads and decodes a job file.
func LoadJobFile(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var job JobFile
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}
	return &job, nil
}

// RequestedCount resolves the count, defaulting to all rows.
func (j *JobFile) RequestedCount() int {
	if j.Count == nil {
		return len(j.Rows)
	}
	return *j.Count
}

// Template returns the subject/body pair.
func (j *JobFile) Template() models.Template {
	return models.Template{Subject: j.Subject, Body: j.Body}
}

// ValidationInput returns the validator view of the job.
func (j *JobFile) ValidationInput() validation.Input {
	return validation.Input{
		Rows:            j.Rows,
		RecipientColumn: j.RecipientColumn,
		Template:        j.Template(),
		Mapping:         j.Mapping,
		RequestedCount:  j.RequestedCount(),
	}
}
