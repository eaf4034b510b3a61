package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// run defaults
const (
	DefaultChunkSize      = 200
	DefaultFlushThreshold = 50
	DefaultTableName      = "LogsTable"
	DefaultActor          = "mailmerge"
)

// run config errors
var (
	ErrLinkRequired     = errors.New("anyone_edit_link is required")
	ErrLinkInvalid      = errors.New("anyone_edit_link must be an absolute https URL")
	ErrInvalidChunk     = errors.New("chunk_size must be positive")
	ErrInvalidThreshold = errors.New("flush_threshold must be positive")
	ErrInvalidRate      = errors.New("sends_per_second must be non-negative")
)

// RunConfig carries the per-run options that used to be hard-coded next to the send loop.
type RunConfig struct {
	// AnyoneEditLink is the shareable link of the workbook holding the audit table.
	AnyoneEditLink string `yaml:"anyone_edit_link" json:"anyone_edit_link"`

	// TableName selects the audit table; empty means the first table in the workbook.
	TableName string `yaml:"table_name" json:"table_name"`

	// ChunkSize bounds rows per rows/add call.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// FlushThreshold is the buffered row count that triggers a flush.
	FlushThreshold int `yaml:"flush_threshold" json:"flush_threshold"`

	// SendsPerSecond paces sends; 0 disables pacing.
	SendsPerSecond float64 `yaml:"sends_per_second" json:"sends_per_second"`

	SaveToSentItems *bool  `yaml:"save_to_sent_items" json:"save_to_sent_items,omitempty"`
	SanitizeHTML    bool   `yaml:"sanitize_html" json:"sanitize_html"`
	Actor           string `yaml:"actor" json:"actor"`
}

// DefaultRunConfig returns a config with every optional field set.
func DefaultRunConfig() RunConfig {
	save := true
	return RunConfig{
		TableName:       DefaultTableName,
		ChunkSize:       DefaultChunkSize,
		FlushThreshold:  DefaultFlushThreshold,
		SaveToSentItems: &save,
		Actor:           DefaultActor,
	}
}

// ApplyDefaults fills zero-valued optional fields.
func (r *RunConfig) ApplyDefaults() {
	def := DefaultRunConfig()
	if r.ChunkSize == 0 {
		r.ChunkSize = def.ChunkSize
	}
	if r.FlushThreshold == 0 {
		r.FlushThreshold = def.FlushThreshold
	}
	if r.SaveToSentItems == nil {
		r.SaveToSentItems = def.SaveToSentItems
	}
	if strings.TrimSpace(r.Actor) == "" {
		r.Actor = def.Actor
	}
}

// SaveToSent reports the effective save-to-sent-items flag.
func (r RunConfig) SaveToSent() bool {
	return r.SaveToSentItems == nil || *r.SaveToSentItems
}

// Validate checks the config after defaults have been applied.
func (r RunConfig) Validate() error {
	var errs []error

	link := strings.TrimSpace(r.AnyoneEditLink)
	if link == "" {
		errs = append(errs, ErrLinkRequired)
	} else if u, err := url.Parse(link); err != nil || u.Scheme != "https" || u.Host == "" {
		errs = append(errs, ErrLinkInvalid)
	}
	if r.ChunkSize <= 0 {
		errs = append(errs, ErrInvalidChunk)
	}
	if r.FlushThreshold <= 0 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if r.SendsPerSecond < 0 {
		errs = append(errs, ErrInvalidRate)
	}

	return errors.Join(errs...)
}

// ParseRunConfig decodes YAML, applies defaults and validates.
func ParseRunConfig(data []byte) (RunConfig, error) {
	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return RunConfig{}, fmt.Errorf("parse run config: %w", err)
	}

	rc.ApplyDefaults()
	if err := rc.Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("invalid run config: %w", err)
	}
	return rc, nil
}

// LoadRunConfig reads and parses the run YAML at path.
func LoadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read run config: %w", err)
	}
	return ParseRunConfig(data)
}
