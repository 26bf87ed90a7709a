package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gpng/edge-relay/models"
)

// DefaultPlatform tags every record written by the relay
const DefaultPlatform = "vercel_edge"

// ErrWriteFailed wraps every failed telemetry write
var ErrWriteFailed = errors.New("telemetry write failed")

// Kind of record, which decides the destination table
type Kind int

// record kinds
const (
	KindExecution Kind = iota
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindExecution:
		return "execution"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Status of a recorded execution
type Status string

// execution statuses
const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record describes one outcome. Input and Output are marshalled to JSON.
type Record struct {
	Source    string
	Status    Status
	Input     interface{}
	Output    interface{}
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// Sink accepts records on a best effort basis. A returned error has already
// been logged by the sink; callers are expected to discard it.
type Sink interface {
	Record(ctx context.Context, kind Kind, rec Record) error
}

// Nop drops every record
type Nop struct{}

// Record does nothing
func (Nop) Record(context.Context, Kind, Record) error { return nil }

// Tee writes each record to every sink, in order, and returns the first error
type Tee []Sink

// Record to all sinks
func (t Tee) Record(ctx context.Context, kind Kind, rec Record) error {
	var first error
	for _, s := range t {
		if err := s.Record(ctx, kind, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r Record) timestamp() time.Time {
	if r.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return r.Timestamp.UTC()
}

func (r Record) status() string {
	if r.Status == "" {
		if r.Error != "" {
			return string(StatusFailed)
		}
		return string(StatusCompleted)
	}
	return string(r.Status)
}

// jsonString marshals v for a jsonb column. nil stays NULL.
func jsonString(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func executionRow(rec Record, platform string) (models.WorkflowExecution, error) {
	row := models.WorkflowExecution{
		WorkflowName:  rec.Source,
		ExecutionTime: rec.timestamp(),
		DurationMS:    rec.Duration.Milliseconds(),
		Status:        rec.status(),
		Platform:      platform,
	}
	var err error
	if row.InputData, err = jsonString(rec.Input); err != nil {
		return row, err
	}
	if row.OutputData, err = jsonString(rec.Output); err != nil {
		return row, err
	}
	if rec.Error != "" {
		msg := rec.Error
		row.ErrorMessage = &msg
	}
	return row, nil
}

func errorRow(rec Record, platform string) (models.ErrorLog, error) {
	row := models.ErrorLog{
		Source:       rec.Source,
		ErrorMessage: rec.Error,
		Timestamp:    rec.timestamp(),
		Platform:     platform,
	}
	var err error
	row.ErrorData, err = jsonString(rec.Input)
	return row, err
}
