package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// REST table endpoints, relative to the Supabase project URL
const (
	executionsPath = "/rest/v1/workflow_analytics"
	errorsPath     = "/rest/v1/error_logs"
)

type restExecution struct {
	WorkflowName  string          `json:"workflow_name"`
	ExecutionTime time.Time       `json:"execution_time"`
	DurationMS    int64           `json:"duration_ms"`
	Status        string          `json:"status"`
	InputData     json.RawMessage `json:"input_data,omitempty"`
	OutputData    json.RawMessage `json:"output_data,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Platform      string          `json:"platform"`
}

type restError struct {
	Source       string          `json:"source"`
	ErrorMessage string          `json:"error_message"`
	ErrorData    json.RawMessage `json:"error_data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Platform     string          `json:"platform"`
}

// RESTSink writes records through the Supabase REST API
type RESTSink struct {
	logger   *zap.Logger
	client   *http.Client
	url      string
	key      string
	platform string
}

// NewREST sink. Records are skipped silently while url or key is empty.
func NewREST(logger *zap.Logger, client *http.Client, url, key, platform string) *RESTSink {
	if client == nil {
		client = http.DefaultClient
	}
	if platform == "" {
		platform = DefaultPlatform
	}
	return &RESTSink{
		logger:   logger,
		client:   client,
		url:      strings.TrimRight(url, "/"),
		key:      key,
		platform: platform,
	}
}

// Enabled reports whether the sink has credentials to write with
func (s *RESTSink) Enabled() bool {
	return s.url != "" && s.key != ""
}

// Record posts rec to the table matching kind
func (s *RESTSink) Record(ctx context.Context, kind Kind, rec Record) error {
	if !s.Enabled() {
		return nil
	}

	path, body, err := s.encode(kind, rec)
	if err == nil {
		err = s.post(ctx, path, body)
	}
	if err != nil {
		s.logger.Warn("telemetry logging failed",
			zap.String("kind", kind.String()),
			zap.String("source", rec.Source),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (s *RESTSink) encode(kind Kind, rec Record) (string, []byte, error) {
	switch kind {
	case KindExecution:
		row, err := executionRow(rec, s.platform)
		if err != nil {
			return "", nil, err
		}
		body, err := json.Marshal(restExecution{
			WorkflowName:  row.WorkflowName,
			ExecutionTime: row.ExecutionTime,
			DurationMS:    row.DurationMS,
			Status:        row.Status,
			InputData:     raw(row.InputData),
			OutputData:    raw(row.OutputData),
			ErrorMessage:  row.ErrorMessage,
			Platform:      row.Platform,
		})
		return executionsPath, body, err
	case KindError:
		row, err := errorRow(rec, s.platform)
		if err != nil {
			return "", nil, err
		}
		body, err := json.Marshal(restError{
			Source:       row.Source,
			ErrorMessage: row.ErrorMessage,
			ErrorData:    raw(row.ErrorData),
			Timestamp:    row.Timestamp,
			Platform:     row.Platform,
		})
		return errorsPath, body, err
	}
	return "", nil, fmt.Errorf("unknown record kind %d", kind)
}

func (s *RESTSink) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := ioutil.ReadAll(resp.Body)
		return fmt.Errorf("supabase responded with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func raw(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}
