package deploylog

import (
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"
)

// Level of an entry
type Level string

// entry levels
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Entry in a deployment log
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"type"`
	Message   string    `json:"message"`
}

// Collector accumulates the entries of one run. Create one per run and pass it
// to every phase; it is not safe for concurrent use.
type Collector struct {
	logger  *zap.Logger
	now     func() time.Time
	started time.Time
	entries []Entry
}

// New collector, also echoing entries to logger
func New(logger *zap.Logger) *Collector {
	c := &Collector{logger: logger, now: time.Now}
	c.started = c.now()
	return c
}

func (c *Collector) add(level Level, msg string) {
	c.entries = append(c.entries, Entry{Timestamp: c.now().UTC(), Level: level, Message: msg})
	switch level {
	case LevelError:
		c.logger.Error(msg)
	default:
		c.logger.Info(msg, zap.String("type", string(level)))
	}
}

// Info entry
func (c *Collector) Info(msg string) { c.add(LevelInfo, msg) }

// Success entry
func (c *Collector) Success(msg string) { c.add(LevelSuccess, msg) }

// Error entry
func (c *Collector) Error(msg string) { c.add(LevelError, msg) }

// Entries so far
func (c *Collector) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Failed reports whether any error was logged
func (c *Collector) Failed() bool {
	for _, e := range c.entries {
		if e.Level == LevelError {
			return true
		}
	}
	return false
}

// Report of a finished run
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Errors     int       `json:"errors"`
	Entries    []Entry   `json:"entries"`
}

// Report summarises the run so far
func (c *Collector) Report() Report {
	r := Report{
		StartedAt:  c.started.UTC(),
		FinishedAt: c.now().UTC(),
		Entries:    c.Entries(),
	}
	for _, e := range c.entries {
		if e.Level == LevelError {
			r.Errors++
		}
	}
	r.Success = r.Errors == 0
	return r
}

// WriteReport as indented JSON
func (c *Collector) WriteReport(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Report())
}
