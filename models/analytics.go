package models

import "time"

// WorkflowExecution row in the workflow_analytics table
type WorkflowExecution struct {
	ID            uint      `gorm:"primary_key"`
	WorkflowName  string    `gorm:"not null;index"`
	ExecutionTime time.Time `gorm:"not null;index"`
	DurationMS    int64
	Status        string  `gorm:"not null"`
	InputData     *string `gorm:"type:jsonb"`
	OutputData    *string `gorm:"type:jsonb"`
	ErrorMessage  *string
	Platform      string
}

// TableName for gorm
func (WorkflowExecution) TableName() string {
	return "workflow_analytics"
}

// ErrorLog row in the error_logs table
type ErrorLog struct {
	ID           uint   `gorm:"primary_key"`
	Source       string `gorm:"not null;index"`
	ErrorMessage string
	ErrorData    *string   `gorm:"type:jsonb"`
	Timestamp    time.Time `gorm:"not null;index"`
	Platform     string
}

// TableName for gorm
func (ErrorLog) TableName() string {
	return "error_logs"
}
