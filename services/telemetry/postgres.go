package telemetry

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"
	"go.uber.org/zap"
)

// PostgresSink inserts records straight into the analytics database
type PostgresSink struct {
	logger   *zap.Logger
	db       *gorm.DB
	platform string
}

// NewPostgres sink on an open connection, see services/postgres
func NewPostgres(logger *zap.Logger, db *gorm.DB, platform string) *PostgresSink {
	if platform == "" {
		platform = DefaultPlatform
	}
	return &PostgresSink{logger: logger, db: db, platform: platform}
}

// Record inserts rec into the table matching kind
func (s *PostgresSink) Record(ctx context.Context, kind Kind, rec Record) error {
	err := s.insert(kind, rec)
	if err != nil {
		s.logger.Warn("telemetry insert failed",
			zap.String("kind", kind.String()),
			zap.String("source", rec.Source),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (s *PostgresSink) insert(kind Kind, rec Record) error {
	switch kind {
	case KindExecution:
		row, err := executionRow(rec, s.platform)
		if err != nil {
			return err
		}
		return s.db.Create(&row).Error
	case KindError:
		row, err := errorRow(rec, s.platform)
		if err != nil {
			return err
		}
		return s.db.Create(&row).Error
	}
	return fmt.Errorf("unknown record kind %d", kind)
}
