package postgres

import (
	"github.com/jinzhu/gorm"
	"go.uber.org/zap"

	// postgres drivers
	_ "github.com/lib/pq"

	_ "github.com/jinzhu/gorm/dialects/postgres" // required for postgres dbs

	"github.com/gpng/edge-relay/models"
)

// New db connection to the analytics database. dbURL is a postgres:// URL or a
// libpq key=value string, as shown in the Supabase dashboard.
func New(logger *zap.Logger, dbURL string) (*gorm.DB, error) {
	db, err := gorm.Open("postgres", dbURL)
	if err != nil {
		logger.Error("failed to connect to db", zap.Error(err))
		return nil, err
	}

	if err = db.DB().Ping(); err != nil {
		logger.Error("failed to ping db", zap.Error(err))
		db.Close()
		return nil, err
	}

	logger.Info("db connection successful")

	return db, nil
}

// Migrate creates or updates the analytics tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.WorkflowExecution{}, &models.ErrorLog{}).Error
}
