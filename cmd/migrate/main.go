// Command migrate creates the analytics tables the relay writes telemetry to.
// It reads SUPABASE_DB_URL from the environment or .env.
package main

import (
	"io"
	"os"

	"github.com/caarlos0/env"
	"github.com/gpng/edge-relay/services/deploylog"
	"github.com/gpng/edge-relay/services/logger"
	"github.com/gpng/edge-relay/services/postgres"

	// auto loads .env
	_ "github.com/joho/godotenv/autoload"
)

type config struct {
	DBURL string `env:"SUPABASE_DB_URL,required"`
	Debug bool   `env:"DEBUG" envDefault:"false"`
}

func main() {
	if err := run(os.Stdout); err != nil {
		os.Exit(1)
	}
}

// run returns instead of exiting so the logger is flushed and the connection
// closed on every path
func run(out io.Writer) error {
	cfg := config{}
	parseErr := env.Parse(&cfg)

	l := logger.New(cfg.Debug)
	defer l.Sync()
	log := deploylog.New(l)
	defer log.WriteReport(out)

	if parseErr != nil {
		log.Error("failed to load env vars: " + parseErr.Error())
		return parseErr
	}

	log.Info("connecting to analytics database")
	db, err := postgres.New(l, cfg.DBURL)
	if err != nil {
		log.Error("failed to initialise DB connection: " + err.Error())
		return err
	}
	defer db.Close()

	log.Info("creating workflow_analytics and error_logs tables")
	if err := postgres.Migrate(db); err != nil {
		log.Error("migration failed: " + err.Error())
		return err
	}
	log.Success("analytics tables ready")
	return nil
}
