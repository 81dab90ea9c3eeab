package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	config "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Config"
)

// ConnectPostgresWithTimeout opens the read-only device registry pool and
// fails unless the registry answers a ping within timeout.
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open device registry: %w", err)
	}
	db.SetMaxOpenConns(cfg.Registry.MaxConns)
	db.SetMaxIdleConns(cfg.Registry.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("device registry %s:%d unreachable: %w", cfg.Registry.Host, cfg.Registry.Port, err)
	}
	return db, nil
}
