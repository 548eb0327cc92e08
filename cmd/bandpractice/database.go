package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bandpractice/internal/logging"
)

// waitForDatabase opens the connection pool and pings until the instance
// answers or cfg.DBConnectTimeout runs out. A freshly started Postgres
// container accepts TCP connects before it accepts queries, so early pings
// are expected to fail.
func waitForDatabase(ctx context.Context, cfg Config, logger *logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	waitCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	defer cancel()

	backoff := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(waitCtx, 5*time.Second)
		err = db.PingContext(pingCtx)
		pingCancel()
		if err == nil {
			return db, nil
		}

		select {
		case <-waitCtx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("ping database (attempt %d): %w", attempt, err)
		case <-time.After(backoff):
		}

		logger.Warn(fmt.Sprintf("database not ready (attempt %d), retrying: %v", attempt, err))
		if backoff < 4*time.Second {
			backoff *= 2
		}
	}
}
