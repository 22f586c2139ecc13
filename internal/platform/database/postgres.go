package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
	"tle_zone_contest/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

var DB *sql.DB

func Connect(ctx context.Context) error {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		return fmt.Errorf("database.Connect open: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = DB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database.Connect ping: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database", "host", config.AppConfig.DBHost, "db", config.AppConfig.DBName)
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		slog.Info("Database connection closed")
	}
}
