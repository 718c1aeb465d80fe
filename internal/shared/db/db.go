package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

func ConnectPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Migrate cria as tabelas do ledger se ainda não existirem
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InstanceID retorna o id deste banco, gerado na primeira chamada.
// Um banco recriado ganha um id novo.
func InstanceID(ctx context.Context, db *sql.DB) (string, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO ledger_meta(key, value) VALUES('instance_id', $1) ON CONFLICT (key) DO NOTHING`,
		uuid.NewString()); err != nil {
		return "", fmt.Errorf("instance id: %w", err)
	}
	var id string
	if err := db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key='instance_id'`).Scan(&id); err != nil {
		return "", fmt.Errorf("instance id: %w", err)
	}
	return id, nil
}
