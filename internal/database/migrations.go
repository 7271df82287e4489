package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordsChannel is the LISTEN/NOTIFY channel carrying the uid of a changed record.
const RecordsChannel = "financial_records_changed"

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS financial_records (
			user_id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE OR REPLACE FUNCTION notify_financial_record_changed() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + RecordsChannel + `', NEW.user_id);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,

		`DROP TRIGGER IF EXISTS financial_records_notify ON financial_records`,

		`CREATE TRIGGER financial_records_notify
			AFTER INSERT OR UPDATE ON financial_records
			FOR EACH ROW EXECUTE FUNCTION notify_financial_record_changed()`,

		`CREATE INDEX IF NOT EXISTS idx_financial_records_updated_at ON financial_records(updated_at)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
