// Package repository provides PostgreSQL persistence for financial records.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/moniclear/internal/database"
	"gitlab.com/yelinaung/moniclear/internal/logger"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

// ErrWatchUnsupported is returned by Watch when the repository has no connection pool.
var ErrWatchUnsupported = errors.New("record watch requires a connection pool")

// RecordRepository stores one JSONB document per identity.
type RecordRepository struct {
	db       database.PGXDB
	acquirer database.Acquirer
}

// NewRecordRepository creates a new RecordRepository.
// Watch is only available when db also implements database.Acquirer.
func NewRecordRepository(db database.PGXDB) *RecordRepository {
	r := &RecordRepository{db: db}
	if a, ok := db.(database.Acquirer); ok {
		r.acquirer = a
	}
	return r
}

// Get returns the record stored for uid, or an error wrapping models.ErrRecordNotFound.
func (r *RecordRepository) Get(ctx context.Context, uid string) (*models.FinancialRecord, error) {
	return getRecord(ctx, r.db, uid)
}

func getRecord(ctx context.Context, db database.PGXDB, uid string) (*models.FinancialRecord, error) {
	var data []byte
	err := db.QueryRow(ctx, `
		SELECT data FROM financial_records WHERE user_id = $1
	`, uid).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get record: %w", models.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return models.DecodeRecord(data)
}

// Put overwrites the record stored for uid.
func (r *RecordRepository) Put(ctx context.Context, uid string, record *models.FinancialRecord) error {
	data, err := models.EncodeRecord(record)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO financial_records (user_id, data, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`, uid, data)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// Watch delivers the current record for uid and then every stored change until
// stop is called or ctx ends. A missing record is delivered as (nil, nil).
// A failure is delivered once as (nil, err) and ends the watch.
// stop must not be called from onChange.
func (r *RecordRepository) Watch(
	ctx context.Context,
	uid string,
	onChange func(*models.FinancialRecord, error),
) (stop func(), err error) {
	if r.acquirer == nil {
		return nil, ErrWatchUnsupported
	}

	conn, err := r.acquirer.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+database.RecordsChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen for record changes: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if !conn.Conn().IsClosed() {
				if _, err := conn.Exec(context.Background(), "UNLISTEN *"); err != nil {
					logger.Log.Debug().Err(err).Msg("Failed to unlisten record changes")
				}
			}
			conn.Release()
		}()

		deliver := func() bool {
			record, err := getRecord(watchCtx, conn, uid)
			if errors.Is(err, models.ErrRecordNotFound) {
				onChange(nil, nil)
				return true
			}
			if err != nil {
				if watchCtx.Err() == nil {
					onChange(nil, err)
				}
				return false
			}
			onChange(record, nil)
			return true
		}

		if !deliver() {
			return
		}
		for {
			n, err := conn.Conn().WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					onChange(nil, fmt.Errorf("failed to wait for record change: %w", err))
				}
				return
			}
			if n.Payload != uid {
				continue
			}
			if !deliver() {
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
