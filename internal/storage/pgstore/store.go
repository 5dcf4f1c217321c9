// Package pgstore implements the repositories on PostgreSQL through gorm.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/session"
	"gamification_service/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type txKey struct{ s *Store }

type Store struct {
	db *gorm.DB
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("goose up: %w", err)
	}

	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{s}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{s}, tx))
	})
	return mapError(err)
}

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{s}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// mapError turns lost write races into storage.ErrOptimisticLock so callers
// can retry them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrOptimisticLock) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", storage.ErrOptimisticLock, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", storage.ErrOptimisticLock, err)
		}
	}
	return err
}

func (s *Store) Customers() customer.Repository {
	return &customerRepo{s: s}
}

func (s *Store) Ledger() ledger.Repository {
	return &ledgerRepo{s: s}
}

func (s *Store) Challenges() challenge.Repository {
	return &challengeRepo{s: s}
}

func (s *Store) UserChallenges() challenge.UserChallengeRepository {
	return &userChallengeRepo{s: s}
}

func (s *Store) Leaderboard() leaderboard.Repository {
	return &leaderboardRepo{s: s}
}

func (s *Store) Sessions() session.Repository {
	return &sessionRepo{s: s}
}
