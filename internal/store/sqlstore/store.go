// Package sqlstore implements the domain repositories with gorm on PostgreSQL
// or MySQL.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tournevent/carrierhub/internal/domain"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// PostgreSQL error codes the store reacts to.
const (
	pgErrUniqueViolation      = "23505" // unique_violation
	pgErrSerializationFailure = "40001" // serialization_failure
	pgErrDeadlockDetected     = "40P01" // deadlock_detected
)

// Partial indexes created on PostgreSQL. MySQL has no partial indexes: shipments
// rely on the info package row lock and type shipments on the catalog check.
const (
	// activePackageIndex keeps one active shipment per info package.
	activePackageIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_shipments_active_package
	ON shipments (info_package_id) WHERE state = 'active'`
	// activeReferenceIndex keeps one active type shipment per reference carrier.
	activeReferenceIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_type_shipments_active_reference
	ON type_shipments (reference_carrier_id) WHERE state = 'active' AND active`
)

// Store is a gorm backed domain.Store.
type Store struct {
	db      *gorm.DB
	dialect string
}

var _ domain.Store = (*Store)(nil)

// Open connects to the database.
func Open(dialect, dsn string, logLevel logger.LogLevel) (*Store, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// pgx errors are mapped from *pgconn.PgError; MySQL needs gorm's translation.
		TranslateError: dialect == DialectMySQL,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	return New(db, dialect), nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB, dialect string) *Store {
	return &Store{db: db, dialect: dialect}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if s.dialect == DialectPostgres {
		if err := db.Exec(activePackageIndex).Error; err != nil {
			return fmt.Errorf("create active package index: %w", err)
		}
		if err := db.Exec(activeReferenceIndex).Error; err != nil {
			return fmt.Errorf("create active reference index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Carriers() domain.CarrierRepository { return carriers{s} }
func (s *Store) TypeShipments() domain.TypeShipmentRepository { return typeShipments{s} }
func (s *Store) InfoPackages() domain.InfoPackageRepository { return infoPackages{s} }
func (s *Store) Shipments() domain.ShipmentRepository { return shipments{s} }
func (s *Store) Labels() domain.LabelRepository { return labels{s} }
func (s *Store) Rules() domain.RuleRepository { return ruleRepo{s} }
func (s *Store) Logs() domain.LogRepository { return logs{s} }

// WithinTx runs fn in a database transaction. gorm turns nested calls into
// savepoints.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx, dialect: s.dialect})
	})
	return mapTxError(err)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound maps gorm.ErrRecordNotFound to the given domain error.
func notFound(err error, nf *domain.Error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nf.Withf("%s: %d", nf.Message, id)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrSerializationFailure, pgErrDeadlockDetected:
			return domain.ErrConcurrentUpdate.WithCause(err).WithTransient(true)
		}
	}
	return err
}
