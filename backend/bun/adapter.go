// Package bunbackend implements backend.Adapter through the Bun ORM
// with the PostgreSQL dialect. It serves deployments that already
// manage their database through Bun; the raw pgx adapter covers the
// same contract without the ORM layer.
package bunbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/bikramjeet/queue-service/backend"
)

// Compile-time interface check.
var _ backend.Adapter = (*Adapter)(nil)

func init() {
	backend.Register(backend.KindBun, func(ctx context.Context, params backend.Params) (backend.Adapter, error) {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(params["dsn"])))
		db := bun.NewDB(sqldb, pgdialect.New())

		a := New(db)
		a.ownsDB = true
		if err := a.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return a, nil
	})
}

// fieldRow is the Bun model for one stored field.
type fieldRow struct {
	bun.BaseModel `bun:"table:queue_fields"`

	Group     string    `bun:"group_name,pk"`
	Field     string    `bun:"field,pk"`
	Value     []byte    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// Adapter implements backend.Adapter backed by Bun.
type Adapter struct {
	db     *bun.DB
	logger *slog.Logger
	ownsDB bool
}

// New creates a Bun-backed adapter. The caller owns the db lifecycle
// unless the adapter was opened through backend.Open.
func New(db *bun.DB, opts ...Option) *Adapter {
	a := &Adapter{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// DB returns the underlying *bun.DB for advanced usage.
func (a *Adapter) DB() *bun.DB { return a.db }

// Migrate creates the queue_fields table if it does not exist.
func (a *Adapter) Migrate(ctx context.Context) error {
	_, err := a.db.NewCreateTable().
		Model((*fieldRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("queueservice/bun: create queue_fields table: %w", err)
	}
	return nil
}

// GetField reads one row. A missing row is absent, not an error.
func (a *Adapter) GetField(ctx context.Context, group, field string) ([]byte, bool, error) {
	var row fieldRow
	err := a.db.NewSelect().
		Model(&row).
		Where("group_name = ?", group).
		Where("field = ?", field).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("queueservice/bun: get field: %w", err)
	}
	return row.Value, true, nil
}

// SetField upserts one row.
func (a *Adapter) SetField(ctx context.Context, group, field string, value []byte) error {
	row := &fieldRow{
		Group:     group,
		Field:     field,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := a.db.NewInsert().
		Model(row).
		On("CONFLICT (group_name, field) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("queueservice/bun: set field: %w", err)
	}
	return nil
}

// DeleteField removes one row and reports whether it existed.
func (a *Adapter) DeleteField(ctx context.Context, group, field string) (bool, error) {
	res, err := a.db.NewDelete().
		Model((*fieldRow)(nil)).
		Where("group_name = ?", group).
		Where("field = ?", field).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("queueservice/bun: delete field: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queueservice/bun: delete field rows affected: %w", err)
	}
	return n > 0, nil
}

// ListFields returns the group's field names in lexical order.
func (a *Adapter) ListFields(ctx context.Context, group string) ([]string, error) {
	fields := make([]string, 0)
	err := a.db.NewSelect().
		Model((*fieldRow)(nil)).
		Column("field").
		Where("group_name = ?", group).
		Order("field ASC").
		Scan(ctx, &fields)
	if err != nil {
		return nil, fmt.Errorf("queueservice/bun: list fields: %w", err)
	}
	return fields, nil
}

// Ping checks database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the db only when the adapter opened it itself.
func (a *Adapter) Close(_ context.Context) error {
	if a.ownsDB {
		return a.db.Close()
	}
	return nil
}
