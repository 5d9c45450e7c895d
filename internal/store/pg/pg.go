// Package pg implements store.Store directly against Postgres with bun over a
// pgx pool. It is selected when DATABASE_URL is set.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Store is a bun-backed store.Store.
type Store struct {
	db  bun.IDB
	log *zap.Logger
}

// Open creates a pgx pool for dsn, verifies it with a ping and wraps it in
// bun. The returned close function releases both.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*bun.DB, func() error, error) {
	log = log.With(logger.Scope("database"))

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pgx config: %w", err)
	}
	poolConfig.MaxConns = 4

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	db.AddQueryHook(&queryLoggingHook{log: log})

	log.Info("database pool created",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
	)

	closeFn := func() error {
		log.Info("closing database pool")
		err := db.Close()
		pool.Close()
		return err
	}
	return db, closeFn, nil
}

// New wraps an open bun database.
func New(db bun.IDB, log *zap.Logger) *Store {
	return &Store{db: db, log: log.With(logger.Scope("store.pg"))}
}

// Select implements store.Store.
func (s *Store) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	sel := s.db.NewSelect().TableExpr("?", bun.Ident(q.Table))
	if len(q.Columns) > 0 {
		sel = sel.Column(q.Columns...)
	} else {
		sel = sel.ColumnExpr("*")
	}
	for _, f := range q.Filters {
		expr, args := where(f)
		sel = sel.Where(expr, args...)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sel = sel.OrderExpr("? "+dir, bun.Ident(q.OrderBy))
	}
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}

	var rows []map[string]any
	if err := sel.Scan(ctx, &rows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translate("select "+q.Table, err)
	}
	out := make([]store.Row, len(rows))
	for i, r := range rows {
		out[i] = store.Row(r)
	}
	return out, nil
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	values := copyMap(row)
	err := s.db.NewInsert().
		Model(&values).
		TableExpr("?", bun.Ident(table)).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, translate("insert "+table, err)
	}
	return store.Row(values), nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, table string, set store.Row, filters ...store.Filter) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: refusing to update without filters", table)
	}
	upd := s.db.NewUpdate().TableExpr("?", bun.Ident(table))
	for _, col := range sortedColumns(set) {
		upd = upd.Set("? = ?", bun.Ident(col), set[col])
	}
	for _, f := range filters {
		expr, args := where(f)
		upd = upd.Where(expr, args...)
	}
	res, err := upd.Exec(ctx)
	if err != nil {
		return 0, translate("update "+table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, table string, filters ...store.Filter) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete %s: refusing to delete without filters", table)
	}
	del := s.db.NewDelete().TableExpr("?", bun.Ident(table))
	for _, f := range filters {
		expr, args := where(f)
		del = del.Where(expr, args...)
	}
	res, err := del.Exec(ctx)
	if err != nil {
		return 0, translate("delete "+table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// where renders one filter as a bun WHERE clause.
func where(f store.Filter) (string, []any) {
	col := bun.Ident(f.Column)
	switch f.Op {
	case store.OpILike:
		return "lower(?) = lower(?)", []any{col, f.Value}
	case store.OpIn:
		return "? IN (?)", []any{col, bun.In(f.Value)}
	case store.OpGte:
		return "? >= ?", []any{col, f.Value}
	case store.OpIsNull:
		return "? IS NULL", []any{col}
	}
	return "? = ?", []any{col, f.Value}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// queryLoggingHook logs failed and slow queries.
type queryLoggingHook struct {
	log *zap.Logger
}

func (h *queryLoggingHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLoggingHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.log.Debug("query error",
			zap.String("query", event.Query),
			zap.Duration("duration", duration),
			logger.Error(event.Err),
		)
		return
	}

	if duration > 3*time.Second {
		h.log.Warn("slow query",
			zap.String("query", event.Query),
			zap.Duration("duration", duration),
		)
		return
	}

	h.log.Debug("query",
		zap.String("query", event.Query),
		zap.Duration("duration", duration),
	)
}
