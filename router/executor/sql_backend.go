package executor

import (
	"context"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/rewrite"
	"github.com/pkg/errors"
)

// SQLBackend executes units over database/sql pools, one per data source.
type SQLBackend struct {
	dbs map[string]*sqlx.DB
}

var _ Backend = &SQLBackend{}

// driverName maps a configured driver onto a registered database/sql driver.
func driverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "":
		return "mysql", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	default:
		return "", sherror.Newf(sherror.SHARD_CONFIG_ERROR, "unsupported driver %q", driver)
	}
}

// NewSQLBackend opens a pool for every data source. Connections are
// established lazily.
func NewSQLBackend(dataSources map[string]config.DataSource) (*SQLBackend, error) {
	b := &SQLBackend{dbs: map[string]*sqlx.DB{}}
	for name, ds := range dataSources {
		driver, err := driverName(ds.Driver)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		db, err := sqlx.Open(driver, ds.DSN)
		if err != nil {
			_ = b.Close()
			return nil, sherror.Wrap(sherror.SHARD_CONFIG_ERROR, errors.Wrapf(err, "open data source %s", name))
		}
		if ds.MaxOpenConns > 0 {
			db.SetMaxOpenConns(ds.MaxOpenConns)
		}
		b.dbs[name] = db
		shardlog.Zero.Debug().
			Str("data source", name).
			Str("driver", driver).
			Msg("opened data source pool")
	}
	return b, nil
}

func (b *SQLBackend) db(name string) (*sqlx.DB, error) {
	db, ok := b.dbs[name]
	if !ok {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "data source %q is not configured", name)
	}
	return db, nil
}

func (b *SQLBackend) Query(ctx context.Context, unit rewrite.RewriteUnit) (merge.QueryResult, error) {
	name := unit.Unit.DataSource.ActualName
	db, err := b.db(name)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryxContext(ctx, db.Rebind(unit.SQL), unit.Params...)
	if err != nil {
		return nil, execError(err, "query on %s", name)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, execError(err, "columns on %s", name)
	}
	return &rowsResult{rows: rows, columns: cols, source: name}, nil
}

func (b *SQLBackend) Exec(ctx context.Context, unit rewrite.RewriteUnit) (int64, error) {
	name := unit.Unit.DataSource.ActualName
	db, err := b.db(name)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, db.Rebind(unit.SQL), unit.Params...)
	if err != nil {
		return 0, execError(err, "exec on %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, execError(err, "affected rows on %s", name)
	}
	return n, nil
}

func (b *SQLBackend) Close() error {
	var first error
	for name, db := range b.dbs {
		if err := db.Close(); err != nil {
			shardlog.Zero.Error().Err(err).Str("data source", name).Msg("failed to close data source pool")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func execError(err error, format string, args ...any) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &sherror.ShardError{Err: errors.Wrapf(err, format, args...), ErrorCode: sherror.SHARD_CANCELED}
	}
	return &sherror.ShardError{Err: errors.Wrapf(err, format, args...), ErrorCode: sherror.SHARD_EXECUTION_ERROR}
}

// rowsResult adapts sqlx rows to a merge source.
type rowsResult struct {
	rows    *sqlx.Rows
	columns []string
	source  string
}

func (r *rowsResult) Columns() []string {
	return r.columns
}

func (r *rowsResult) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, execError(err, "read from %s", r.source)
	}
	if r.rows.Next() {
		return true, nil
	}
	if err := r.rows.Err(); err != nil {
		return false, execError(err, "read from %s", r.source)
	}
	return false, nil
}

// Values scans the current row. Text columns arrive as bytes and are
// returned as strings.
func (r *rowsResult) Values() ([]any, error) {
	vals, err := r.rows.SliceScan()
	if err != nil {
		return nil, execError(err, "scan from %s", r.source)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (r *rowsResult) Close() error {
	return r.rows.Close()
}
