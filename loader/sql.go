package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IvanBrykalov/refreshcache/cache"
)

// Row is the part of *sql.Row a scan function needs.
type Row interface {
	Scan(dest ...any) error
}

// SQL returns a Loader that runs query with the key as its only argument and
// scans the first row. query must use the placeholder syntax of db's driver.
// scan may be nil when the row has a single column assignable to V.
// No rows is reported as "no value".
func SQL[K comparable, V any](db *sql.DB, query string, scan func(Row) (V, error)) (cache.Loader[K, V], error) {
	if db == nil {
		return nil, errors.New("loader: nil *sql.DB")
	}
	if query == "" {
		return nil, errors.New("loader: empty query")
	}
	if scan == nil {
		scan = func(r Row) (V, error) {
			var v V
			err := r.Scan(&v)
			return v, err
		}
	}

	return func(ctx context.Context, k K) (V, bool, error) {
		var zero V
		v, err := scan(db.QueryRowContext(ctx, query, k))
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		if err != nil {
			log.Debugw("sql load failed", "key", k, "err", err)
			return zero, false, fmt.Errorf("query key %v: %w", k, err)
		}
		return v, true, nil
	}, nil
}
