package middlewares

import (
	"database/sql"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/dbtx"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
)

// ReadOnlyTxMiddleware runs the handler inside a read-only repeatable read
// transaction, so every query it makes sees the same snapshot.
// The transaction is always rolled back; it never holds writes.
func ReadOnlyTxMiddleware(db *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tx, err := db.BeginTxx(r.Context(), &sql.TxOptions{
				Isolation: sql.LevelRepeatableRead,
				ReadOnly:  true,
			})
			if err != nil {
				logger.Log.Errorw("failed to begin transaction", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
				return
			}

			defer func() {
				if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
					logger.Log.Warnw("failed to close read-only transaction", "error", err)
				}
			}()

			next.ServeHTTP(w, r.WithContext(dbtx.WithTx(r.Context(), tx)))
		})
	}
}
