// Package pg bootstraps PostgreSQL access on top of github.com/jackc/pgx/v5.
//
// Connect opens a *pgxpool.Pool with retries, OpenDB exposes the same pool as a
// *sql.DB for code that speaks database/sql, and Migrate applies goose
// migrations from an embedded filesystem. WithTx runs a function inside a
// transaction, committing on success and rolling back on error or panic.
//
// Error helpers classify driver errors by SQLSTATE so repositories can map them
// to domain errors without importing pgconn themselves.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil {
//	    return err
//	}
//	db := pg.OpenDB(pool)
package pg
