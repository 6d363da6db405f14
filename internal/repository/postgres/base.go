package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// base carries the shared database handle and transaction scoping for
// the repositories in this package.
type base struct {
	db *sqlx.DB
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func (b *base) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
