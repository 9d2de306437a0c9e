package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined execution handle (pgx.Tx for Postgres).
// Repositories MUST accept nil and then run on the pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction and passes the
// handle on through tx.
//
// USAGE
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		if err := history.Append(ctx, tx, tgID, model.RoleUser, prompt); err != nil {
//			return err
//		}
//		return ledger.Increment(ctx, tx, tgID, spent)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
