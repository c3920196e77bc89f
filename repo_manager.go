package users

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes the account store and transactions over it
type RepositoryManager interface {
	Validate() error
	MustValidate()
	Accounts() AccountStore
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, accounts AccountStore) error) error
}

type mngr struct {
	db       *bun.DB
	accounts *Accounts
}

// NewRepositoryManager creates the repository manager over db.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// RunInTx runs f with an account store bound to a transaction.
func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, accounts AccountStore) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			return f(ctx, NewAccountsRepository(tx))
		})
	}
}

func (m mngr) Accounts() AccountStore {
	return m.accounts
}
