package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Anomaliszt/HiddenDeal/internal/database/db_client"
)

// DBTX is the unit of work a ledger primitive runs against. Both *sql.DB and
// *sql.Tx satisfy it; multi-row operations must pass a *sql.Tx so the caller
// controls the commit/rollback boundary.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Wallet struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Ledger owns wallet balances. Wallets are created lazily on first reference
// with the configured starting balance.
type Ledger struct {
	db              *sql.DB
	startingBalance decimal.Decimal
}

func New(db *sql.DB, startingBalance decimal.Decimal) *Ledger {
	return &Ledger{db: db, startingBalance: startingBalance}
}

// ValidBidAmount reports whether d is positive with at most one fractional
// decimal digit.
func ValidBidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(1))
}

// GetOrCreateTx resolves the wallet for userID, creating it with the starting
// balance on first reference, and locks the row for the rest of the
// transaction. Concurrent first-access collapses to a single row via the
// user_id unique constraint.
func (l *Ledger) GetOrCreateTx(ctx context.Context, q DBTX, userID int64) (*Wallet, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, l.startingBalance,
	)
	if err != nil {
		return nil, fmt.Errorf("wallet create %d: %w", userID, err)
	}

	w := &Wallet{}
	err = q.QueryRowContext(ctx,
		`SELECT id, user_id, balance, created_at, updated_at
		   FROM wallets WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet lock %d: %w", userID, err)
	}
	return w, nil
}

// DebitTx decreases the wallet balance, failing with ErrInsufficientFunds
// when the balance does not cover the amount. The caller must already hold
// the row via GetOrCreateTx.
func (l *Ledger) DebitTx(ctx context.Context, q DBTX, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		`UPDATE wallets SET balance = balance - $2, updated_at = now()
		  WHERE user_id = $1 AND balance >= $2
		 RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet debit %d: %w", userID, err)
	}
	return balance, nil
}

// CreditTx increases the wallet balance, creating the wallet on first
// reference. Always succeeds for amount >= 0.
func (l *Ledger) CreditTx(ctx context.Context, q DBTX, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		`INSERT INTO wallets (user_id, balance) VALUES ($1, $2 + $3)
		 ON CONFLICT (user_id) DO UPDATE
		        SET balance = wallets.balance + $3, updated_at = now()
		 RETURNING balance`,
		userID, l.startingBalance, amount,
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet credit %d: %w", userID, err)
	}
	return balance, nil
}

// Balance returns the wallet for userID, creating it on first reference.
func (l *Ledger) Balance(ctx context.Context, userID int64) (*Wallet, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := l.GetOrCreateTx(ctx, tx, userID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, db_client.WrapTransient(err)
	}
	return w, nil
}

// Credit adds funds to a wallet as a single atomic operation.
func (l *Ledger) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() < 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	balance, err := l.CreditTx(ctx, l.db, userID, amount)
	return balance, db_client.WrapTransient(err)
}

// Transfer debits `from` and credits `to` as one atomic unit. No partial
// transfer is ever observable: any failure rolls the whole unit back.
func (l *Ledger) Transfer(ctx context.Context, from, to int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock order by ascending user id keeps concurrent transfers between the
	// same pair of wallets deadlock-free.
	ids := []int64{from, to}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := l.GetOrCreateTx(ctx, tx, id); err != nil {
			return db_client.WrapTransient(err)
		}
	}

	if _, err := l.DebitTx(ctx, tx, from, amount); err != nil {
		return db_client.WrapTransient(err)
	}
	if _, err := l.CreditTx(ctx, tx, to, amount); err != nil {
		return db_client.WrapTransient(err)
	}
	return db_client.WrapTransient(tx.Commit())
}
