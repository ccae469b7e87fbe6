package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// TokenAccountStore implements domain.TokenAccountStore using PostgreSQL.
type TokenAccountStore struct {
	q querier
}

// Create inserts a token account with a zero balance unless seeded.
func (s *TokenAccountStore) Create(ctx context.Context, acct domain.TokenAccount) error {
	_, err := s.q.Exec(ctx,
		"INSERT INTO token_accounts (address, mint, owner, balance) VALUES ($1, $2, $3, $4)",
		string(acct.Address), acct.Mint, acct.Owner, int64(acct.Balance),
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create token account %s: %w", acct.Address, err)
	}
	return nil
}

// Get returns the token account at addr.
func (s *TokenAccountStore) Get(ctx context.Context, addr domain.Address) (domain.TokenAccount, error) {
	const query = `
		SELECT address, mint, owner, balance, created_at
		FROM token_accounts WHERE address = $1`

	var acct domain.TokenAccount
	var aAddr string
	var balance int64
	err := s.q.QueryRow(ctx, query, string(addr)).Scan(
		&aAddr, &acct.Mint, &acct.Owner, &balance, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenAccount{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TokenAccount{}, fmt.Errorf("postgres: get token account %s: %w", addr, err)
	}
	acct.Address = domain.Address(aAddr)
	acct.Balance = uint64(balance)
	return acct, nil
}

// Transfer moves amount between two accounts of the same mint. Rows are
// locked in address order so concurrent transfers cannot deadlock.
func (s *TokenAccountStore) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	if from == to {
		return domain.ErrInvalidAmount
	}
	first, second := string(from), string(to)
	if second < first {
		first, second = second, first
	}

	rows, err := s.q.Query(ctx,
		"SELECT address, mint, balance FROM token_accounts WHERE address IN ($1, $2) ORDER BY address FOR UPDATE",
		first, second,
	)
	if err != nil {
		return fmt.Errorf("postgres: lock accounts: %w", err)
	}

	mints := make(map[string]string, 2)
	balances := make(map[string]int64, 2)
	for rows.Next() {
		var addr, mint string
		var balance int64
		if err := rows.Scan(&addr, &mint, &balance); err != nil {
			rows.Close()
			return fmt.Errorf("postgres: scan account: %w", err)
		}
		mints[addr] = mint
		balances[addr] = balance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: lock accounts rows: %w", err)
	}

	srcBalance, ok := balances[string(from)]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := balances[string(to)]; !ok {
		return domain.ErrNotFound
	}
	if mints[string(from)] != mints[string(to)] {
		return domain.ErrAssetMismatch
	}
	if uint64(srcBalance) < amount {
		return domain.ErrInsufficientFunds
	}

	if _, err := s.q.Exec(ctx,
		"UPDATE token_accounts SET balance = balance - $2 WHERE address = $1",
		string(from), int64(amount),
	); err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, err)
	}
	if _, err := s.q.Exec(ctx,
		"UPDATE token_accounts SET balance = balance + $2 WHERE address = $1",
		string(to), int64(amount),
	); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", to, err)
	}
	return nil
}

// Credit mints amount into an account. Only the dev-mode faucet uses it.
func (s *TokenAccountStore) Credit(ctx context.Context, addr domain.Address, amount uint64) error {
	tag, err := s.q.Exec(ctx,
		"UPDATE token_accounts SET balance = balance + $2 WHERE address = $1",
		string(addr), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", addr, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
