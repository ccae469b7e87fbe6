package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// CreateAuthorizerParams are the inputs to CreateAuthorizer. ID is the
// operator-chosen identifier the authorizer address derives from.
type CreateAuthorizerParams struct {
	ID          string
	Mint        string
	FeeBps      uint32
	RentPerByte uint64
}

// CreateOracleParams are the inputs to CreateOracle.
type CreateOracleParams struct {
	Authorizer domain.Address
	ID         string
}

// CreateAuthorizer registers an authorizer and allocates its fee vault. The
// fee vault collects the settlement fee split and all ledger rent charges
// under this authorizer.
func (e *Engine) CreateAuthorizer(ctx context.Context, p CreateAuthorizerParams) (domain.Authorizer, error) {
	if p.ID == "" || p.Mint == "" {
		return domain.Authorizer{}, fmt.Errorf("settlement: create authorizer: id and mint are required")
	}
	if p.FeeBps > 10_000 {
		return domain.Authorizer{}, fmt.Errorf("settlement: create authorizer: fee_bps must be <= 10000")
	}

	addr := domain.AuthorizerAddress(p.ID)
	auth := domain.Authorizer{
		Address:     addr,
		Mint:        p.Mint,
		FeeVault:    domain.FeeVaultAddress(addr),
		FeeBps:      p.FeeBps,
		RentPerByte: p.RentPerByte,
	}

	err := e.store.Atomically(ctx, func(s domain.Store) error {
		if err := s.Authorizers().Create(ctx, auth); err != nil {
			return err
		}
		if err := s.Accounts().Create(ctx, domain.TokenAccount{
			Address: auth.FeeVault,
			Mint:    p.Mint,
			Owner:   string(addr),
		}); err != nil {
			return err
		}
		return s.Audit().Log(ctx, "authorizer.created", map[string]any{
			"authorizer": string(addr),
			"id":         p.ID,
			"mint":       p.Mint,
			"fee_bps":    p.FeeBps,
		})
	})
	if err != nil {
		return domain.Authorizer{}, fmt.Errorf("settlement: create authorizer %s: %w", p.ID, err)
	}

	e.logger.Info("authorizer created",
		slog.String("authorizer", string(addr)),
		slog.String("mint", p.Mint),
	)
	return auth, nil
}

// Authorizer returns the authorizer at addr.
func (e *Engine) Authorizer(ctx context.Context, addr domain.Address) (domain.Authorizer, error) {
	auth, err := e.store.Authorizers().Get(ctx, addr)
	if err != nil {
		return domain.Authorizer{}, fmt.Errorf("settlement: authorizer: %w", err)
	}
	return auth, nil
}

// CreateOracle registers an oracle under an existing authorizer. Rooms
// created against this oracle settle once its result is published.
func (e *Engine) CreateOracle(ctx context.Context, p CreateOracleParams) (domain.Oracle, error) {
	if p.ID == "" {
		return domain.Oracle{}, fmt.Errorf("settlement: create oracle: id is required")
	}

	oracle := domain.Oracle{
		Address:    domain.OracleAddress(p.Authorizer, p.ID),
		Authorizer: p.Authorizer,
	}

	err := e.store.Atomically(ctx, func(s domain.Store) error {
		if _, err := s.Authorizers().Get(ctx, p.Authorizer); err != nil {
			return err
		}
		if err := s.Oracles().Create(ctx, oracle); err != nil {
			return err
		}
		return s.Audit().Log(ctx, "oracle.created", map[string]any{
			"oracle":     string(oracle.Address),
			"authorizer": string(p.Authorizer),
			"id":         p.ID,
		})
	})
	if err != nil {
		return domain.Oracle{}, fmt.Errorf("settlement: create oracle %s: %w", p.ID, err)
	}

	e.logger.Info("oracle created",
		slog.String("oracle", string(oracle.Address)),
		slog.String("authorizer", string(p.Authorizer)),
	)
	return oracle, nil
}

// Oracle returns the oracle at addr.
func (e *Engine) Oracle(ctx context.Context, addr domain.Address) (domain.Oracle, error) {
	oracle, err := e.store.Oracles().Get(ctx, addr)
	if err != nil {
		return domain.Oracle{}, fmt.Errorf("settlement: oracle: %w", err)
	}
	return oracle, nil
}

// PublishResult finalizes an oracle with the outcome pair. Publication is a
// one-shot: a second call fails with domain.ErrResultPublished, so a result
// can never be revised after withdrawals begin.
func (e *Engine) PublishResult(ctx context.Context, addr domain.Address, result domain.BetPair) error {
	err := e.store.Atomically(ctx, func(s domain.Store) error {
		if err := s.Oracles().PublishResult(ctx, addr, result); err != nil {
			return err
		}
		return s.Audit().Log(ctx, "oracle.result_published", map[string]any{
			"oracle":   string(addr),
			"result_a": result.A,
			"result_b": result.B,
		})
	})
	if err != nil {
		return fmt.Errorf("settlement: publish result: %w", err)
	}

	e.logger.Info("oracle result published",
		slog.String("oracle", string(addr)),
		slog.Int("result_a", int(result.A)),
		slog.Int("result_b", int(result.B)),
	)
	return nil
}

// CreateAccount allocates a token account for an owner and asset type. The
// address derives from the pair, so each owner holds at most one account per
// mint.
func (e *Engine) CreateAccount(ctx context.Context, owner, mint string) (domain.TokenAccount, error) {
	if owner == "" || mint == "" {
		return domain.TokenAccount{}, fmt.Errorf("settlement: create account: owner and mint are required")
	}

	acct := domain.TokenAccount{
		Address: domain.TokenAddress(owner, mint),
		Mint:    mint,
		Owner:   owner,
	}
	if err := e.store.Accounts().Create(ctx, acct); err != nil {
		return domain.TokenAccount{}, fmt.Errorf("settlement: create account: %w", err)
	}
	return acct, nil
}

// Account returns the token account at addr.
func (e *Engine) Account(ctx context.Context, addr domain.Address) (domain.TokenAccount, error) {
	acct, err := e.store.Accounts().Get(ctx, addr)
	if err != nil {
		return domain.TokenAccount{}, fmt.Errorf("settlement: account: %w", err)
	}
	return acct, nil
}

// Faucet credits an account out of thin air. It backs the dev-mode faucet
// endpoint only; nothing in the settlement flow mints.
func (e *Engine) Faucet(ctx context.Context, addr domain.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("settlement: faucet: %w", domain.ErrInvalidAmount)
	}
	if err := e.store.Accounts().Credit(ctx, addr, amount); err != nil {
		return fmt.Errorf("settlement: faucet: %w", err)
	}
	e.logger.Info("faucet credit",
		slog.String("account", string(addr)),
		slog.Uint64("amount", amount),
	)
	return nil
}
