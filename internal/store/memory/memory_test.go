package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/parlay-labs/poolroom/internal/domain"
)

func seedAccount(t *testing.T, st *Store, addr domain.Address, mint string, balance uint64) {
	t.Helper()
	ctx := context.Background()
	if err := st.Accounts().Create(ctx, domain.TokenAccount{
		Address: addr,
		Mint:    mint,
		Owner:   "owner-" + string(addr),
	}); err != nil {
		t.Fatalf("create account %s: %v", addr, err)
	}
	if balance > 0 {
		if err := st.Accounts().Credit(ctx, addr, balance); err != nil {
			t.Fatalf("credit account %s: %v", addr, err)
		}
	}
}

func TestTransferRejectsSameAccount(t *testing.T) {
	st := New()
	ctx := context.Background()
	seedAccount(t, st, "acct-a", "USDV", 100)

	// A self-transfer must not credit the debited amount back on top of the
	// original balance.
	err := st.Accounts().Transfer(ctx, "acct-a", "acct-a", 40)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("self transfer: got %v, want ErrInvalidAmount", err)
	}

	acct, err := st.Accounts().Get(ctx, "acct-a")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acct.Balance != 100 {
		t.Fatalf("balance after self transfer = %d, want 100", acct.Balance)
	}
}

func TestTransferChecksMintAndBalance(t *testing.T) {
	st := New()
	ctx := context.Background()
	seedAccount(t, st, "acct-a", "USDV", 100)
	seedAccount(t, st, "acct-b", "EURV", 0)
	seedAccount(t, st, "acct-c", "USDV", 10)

	if err := st.Accounts().Transfer(ctx, "acct-a", "acct-b", 10); !errors.Is(err, domain.ErrAssetMismatch) {
		t.Fatalf("cross-mint transfer: got %v, want ErrAssetMismatch", err)
	}
	if err := st.Accounts().Transfer(ctx, "acct-c", "acct-a", 50); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraft: got %v, want ErrInsufficientFunds", err)
	}
	if err := st.Accounts().Transfer(ctx, "acct-a", "acct-missing", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing destination: got %v, want ErrNotFound", err)
	}

	if err := st.Accounts().Transfer(ctx, "acct-a", "acct-c", 30); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	src, _ := st.Accounts().Get(ctx, "acct-a")
	dst, _ := st.Accounts().Get(ctx, "acct-c")
	if src.Balance != 70 || dst.Balance != 40 {
		t.Fatalf("balances after transfer = %d/%d, want 70/40", src.Balance, dst.Balance)
	}
}
