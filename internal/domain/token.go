package domain

import "time"

// TokenAccount holds a balance of a single fungible asset type. Room vaults,
// authorizer fee vaults, and participant accounts are all token accounts;
// the only way funds move between them is TokenAccountStore.Transfer.
type TokenAccount struct {
	Address   Address   `json:"address"`
	Mint      string    `json:"mint"`
	Owner     string    `json:"owner"`
	Balance   uint64    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}
