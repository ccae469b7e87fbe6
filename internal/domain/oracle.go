package domain

import "time"

// Authorizer pins the accepted asset type and fee policy for every oracle
// that references it. Records are written once at deployment time and read
// on every room operation.
type Authorizer struct {
	Address     Address   `json:"address"`
	Mint        string    `json:"mint"`
	FeeVault    Address   `json:"fee_vault"`
	FeeBps      uint32    `json:"fee_bps"`
	RentPerByte uint64    `json:"rent_per_byte"`
	CreatedAt   time.Time `json:"created_at"`
}

// Oracle is the result-reporting authority for a set of rooms. Results are
// immutable once Finished is set.
type Oracle struct {
	Address    Address   `json:"address"`
	Authorizer Address   `json:"authorizer"`
	Results    BetPair   `json:"results"`
	Finished   bool      `json:"finished"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
