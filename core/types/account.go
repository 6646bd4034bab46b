package types

import "burnfaucet/crypto"

// SystemProgramID is the ledger service. Accounts without a stored record are
// owned by it.
var SystemProgramID = crypto.Address{}

// Account is the unit of state. Lamports are the smallest unit of the native
// balance; Data is opaque to everyone except Owner.
type Account struct {
	Lamports   uint64         `json:"lamports"`
	Owner      crypto.Address `json:"owner"`
	Data       []byte         `json:"data"`
	Executable bool           `json:"executable"`
}

// Exists reports whether the account has been created: it holds lamports or
// data, or was assigned to a program.
func (a *Account) Exists() bool {
	if a == nil {
		return false
	}
	return a.Lamports > 0 || len(a.Data) > 0 || a.Owner != SystemProgramID
}

func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{}
	}
	out := *a
	out.Data = append([]byte(nil), a.Data...)
	return &out
}
