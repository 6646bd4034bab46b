package state

// AccountStorageOverhead is charged on top of the data length of every account.
const AccountStorageOverhead = 128

// Rent prices account storage. An account holding at least MinimumBalance for
// its data size is exempt.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// DefaultRent mirrors the reference ledger's rent schedule.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}
}

// MinimumBalance returns the rent-exempt balance for an account of size bytes.
func (r Rent) MinimumBalance(size int) uint64 {
	return (AccountStorageOverhead + uint64(size)) * r.LamportsPerByteYear * r.ExemptionYears
}
