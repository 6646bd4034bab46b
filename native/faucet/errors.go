package faucet

import "errors"

var (
	ErrInvalidSystemProgram        = errors.New("faucet: invalid system program")
	ErrDeserialization             = errors.New("faucet: error deserializing account")
	ErrSerialization               = errors.New("faucet: error serializing account")
	ErrInsufficientTreasuryBalance = errors.New("faucet: insufficient treasury balance")
	ErrInvalidTreasuryPda          = errors.New("faucet: invalid treasury PDA")
	ErrInvalidMplCoreProgram       = errors.New("faucet: invalid MPL Core program")
	ErrInvalidBubblegumProgram     = errors.New("faucet: invalid Bubblegum program")
	ErrInvalidProofDerivation      = errors.New("faucet: invalid proof derivation")
	ErrCapabilityNotFound          = errors.New("faucet: required capability not found on asset")
	ErrMissingSignature            = errors.New("faucet: actor must sign")
	ErrNotEnoughAccountKeys        = errors.New("faucet: not enough account keys")
	ErrClaimAlreadyRecorded        = errors.New("faucet: claim already recorded")
)

// errorCodes is ordered by wire code. The first eight match the deployed program's
// custom error numbers.
var errorCodes = []error{
	ErrInvalidSystemProgram,
	ErrDeserialization,
	ErrSerialization,
	ErrInsufficientTreasuryBalance,
	ErrInvalidTreasuryPda,
	ErrInvalidMplCoreProgram,
	ErrInvalidBubblegumProgram,
	ErrInvalidProofDerivation,
	ErrCapabilityNotFound,
	ErrMissingSignature,
	ErrNotEnoughAccountKeys,
	ErrClaimAlreadyRecorded,
}

// Code returns the numeric code of a faucet error anywhere in err's chain.
func Code(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	for i, sentinel := range errorCodes {
		if errors.Is(err, sentinel) {
			return i, true
		}
	}
	return -1, false
}

// ErrorForCode is the inverse of Code.
func ErrorForCode(code int) (error, bool) {
	if code < 0 || code >= len(errorCodes) {
		return nil, false
	}
	return errorCodes[code], true
}
