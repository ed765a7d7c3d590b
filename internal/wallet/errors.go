package wallet

import "errors"

// Sentinel errors for the wallet engine. Matched with errors.Is.
var (
	// ErrResolution means a recipient identifier could not be resolved
	// to a chain address. User-correctable, not retryable.
	ErrResolution = errors.New("recipient could not be resolved")

	// ErrInsufficientFunds means no input selection covers the requested
	// amount plus fees. Recoverable by choosing a smaller amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero, negative or malformed amounts
	// before any network call is made.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrSigning means an input's address has no private key available
	// (watch-only wallet). Fatal for the operation, not retryable.
	ErrSigning = errors.New("signing requires a private key")

	// ErrNoMasterKey means the wallet has no usable master key material.
	// Fatal for derivation and signing.
	ErrNoMasterKey = errors.New("wallet has no master key material")

	// ErrNoUTXOs means the source address has nothing to spend.
	ErrNoUTXOs = errors.New("no UTXOs available")

	// ErrImport covers malformed wallet files and unsupported formats.
	ErrImport = errors.New("wallet import failed")

	// ErrWrongPassword means an encrypted wallet file could not be
	// decrypted with the supplied password.
	ErrWrongPassword = errors.New("wrong wallet password")

	// ErrPasswordRequired means the file is encrypted and no password
	// was supplied. Callers should prompt and retry.
	ErrPasswordRequired = errors.New("wallet file is encrypted, password required")

	// ErrWalletExists is returned by Create when a wallet is already stored.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrWalletNotFound is returned by Load/Delete when no wallet is stored.
	ErrWalletNotFound = errors.New("wallet not found")
)
