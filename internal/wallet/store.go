package wallet

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/internal/storage"
)

// mainWalletKey is the single logical key the active wallet lives under.
// Only one unlocked wallet is active per session.
var mainWalletKey = []byte("wallet/main")

// encryptedMagic marks a password-encrypted wallet export.
var encryptedMagic = []byte("AGWENC01")

// FileFormat identifies the shape of a wallet file, detected once at import.
type FileFormat uint8

const (
	FormatPlain FileFormat = iota
	FormatEncrypted
	FormatLegacy
)

// walletFile is the envelope for stored and exported wallets.
type walletFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Wallet  *Wallet   `json:"wallet"`
}

// legacyFile is the foreign BIP32-style wallet format: a raw master key and
// chain code with an unknown address set.
type legacyFile struct {
	Version   int    `json:"version"`
	MasterKey string `json:"master_key"`
	ChainCode string `json:"chain_code"`
}

// Store owns the durable wallet representation. It is the only component
// that reads or writes wallet state.
type Store struct {
	db storage.DB
}

// NewStore creates a wallet store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Exists reports whether a wallet is stored.
func (s *Store) Exists() (bool, error) {
	return s.db.Has(mainWalletKey)
}

// Create generates a new seed wallet from a mnemonic, derives its first
// receive address and persists it. Fails if a wallet already exists.
func (s *Store) Create(mnemonic, passphrase string) (*Wallet, error) {
	exists, err := s.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrWalletExists
	}

	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		Kind:      KindSeed,
		CreatedAt: time.Now().UTC(),
		Seed:      seed,
	}
	if _, err := w.GenerateAddress(); err != nil {
		return nil, err
	}
	if err := s.Save(w); err != nil {
		return nil, err
	}
	log.Store.Info().Int("addresses", len(w.Addresses)).Msg("wallet created")
	return w, nil
}

// Load reads the stored wallet and re-derives its in-memory private keys.
func (s *Store) Load() (*Wallet, error) {
	exists, err := s.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrWalletNotFound
	}

	data, err := s.db.Get(mainWalletKey)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	w, err := parseWalletFile(data)
	if err != nil {
		return nil, err
	}
	if err := w.RederiveKeys(); err != nil {
		return nil, fmt.Errorf("rederive keys: %w", err)
	}
	return w, nil
}

// Save persists the wallet under the main key.
func (s *Store) Save(w *Wallet) error {
	data, err := json.MarshalIndent(&walletFile{
		Version: 1,
		SavedAt: time.Now().UTC(),
		Wallet:  w,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := s.db.Put(mainWalletKey, data); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

// Delete destroys the stored wallet.
func (s *Store) Delete() error {
	exists, err := s.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return ErrWalletNotFound
	}
	if err := s.db.Delete(mainWalletKey); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	log.Store.Info().Msg("wallet deleted")
	return nil
}

// Export serializes the wallet to an importable file. With a non-empty
// password the output is encrypted and carries a detectable marker.
// Export(Import(x)) round-trips byte-compatible content for both variants.
func (s *Store) Export(w *Wallet, password []byte) ([]byte, error) {
	plain, err := json.MarshalIndent(&walletFile{
		Version: 1,
		SavedAt: time.Now().UTC(),
		Wallet:  w,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal wallet: %w", err)
	}
	if len(password) == 0 {
		return plain, nil
	}

	enc, err := Encrypt(plain, password, DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("encrypt wallet: %w", err)
	}
	out := make([]byte, 0, len(encryptedMagic)+len(enc))
	out = append(out, encryptedMagic...)
	out = append(out, enc...)
	return out, nil
}

// DetectFormat classifies a wallet file without decoding it fully.
func DetectFormat(data []byte) (FileFormat, error) {
	if bytes.HasPrefix(data, encryptedMagic) {
		return FormatEncrypted, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("%w: not a recognized wallet file", ErrImport)
	}
	if _, ok := probe["wallet"]; ok {
		return FormatPlain, nil
	}
	_, hasMaster := probe["master_key"]
	_, hasChain := probe["chain_code"]
	if hasMaster && hasChain {
		return FormatLegacy, nil
	}
	return 0, fmt.Errorf("%w: unsupported wallet file shape", ErrImport)
}

// ImportResult is returned by Import.
type ImportResult struct {
	Wallet *Wallet
	// NeedsScan is true for legacy imports whose address set is unknown;
	// the caller must run the scanner and adopt addresses explicitly
	// before anything is persisted.
	NeedsScan bool
}

// Import parses a wallet file in any of the three supported shapes.
// Plain and encrypted imports are persisted immediately; legacy imports
// are returned unsaved with NeedsScan set.
func (s *Store) Import(data, password []byte) (*ImportResult, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatEncrypted:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}
		plain, err := Decrypt(data[len(encryptedMagic):], password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWrongPassword, err)
		}
		data = plain
		fallthrough

	case FormatPlain:
		w, err := parseWalletFile(data)
		if err != nil {
			return nil, err
		}
		if err := w.RederiveKeys(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImport, err)
		}
		if err := s.Save(w); err != nil {
			return nil, err
		}
		log.Store.Info().Str("kind", w.Kind.String()).Int("addresses", len(w.Addresses)).Msg("wallet imported")
		return &ImportResult{Wallet: w}, nil

	case FormatLegacy:
		w, err := parseLegacyFile(data)
		if err != nil {
			return nil, err
		}
		// Address set is unknown: hand control to the scanner, do not save.
		return &ImportResult{Wallet: w, NeedsScan: true}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported format", ErrImport)
	}
}

// AdoptScanned appends explicitly selected scanned addresses to a legacy
// import and persists the wallet. Only this call has durable side effects.
func (s *Store) AdoptScanned(w *Wallet, selected []ScannedAddress) error {
	for _, sa := range selected {
		if _, dup := w.AddressByChain(sa.Address.Address); dup {
			continue
		}
		w.Addresses = append(w.Addresses, sa.Address)
	}
	if err := s.Save(w); err != nil {
		return err
	}
	log.Store.Info().Int("adopted", len(selected)).Msg("scanned addresses adopted")
	return nil
}

func parseWalletFile(data []byte) (*Wallet, error) {
	var kf walletFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: parse wallet: %v", ErrImport, err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("%w: unsupported wallet version %d", ErrImport, kf.Version)
	}
	if kf.Wallet == nil {
		return nil, fmt.Errorf("%w: missing wallet body", ErrImport)
	}
	return kf.Wallet, nil
}

func parseLegacyFile(data []byte) (*Wallet, error) {
	var lf legacyFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("%w: parse legacy wallet: %v", ErrImport, err)
	}
	masterKey, err := hex.DecodeString(lf.MasterKey)
	if err != nil || len(masterKey) != 32 {
		return nil, fmt.Errorf("%w: legacy master key must be 32 hex bytes", ErrImport)
	}
	chainCode, err := hex.DecodeString(lf.ChainCode)
	if err != nil || len(chainCode) != 32 {
		return nil, fmt.Errorf("%w: legacy chain code must be 32 hex bytes", ErrImport)
	}
	return &Wallet{
		Kind:      KindImportedMaster,
		CreatedAt: time.Now().UTC(),
		MasterKey: masterKey,
		ChainCode: chainCode,
	}, nil
}
