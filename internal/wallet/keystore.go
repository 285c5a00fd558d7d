package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already in keystore")
	ErrAccountLocked   = errors.New("account is locked")
	ErrInvalidKey      = errors.New("invalid private key")
)

// Keystore is the encrypted key directory under the data dir. Keys only
// leave it decrypted as a KeySigner.
type Keystore struct {
	ks  *keystore.KeyStore
	dir string
}

// OpenKeystore opens <dataDir>/keystore, creating it with owner-only
// permissions if needed.
func OpenKeystore(dataDir string) (*Keystore, error) {
	return openKeystore(dataDir, keystore.StandardScryptN, keystore.StandardScryptP)
}

func openKeystore(dataDir string, scryptN, scryptP int) (*Keystore, error) {
	dir := filepath.Join(dataDir, "keystore")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore directory: %w", err)
	}
	return &Keystore{
		ks:  keystore.NewKeyStore(dir, scryptN, scryptP),
		dir: dir,
	}, nil
}

// Dir is the keystore directory.
func (k *Keystore) Dir() string { return k.dir }

// Create generates a fresh account encrypted with password.
func (k *Keystore) Create(password string) (accounts.Account, error) {
	return k.ks.NewAccount(password)
}

// Import encrypts a hex private key with password. The parsed key is zeroed
// before returning, whether or not the import succeeded.
func (k *Keystore) Import(privateKeyHex, password string) (accounts.Account, error) {
	s, err := NewKeySigner(privateKeyHex)
	if err != nil {
		return accounts.Account{}, err
	}
	return k.importSigner(s, password)
}

func (k *Keystore) importSigner(s *KeySigner, password string) (accounts.Account, error) {
	defer s.Lock()

	s.mu.RLock()
	key := s.key
	s.mu.RUnlock()
	if key == nil {
		return accounts.Account{}, ErrAccountLocked
	}

	account, err := k.ks.ImportECDSA(key, password)
	if errors.Is(err, keystore.ErrAccountAlreadyExists) {
		return accounts.Account{}, fmt.Errorf("%w: %s", ErrAccountExists, s.Address().Hex())
	}
	return account, err
}

// Accounts lists the stored accounts in keystore order.
func (k *Keystore) Accounts() []accounts.Account {
	return k.ks.Accounts()
}

// Has reports whether address is stored.
func (k *Keystore) Has(address common.Address) bool {
	return k.ks.HasAddress(address)
}

// Unlock decrypts the key for address into a KeySigner. The keystore itself
// keeps no unlocked copy; callers Lock the signer when done.
func (k *Keystore) Unlock(address common.Address, password string) (*KeySigner, error) {
	account, err := k.ks.Find(accounts.Account{Address: address})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address.Hex())
	}

	keyJSON, err := os.ReadFile(account.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("unlock %s: %w", address.Hex(), err)
	}
	return newKeySigner(key.PrivateKey), nil
}
