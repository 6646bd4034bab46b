package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
)

const keystoreVersion = 3

// keyFile is a V3 keystore whose ciphertext is the 32-byte ed25519 seed.
type keyFile struct {
	Address string              `json:"address"`
	Crypto  keystore.CryptoJSON `json:"crypto"`
	ID      string              `json:"id"`
	Version int                 `json:"version"`
}

// Scrypt work factors. Tests lower them through SaveToKeystoreWithParams.
const (
	StandardScryptN = keystore.StandardScryptN
	StandardScryptP = keystore.StandardScryptP
	LightScryptN    = keystore.LightScryptN
	LightScryptP    = keystore.LightScryptP
)

// SaveToKeystore writes key to path encrypted with passphrase. The parent
// directory is created with 0700 permissions and the file is written 0600.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	return SaveToKeystoreWithParams(path, key, passphrase, StandardScryptN, StandardScryptP)
}

// SaveToKeystoreWithParams is SaveToKeystore with explicit scrypt parameters.
func SaveToKeystoreWithParams(path string, key *PrivateKey, passphrase string, scryptN, scryptP int) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	sealed, err := keystore.EncryptDataV3(key.Seed(), []byte(passphrase), scryptN, scryptP)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(keyFile{
		Address: key.Address().String(),
		Crypto:  sealed,
		ID:      uuid.NewString(),
		Version: keystoreVersion,
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "keystore-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts the keystore at path with passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file keyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("crypto: parse keystore: %w", err)
	}
	if file.Version != keystoreVersion {
		return nil, fmt.Errorf("crypto: unsupported keystore version %d", file.Version)
	}
	seed, err := keystore.DecryptDataV3(file.Crypto, passphrase)
	if err != nil {
		return nil, err
	}
	key, err := PrivateKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if want, err := ParseAddress(file.Address); err == nil && want != key.Address() {
		return nil, fmt.Errorf("crypto: keystore address %s does not match key", file.Address)
	}
	return key, nil
}
