package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ScryptStrength selects the key derivation cost of a keystore file.
type ScryptStrength string

const (
	// ScryptLight suits operator keys unlocked on every CLI call.
	ScryptLight ScryptStrength = "light"
	// ScryptStandard is the go-ethereum default for long-lived wallets.
	ScryptStandard ScryptStrength = "standard"
)

// ParseScryptStrength accepts "light" or "standard"; empty means light.
func ParseScryptStrength(s string) (ScryptStrength, error) {
	switch ScryptStrength(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScryptLight:
		return ScryptLight, nil
	case ScryptStandard:
		return ScryptStandard, nil
	}
	return "", fmt.Errorf("crypto: unknown scrypt strength %q", s)
}

func (s ScryptStrength) params() (n, p int) {
	if s == ScryptStandard {
		return keystore.StandardScryptN, keystore.StandardScryptP
	}
	return keystore.LightScryptN, keystore.LightScryptP
}

// SaveToKeystore writes key to an encrypted v3 keystore file at path using
// light scrypt parameters.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	return SaveToKeystoreWith(path, key, passphrase, ScryptLight)
}

// SaveToKeystoreWith writes key at path with the given scrypt strength. The
// file replaces any previous one atomically and is readable by the owner only.
func SaveToKeystoreWith(path string, key *PrivateKey, passphrase string, strength ScryptStrength) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	n, p := strength.params()
	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, n, p)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts the keystore file at path.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: unlock %s: %w", filepath.Base(path), err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
