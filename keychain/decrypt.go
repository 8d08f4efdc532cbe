package keychain

import (
	"errors"
	"fmt"
)

// ErrNoDecrypter is returned when an encrypted key must be opened but no
// Decrypter was supplied.
var ErrNoDecrypter = errors.New("no decrypter configured")

// Decrypter opens an encrypted private key with a caller held passphrase.
// Passphrases are never stored.
type Decrypter interface {
	Decrypt(passphrase, ciphertext string) (string, error)
}

// DecryptPrv returns the plaintext extended private key of k, decrypting
// EncryptedPrv with passphrase when Prv is not set.
func DecryptPrv(k Keychain, d Decrypter, passphrase string) (string, error) {
	if k.Prv != "" {
		return k.Prv, nil
	}

	if k.EncryptedPrv == "" {
		return "", fmt.Errorf("keychain %s has no private key", k.ID)
	}

	if d == nil {
		return "", ErrNoDecrypter
	}

	prv, err := d.Decrypt(passphrase, k.EncryptedPrv)
	if err != nil {
		return "", fmt.Errorf("unable to decrypt keychain %s: %w", k.ID,
			err)
	}

	if !IsValidPrv(prv) {
		return "", fmt.Errorf("keychain %s decrypted to an invalid "+
			"private key", k.ID)
	}

	return prv, nil
}
