package repomd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Verify checks a detached armored OpenPGP signature over the raw repomd.xml
// bytes against the keyring at keyringPath.
func Verify(manifest, signature []byte, keyringPath string) error {
	f, err := os.Open(keyringPath)
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return fmt.Errorf("decoding keyring: %w", err)
	}

	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(manifest), bytes.NewReader(signature), nil); err != nil {
		return fmt.Errorf("verifying repomd signature: %w", err)
	}
	return nil
}
