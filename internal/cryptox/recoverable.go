package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/secretx"
	"golang.org/x/crypto/argon2"
)

var recoverableSalt = []byte("credengine/recoverable/v1")

// DeriveObfuscationKey stretches configured key material into the AES-256
// key protecting the recoverable slot.
func DeriveObfuscationKey(material []byte) []byte {
	return argon2.IDKey(material, recoverableSalt, 1, 16*1024, 2, 32)
}

func (s *Suite) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key.Bytes())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Obfuscate encodes password into a fixed-size recoverable slot:
// a random nonce followed by AES-GCM over a length-prefixed, zero padded
// copy of the password.
func (s *Suite) Obfuscate(password []byte) ([]byte, error) {
	if len(password) > MaxRecoverable {
		return nil, fmt.Errorf("%w: password longer than %d bytes cannot be recoverable", common.ErrInvalidInput, MaxRecoverable)
	}
	aesgcm, err := s.aead()
	if err != nil {
		return nil, err
	}

	plain := secretx.Alloc(2 + MaxRecoverable)
	defer plain.Wipe()
	binary.BigEndian.PutUint16(plain.Bytes(), uint16(len(password)))
	copy(plain.Bytes()[2:], password)

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	out := make([]byte, 0, RecoverableSize)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plain.Bytes(), nil), nil
}

// Deobfuscate reverses Obfuscate. The returned buffer must be wiped.
func (s *Suite) Deobfuscate(slot []byte) (*secretx.Buffer, error) {
	if len(slot) != RecoverableSize {
		return nil, fmt.Errorf("%w: recoverable slot has length %d", common.ErrInvalidInput, len(slot))
	}
	aesgcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce, sealed := slot[:gcmNonceSize], slot[gcmNonceSize:]
	raw, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("open recoverable slot: %w", err)
	}
	plain := secretx.New(raw)
	defer plain.Wipe()

	n := int(binary.BigEndian.Uint16(plain.Bytes()))
	if n > MaxRecoverable {
		return nil, fmt.Errorf("%w: recoverable length %d", common.ErrInvalidInput, n)
	}
	out := make([]byte, n)
	copy(out, plain.Bytes()[2:2+n])
	return secretx.New(out), nil
}

// Recover returns the cleartext held in the recoverable slot of b.
func (s *Suite) Recover(b *Blob) (*secretx.Buffer, error) {
	if !b.Has(AlgRecoverable) {
		return nil, common.ErrNotSupported
	}
	return s.Deobfuscate(b.Slot(AlgRecoverable))
}
