package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrTampered is returned when a sealed value fails authentication.
var ErrTampered = errors.New("sealed value failed authentication")

var _ Store = (*SealedStore)(nil)

// SealedStore encrypts every value with XChaCha20-Poly1305 before handing it to the inner store.
// The key name is bound as additional data so values cannot be swapped between keys.
type SealedStore struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealed wraps inner with at-rest encryption. key must be 32 bytes.
func NewSealed(inner Store, key []byte) (*SealedStore, error) {
	if inner == nil {
		return nil, errors.New("[NewSealed] inner store is required")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewSealed] chacha20poly1305.NewX")
	}
	return &SealedStore{inner: inner, aead: aead}, nil
}

// ParseKey decodes a hex encoded 32 byte sealing key.
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "[ParseKey] hex decode")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("[ParseKey] key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

func (s *SealedStore) Get(key string) ([]byte, error) {
	sealed, err := s.inner.Get(key)
	if err != nil {
		return nil, err
	}
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, ErrTampered
	}
	plain, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(key))
	if err != nil {
		return nil, ErrTampered
	}
	return plain, nil
}

func (s *SealedStore) Apply(ops ...Op) error {
	sealedOps := make([]Op, 0, len(ops))
	for _, op := range ops {
		if op.Remove {
			sealedOps = append(sealedOps, op)
			continue
		}
		nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(op.Value)+s.aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return errors.Wrap(err, "[SealedStore.Apply] rand.Read")
		}
		sealedOps = append(sealedOps, Op{
			Key:   op.Key,
			Value: s.aead.Seal(nonce, nonce, op.Value, []byte(op.Key)),
		})
	}
	return s.inner.Apply(sealedOps...)
}
