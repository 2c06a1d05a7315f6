// Package credential seals and opens the signing material stored with a wallet.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/scrypt"
)

const (
	envelopeVersion = 1
	saltLen         = 16
	keyLen          = 32
)

// scrypt cost parameters. Tests lower scryptN.
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	ErrMissing       = errors.New("credential: missing")
	ErrCorrupt       = errors.New("credential: cannot be decoded or decrypted")
	ErrOwnerMismatch = errors.New("credential: key does not match declared owner")
	ErrNoSecret      = errors.New("credential: secret not configured")
)

type envelope struct {
	Version    int    `json:"version"`
	Owner      string `json:"owner"`
	Salt       string `json:"salt"`
	Ciphertext string `json:"ciphertext"`
}

func deriveKey(secret string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keyLen)
}

// Seal encrypts key under secret. The owner address is stored in clear so a
// decrypted key can be checked against it.
func Seal(key *ecdsa.PrivateKey, secret string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if key == nil {
		return "", ErrMissing
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	dk, err := deriveKey(secret, salt)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	gcm, err := newGCM(dk)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, crypto.FromECDSA(key), nil)

	raw, err := json.Marshal(envelope{
		Version:    envelopeVersion,
		Owner:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Open decrypts blob with secret and returns a signer for the recovered key.
func Open(blob, secret string) (*Signer, error) {
	if strings.TrimSpace(blob) == "" {
		return nil, ErrMissing
	}
	if secret == "" {
		return nil, ErrNoSecret
	}
	var env envelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Version != envelopeVersion || !common.IsHexAddress(env.Owner) {
		return nil, fmt.Errorf("%w: bad envelope header", ErrCorrupt)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("%w: bad salt", ErrCorrupt)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrCorrupt)
	}
	dk, err := deriveKey(secret, salt)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	gcm, err := newGCM(dk)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: short ciphertext", ErrCorrupt)
	}
	plain, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrCorrupt)
	}
	key, err := crypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	signer := NewSigner(key)
	if signer.Address() != common.HexToAddress(env.Owner) {
		return nil, ErrOwnerMismatch
	}
	return signer, nil
}

// Owner returns the declared owner of blob without decrypting it.
func Owner(blob string) (common.Address, error) {
	var env envelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil || !common.IsHexAddress(env.Owner) {
		return common.Address{}, ErrCorrupt
	}
	return common.HexToAddress(env.Owner), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
