package credential

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds a decrypted owner key for the duration of one transfer.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// GenerateKey returns a fresh secp256k1 owner key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

func (s *Signer) Address() common.Address { return s.addr }

// SignUserOp signs the EIP-191 prefixed userOpHash the way SimpleAccount
// validates it. v is shifted to 27/28.
func (s *Signer) SignUserOp(hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// SealSigner re-seals the signer's key under secret.
func SealSigner(s *Signer, secret string) (string, error) {
	return Seal(s.key, secret)
}
