package keyring

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"

	ethaccounts "github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/secret"
)

// hardenedOffset marks the start of the hardened index range in a
// BIP-32 derivation path.
const hardenedOffset = 0x80000000

var masterSeedKey = []byte("Bitcoin seed")

// extendedKey is a BIP-32 extended private key: the scalar plus the chain
// code threaded through child derivation.
type extendedKey struct {
	key       *big.Int
	chainCode []byte
}

// DerivePrivateKey deterministically derives the secp256k1 private key at
// path from a BIP-39 mnemonic. The same mnemonic and path always produce
// the same key.
func DerivePrivateKey(mnemonic, path string) (*ecdsa.PrivateKey, error) {
	parsed, err := ethaccounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
	}

	seed := bip39.NewSeed(mnemonic, "")
	defer secret.Zero(seed)

	ek, err := masterKey(seed)
	if err != nil {
		return nil, err
	}

	for _, index := range parsed {
		ek, err = ek.child(index)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child at path %q: %w", path, err)
		}
	}

	keyBytes := ek.key.FillBytes(make([]byte, 32))
	defer secret.Zero(keyBytes)

	priv, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("derived key is invalid: %w", err)
	}
	return priv, nil
}

// masterKey builds the root extended key from a BIP-39 seed.
func masterKey(seed []byte) (*extendedKey, error) {
	mac := hmac.New(sha512.New, masterSeedKey)
	mac.Write(seed)
	sum := mac.Sum(nil)

	key := new(big.Int).SetBytes(sum[:32])
	if key.Sign() == 0 || key.Cmp(ethcrypto.S256().Params().N) >= 0 {
		return nil, fmt.Errorf("seed produced an out-of-range master key")
	}

	return &extendedKey{key: key, chainCode: sum[32:]}, nil
}

// child derives the child key at index per BIP-32. Hardened children hash
// the parent scalar, normal children hash the compressed parent point.
func (ek *extendedKey) child(index uint32) (*extendedKey, error) {
	data := make([]byte, 0, 37)
	if index >= hardenedOffset {
		data = append(data, 0x00)
		data = append(data, ek.key.FillBytes(make([]byte, 32))...)
	} else {
		pub := ecdsa.PublicKey{Curve: ethcrypto.S256()}
		pub.X, pub.Y = ethcrypto.S256().ScalarBaseMult(ek.key.FillBytes(make([]byte, 32)))
		data = append(data, ethcrypto.CompressPubkey(&pub)...)
	}
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, ek.chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)

	n := ethcrypto.S256().Params().N
	il := new(big.Int).SetBytes(sum[:32])
	if il.Cmp(n) >= 0 {
		return nil, fmt.Errorf("child index %d produced an out-of-range key", index)
	}

	childKey := new(big.Int).Add(il, ek.key)
	childKey.Mod(childKey, n)
	if childKey.Sign() == 0 {
		return nil, fmt.Errorf("child index %d produced a zero key", index)
	}

	return &extendedKey{key: childKey, chainCode: sum[32:]}, nil
}
