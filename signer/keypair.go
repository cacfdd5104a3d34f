// Package signer holds BIP-340 Schnorr keypairs. A keypair's x-only public
// key doubles as its account address.
package signer

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"
)

// Keypair signs transaction digests
type Keypair struct {
	privKey *btcec.PrivateKey
	pubKey  *btcec.PublicKey
	xonly   [32]byte
}

// Generate creates a fresh keypair from system entropy
func Generate() (*Keypair, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "error generating key")
	}
	return fromPrivate(privKey), nil
}

// FromSecret derives the keypair of a 32-byte secret
func FromSecret(sec []byte) (*Keypair, error) {
	if len(sec) != 32 {
		return nil, errors.New("secret key must be 32 bytes")
	}
	privKey, _ := btcec.PrivKeyFromBytes(sec)
	if privKey.Key.IsZero() {
		return nil, errors.New("secret key is zero modulo the group order")
	}
	return fromPrivate(privKey), nil
}

// fromPrivate normalizes the secret so the public key has an even Y
// coordinate, matching its x-only encoding.
func fromPrivate(privKey *btcec.PrivateKey) *Keypair {
	pubKey := privKey.PubKey()
	if pubKey.SerializeCompressed()[0] == 0x03 {
		scalar := privKey.Key
		scalar.Negate()
		privKey = &btcec.PrivateKey{Key: scalar}
		pubKey = privKey.PubKey()
	}
	k := &Keypair{privKey: privKey, pubKey: pubKey}
	copy(k.xonly[:], schnorr.SerializePubKey(pubKey))
	return k
}

// PublicKey returns the x-only public key
func (k *Keypair) PublicKey() [32]byte { return k.xonly }

// Secret returns the normalized secret key bytes
func (k *Keypair) Secret() []byte {
	if k.privKey == nil {
		return nil
	}
	return k.privKey.Serialize()
}

// Sign creates a BIP-340 signature over digest
func (k *Keypair) Sign(digest [32]byte) (out [64]byte, err error) {
	if k.privKey == nil {
		return out, errors.New("no secret key available for signing")
	}
	sig, err := schnorr.Sign(k.privKey, digest[:])
	if err != nil {
		return out, errors.Wrap(err, "error signing")
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// Verify checks sig over digest against an x-only public key
func Verify(pub [32]byte, digest [32]byte, sig [64]byte) (bool, error) {
	pubKey, err := schnorr.ParsePubKey(pub[:])
	if err != nil {
		return false, errors.Wrap(err, "error parsing public key")
	}
	s, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false, errors.Wrap(err, "error parsing signature")
	}
	return s.Verify(digest[:], pubKey), nil
}

// Zero wipes the secret key
func (k *Keypair) Zero() {
	if k.privKey != nil {
		k.privKey.Zero()
		k.privKey = nil
	}
}
