package ed25519_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/lightnode/crypto"
	"github.com/tendermint/lightnode/crypto/ed25519"
)

func TestSignAndValidateEd25519(t *testing.T) {
	privKey := ed25519.GenPrivKey()
	pubKey := privKey.PubKey()

	msg := crypto.CRandBytes(128)
	sig, err := privKey.Sign(msg)
	require.NoError(t, err)

	// Test the signature
	assert.True(t, pubKey.VerifySignature(msg, sig))

	// Mutate the signature, just one bit.
	sig[7] ^= byte(0x01)

	assert.False(t, pubKey.VerifySignature(msg, sig))
}

func TestGenPrivKeyFromSecretIsDeterministic(t *testing.T) {
	a := ed25519.GenPrivKeyFromSecret([]byte("validator-1"))
	b := ed25519.GenPrivKeyFromSecret([]byte("validator-1"))
	c := ed25519.GenPrivKeyFromSecret([]byte("validator-2"))

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.Len(t, a.PubKey().Address(), crypto.AddressSize)
}

func TestPubKeyFromBytes(t *testing.T) {
	pk := ed25519.GenPrivKey().PubKey()

	got, err := ed25519.PubKeyFromBytes(pk.Bytes())
	require.NoError(t, err)
	assert.True(t, pk.Equals(got))

	_, err = ed25519.PubKeyFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
