package orderutil_test

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderwatch/internal/orderutil"
)

func TestEncryptDecryptKeyRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	blob, err := orderutil.EncryptKey(keyHex, "correct horse battery staple")
	require.NoError(t, err)

	decrypted, err := orderutil.DecryptKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, keyHex, decrypted)
}

func TestDecryptKeyWrongPasswordFails(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	blob, err := orderutil.EncryptKey(keyHex, "right-password")
	require.NoError(t, err)

	_, err = orderutil.DecryptKey(blob, "wrong-password")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsEmptyPassword(t *testing.T) {
	_, err := orderutil.EncryptKey("aa", "")
	assert.Error(t, err)
}

func TestLoadKeyFromRawPrivateKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	loaded, err := orderutil.LoadKey(orderutil.KeyConfig{RawPrivateKey: "0x" + keyHex})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(loaded.PublicKey))
}

func TestLoadKeyNoSourceConfigured(t *testing.T) {
	_, err := orderutil.LoadKey(orderutil.KeyConfig{})
	assert.Error(t, err)
}
