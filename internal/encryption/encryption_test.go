package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_DeterministicPerSalt(t *testing.T) {
	salt := DecodeSaltHex("a1b2c3d4e5f60718293a4b5c6d7e8f90")
	key1 := DeriveKey("correct horse battery staple", salt)
	key2 := DeriveKey("correct horse battery staple", salt)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)

	otherSalt := DecodeSaltHex("00112233445566778899aabbccddeeff")
	assert.NotEqual(t, key1, DeriveKey("correct horse battery staple", otherSalt))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	saltHex, err := NewSaltHex()
	require.NoError(t, err)
	key := DeriveKey("passphrase", DecodeSaltHex(saltHex))

	plaintext := `{"type":"buy","amount":0.5,"price":30000}`
	ciphertext, err := EncryptString(plaintext, key)
	require.NoError(t, err)

	got, err := DecryptString(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptString_WrongKeyFails(t *testing.T) {
	key := DeriveKey("right", DecodeSaltHex("a1b2c3d4e5f60718293a4b5c6d7e8f90"))
	ciphertext, err := EncryptString("secret", key)
	require.NoError(t, err)

	wrong := DeriveKey("wrong", DecodeSaltHex("a1b2c3d4e5f60718293a4b5c6d7e8f90"))
	_, err = DecryptString(ciphertext, wrong)
	assert.Error(t, err)
}

func TestDecryptString_Malformed(t *testing.T) {
	key := DeriveKey("p", DecodeSaltHex("a1b2c3d4e5f60718293a4b5c6d7e8f90"))

	_, err := DecryptString("not base64!!", key)
	assert.Error(t, err)

	_, err = DecryptString("c2hvcnQ=", key) // decodes to fewer bytes than a nonce
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestDecodeSaltHex_LenientOnBadInput(t *testing.T) {
	assert.Empty(t, DecodeSaltHex(""))
	assert.Empty(t, DecodeSaltHex("zz"))
	assert.Len(t, DecodeSaltHex("a1b2"), 2)
}
