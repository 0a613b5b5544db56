package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, AddressLength)
	addr := NewAddress(AccountPrefix, raw)

	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, "dsc1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.True(t, decoded.Equal(addr))
	require.Equal(t, AccountPrefix, decoded.Prefix())
}

func TestAddressFromBytesRejectsLength(t *testing.T) {
	_, err := AddressFromBytes(AccountPrefix, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestAddressCopiesInput(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01}, AddressLength)
	addr := NewAddress(AccountPrefix, raw)
	raw[0] = 0xFF
	require.Equal(t, byte(0x01), addr.Bytes()[0])
}

func TestZeroAddress(t *testing.T) {
	require.True(t, Address{}.IsZero())
	require.Equal(t, "", Address{}.String())
	require.False(t, NewAddress(VaultPrefix, bytes.Repeat([]byte{0x09}, AddressLength)).IsZero())
}

func TestGeneratedKeyAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.True(t, restored.PubKey().Address().Equal(key.PubKey().Address()))

	vault := key.PubKey().AddressWithPrefix(VaultPrefix)
	require.Equal(t, VaultPrefix, vault.Prefix())
	require.True(t, vault.Equal(key.PubKey().Address()))
}
