package util

import (
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key, //Alice
const alicePubKey = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func TestSS58KnownAddresses(t *testing.T) {

	pubKey, err := hex.DecodeString(alicePubKey)
	require.NoError(t, err)

	tests := []struct {
		format  uint16
		address string
	}{
		{42, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"},
		{0, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"},
	}

	for _, tt := range tests {
		address, err := SS58Encode(pubKey, tt.format)
		require.NoError(t, err)
		assert.Equal(t, tt.address, address)

		format, decoded, err := SS58Decode(tt.address)
		require.NoError(t, err)
		assert.Equal(t, tt.format, format)
		assert.Equal(t, pubKey, decoded)
	}
}

func TestSS58RoundTrip(t *testing.T) {

	pubKey, _ := hex.DecodeString(alicePubKey)

	for _, format := range []uint16{0, 2, 42, 63, 64, 255, 1337, 16383} {
		address, err := SS58Encode(pubKey, format)
		require.NoError(t, err, "format %d", format)

		decodedFormat, decoded, err := SS58Decode(address)
		require.NoError(t, err, "format %d", format)
		assert.Equal(t, format, decodedFormat)
		assert.Equal(t, pubKey, decoded)
	}
}

func TestSS58Rejects(t *testing.T) {

	// Last character altered
	_, _, err := SS58Decode("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ")
	assert.Error(t, err)

	_, _, err = SS58Decode("")
	assert.Error(t, err)

	_, err = SS58Encode([]byte{1, 2, 3}, 0)
	assert.Error(t, err)

	pubKey, _ := hex.DecodeString(alicePubKey)
	_, err = SS58Encode(pubKey, 16384)
	assert.Error(t, err)
}

func TestIsValidAddress(t *testing.T) {

	westend, err := GetNetworkConstants(NETWORK_WESTEND)
	require.NoError(t, err)

	polkadot, err := GetNetworkConstants(NETWORK_POLKADOT)
	require.NoError(t, err)

	assert.True(t, westend.IsValidAddress("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"))
	assert.False(t, polkadot.IsValidAddress("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"))
	assert.True(t, polkadot.IsValidAddress("15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"))
}

func TestNetworks(t *testing.T) {

	for _, n := range []string{NETWORK_POLKADOT, NETWORK_KUSAMA, NETWORK_WESTEND} {
		assert.True(t, IsValidNetwork(n))

		nc, err := GetNetworkConstants(n)
		require.NoError(t, err)
		assert.NotEmpty(t, nc.EndpointsRPC)
	}

	assert.False(t, IsValidNetwork("mainnet"))

	_, err := GetNetworkConstants("mainnet")
	assert.Error(t, err)
}

func TestPlanckToUnit(t *testing.T) {

	polkadot, _ := GetNetworkConstants(NETWORK_POLKADOT)

	units := polkadot.PlanckToUnit(decimal.RequireFromString("12345000000"))
	assert.True(t, units.Equal(decimal.RequireFromString("1.2345")), units.String())
}
