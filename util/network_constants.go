package util

import (
	"fmt"
	"strings"
)

const (
	NETWORK_POLKADOT = "polkadot"
	NETWORK_KUSAMA   = "kusama"
	NETWORK_WESTEND  = "westend"

	// MaxSupportedPayoutEras is the number of past eras checked for unclaimed payouts
	MaxSupportedPayoutEras = 7
)

type NetworkConstants struct {
	Name         string
	SS58Prefix   uint16
	Units        int32  // Decimal places between planck and one unit
	Unit         string // Display symbol
	EndpointsRPC []string
}

// For updating, the chain properties can be read from any node
// curl -Ss -H 'Content-Type: application/json' -d '{"id":1,"jsonrpc":"2.0","method":"system_properties"}' https://rpc.polkadot.io

func GetNetworkConstants(network string) (*NetworkConstants, error) {

	switch network {
	case NETWORK_POLKADOT:
		return &NetworkConstants{
			NETWORK_POLKADOT, 0, 10, "DOT", []string{"wss://rpc.polkadot.io", "wss://polkadot-rpc.dwellir.com"},
		}, nil
	case NETWORK_KUSAMA:
		return &NetworkConstants{
			NETWORK_KUSAMA, 2, 12, "KSM", []string{"wss://kusama-rpc.polkadot.io", "wss://kusama-rpc.dwellir.com"},
		}, nil
	case NETWORK_WESTEND:
		return &NetworkConstants{
			NETWORK_WESTEND, 42, 12, "WND", []string{"wss://westend-rpc.polkadot.io"},
		}, nil
	}

	// Unknown network
	return nil, fmt.Errorf("No such network '%s' exists", network)
}

func IsValidNetwork(maybeNetwork string) bool {
	return maybeNetwork == NETWORK_POLKADOT || maybeNetwork == NETWORK_KUSAMA || maybeNetwork == NETWORK_WESTEND
}

func AvailableNetworks() string {
	return strings.Join([]string{NETWORK_POLKADOT, NETWORK_KUSAMA, NETWORK_WESTEND}, ",")
}
