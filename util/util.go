package util

import (
	"bytes"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

const (
	PublicKeyLength = 32
	checksumLength  = 2
)

var ss58Prefix = []byte("SS58PRE")

// ss58Checksum is the first two bytes of blake2b-512("SS58PRE" || body)
func ss58Checksum(body []byte) ([]byte, error) {

	hash, err := blake2b.New512(nil)
	if err != nil {
		return nil, errors.Wrap(err, "Unable create blake2b hash object")
	}

	if _, err := hash.Write(ss58Prefix); err != nil {
		return nil, errors.Wrap(err, "Unable write prefix to hash function")
	}

	if _, err := hash.Write(body); err != nil {
		return nil, errors.Wrap(err, "Unable write address bytes to hash function")
	}

	return hash.Sum(nil)[:checksumLength], nil
}

// SS58Encode returns the SS58 address of a 32 byte public key using the
// network's address format. Formats above 63 use the two byte prefix encoding.
func SS58Encode(pubKey []byte, format uint16) (string, error) {

	if len(pubKey) != PublicKeyLength {
		return "", errors.Errorf("Invalid public key length %d", len(pubKey))
	}

	var body []byte

	switch {
	case format < 64:
		body = []byte{byte(format)}
	case format < 16384:
		first := byte((format&0x00fc)>>2) | 0x40
		second := byte(format>>8) | byte(format&0x0003)<<6
		body = []byte{first, second}
	default:
		return "", errors.Errorf("Unsupported address format %d", format)
	}

	body = append(body, pubKey...)

	checksum, err := ss58Checksum(body)
	if err != nil {
		return "", err
	}

	return base58.Encode(append(body, checksum...)), nil
}

// SS58Decode returns the address format and the public key of an SS58 address
func SS58Decode(address string) (uint16, []byte, error) {

	raw := base58.Decode(address)
	if len(raw) < 2 {
		return 0, nil, errors.New("Unable to base58 decode address")
	}

	var (
		format    uint16
		prefixLen int
	)

	switch {
	case raw[0] < 64:
		format = uint16(raw[0])
		prefixLen = 1
	case raw[0] < 128:
		lower := raw[0]<<2 | raw[1]>>6
		upper := raw[1] & 0x3f
		format = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return 0, nil, errors.Errorf("Invalid address prefix byte %d", raw[0])
	}

	if len(raw) != prefixLen+PublicKeyLength+checksumLength {
		return 0, nil, errors.Errorf("Invalid address length %d", len(raw))
	}

	body := raw[:prefixLen+PublicKeyLength]

	checksum, err := ss58Checksum(body)
	if err != nil {
		return 0, nil, err
	}

	if !bytes.Equal(checksum, raw[prefixLen+PublicKeyLength:]) {
		return 0, nil, errors.New("Invalid address checksum")
	}

	return format, body[prefixLen:], nil
}

// IsValidAddress checks the address decodes and uses the network's address format
func (n *NetworkConstants) IsValidAddress(address string) bool {
	format, _, err := SS58Decode(address)
	return err == nil && format == n.SS58Prefix
}

// PlanckToUnit converts an amount in planck to whole units of the network
func (n *NetworkConstants) PlanckToUnit(planck decimal.Decimal) decimal.Decimal {
	return planck.Shift(-n.Units)
}
