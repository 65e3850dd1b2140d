package storage

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"stakedash/util"
)

var ErrUnknownEndpoint = errors.New("Unknown RPC endpoint")

func endpointsBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(CONFIG_BUCKET)).Bucket([]byte(ENDPOINTS_BUCKET))
	if b == nil {
		return nil, errors.New("Unable to locate endpoints bucket")
	}
	return b, nil
}

// Trailing slashes and whitespace don't make a different endpoint
func normalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}

func findEndpoint(b *bolt.Bucket, endpoint []byte) (int, bool) {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if bytes.Equal(v, endpoint) {
			return Btoi(k), true
		}
	}
	return 0, false
}

// AddRPCEndpoint saves endpoint and returns its id. Saving a known endpoint
// returns the existing id.
func (s *Storage) AddRPCEndpoint(endpoint string) (int, error) {

	endpoint = normalizeEndpoint(endpoint)
	if endpoint == "" {
		return 0, errors.New("Empty RPC endpoint")
	}

	var rpcId int

	err := s.Update(func(tx *bolt.Tx) error {
		b, err := endpointsBucket(tx)
		if err != nil {
			return err
		}

		if id, ok := findEndpoint(b, []byte(endpoint)); ok {
			rpcId = id
			return nil
		}

		seq, err := b.NextSequence()
		if err != nil {
			return errors.Wrap(err, "Unable to allocate endpoint id")
		}
		rpcId = int(seq)

		return b.Put(Itob(rpcId), []byte(endpoint))
	})

	return rpcId, err
}

// GetRPCEndpoints returns id => endpoint
func (s *Storage) GetRPCEndpoints() (map[int]string, error) {

	endpoints := make(map[int]string)

	err := s.View(func(tx *bolt.Tx) error {
		b, err := endpointsBucket(tx)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			endpoints[Btoi(k)] = string(v)
			return nil
		})
	})

	return endpoints, err
}

func (s *Storage) DeleteRPCEndpoint(endpointId int) error {

	return s.Update(func(tx *bolt.Tx) error {
		b, err := endpointsBucket(tx)
		if err != nil {
			return err
		}

		if b.Get(Itob(endpointId)) == nil {
			return errors.Wrapf(ErrUnknownEndpoint, "id %d", endpointId)
		}

		return b.Delete(Itob(endpointId))
	})
}

// AddDefaultEndpoints adds the network's public RPC endpoints on first init.
// The endpoint sequence only moves forward, so defaults the user deleted stay deleted.
func (s *Storage) AddDefaultEndpoints(network string) error {

	networkConstants, err := util.GetNetworkConstants(network)
	if err != nil {
		return errors.Wrap(err, "Unknown network for storage")
	}

	return s.Update(func(tx *bolt.Tx) error {
		b, err := endpointsBucket(tx)
		if err != nil {
			return err
		}

		if b.Sequence() > 0 {
			return nil
		}

		for _, endpoint := range networkConstants.EndpointsRPC {
			seq, err := b.NextSequence()
			if err != nil {
				return errors.Wrap(err, "Unable to allocate endpoint id")
			}
			if err := b.Put(Itob(int(seq)), []byte(normalizeEndpoint(endpoint))); err != nil {
				return err
			}
		}

		return nil
	})
}
