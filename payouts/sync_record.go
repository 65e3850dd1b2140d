package payouts

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SyncRecord summarizes the last completed run for a subject
type SyncRecord struct {
	ActiveEra uint32          `json:"ae"`
	Window    EraWindow       `json:"w"`
	Total     decimal.Decimal `json:"t"`
	NumEras   int             `json:"ne"`
	Timestamp int64           `json:"ts"`
}

// SyncHistory persists sync records, satisfied by *storage.Storage
type SyncHistory interface {
	RecordSync(network, account string, activeEra int, record []byte) error
	GetSyncRecord(network, account string) ([]byte, error)
}

func SaveSyncRecord(h SyncHistory, subject Subject, record SyncRecord) error {

	raw, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "Unable to marshal sync record")
	}

	if err := h.RecordSync(subject.Network, subject.Account, int(record.ActiveEra), raw); err != nil {
		return errors.Wrap(err, "Unable to save sync record")
	}

	return nil
}

// LoadSyncRecord returns nil if subject never completed a run
func LoadSyncRecord(h SyncHistory, subject Subject) (*SyncRecord, error) {

	raw, err := h.GetSyncRecord(subject.Network, subject.Account)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to get sync record")
	}

	if raw == nil {
		return nil, nil
	}

	record := &SyncRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal sync record")
	}

	return record, nil
}
