package cas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	recordVersion = 1

	encodingJSON   byte = 'j'
	encodingSnappy byte = 's'
)

// record is the on-disk envelope of one cache entry.
type record struct {
	Version     int                `json:"v"`
	Fingerprint domain.Fingerprint `json:"fingerprint"`
	CreatedAt   time.Time          `json:"created_at"`
	Checksum    string             `json:"checksum"`
	Value       json.RawMessage    `json:"value"`
}

func checksum(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// encodeRecord serializes e. The first byte names the encoding so records
// stay readable when the compression setting changes.
func encodeRecord(e domain.CacheEntry, compress bool) ([]byte, error) {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrRecordMarshalFailed.Error())
	}
	body, err := json.Marshal(record{
		Version:     recordVersion,
		Fingerprint: e.Fingerprint,
		CreatedAt:   e.CreatedAt.UTC(),
		Checksum:    checksum(value),
		Value:       value,
	})
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrRecordMarshalFailed.Error())
	}

	if compress {
		return append([]byte{encodingSnappy}, snappy.Encode(nil, body)...), nil
	}
	return append([]byte{encodingJSON}, body...), nil
}

func decodeRecord(data []byte) (record, domain.FrontendResult, error) {
	var rec record
	var result domain.FrontendResult

	if len(data) == 0 {
		return rec, result, zerr.With(domain.ErrRecordCorrupt, "reason", "empty")
	}

	body := data[1:]
	switch data[0] {
	case encodingJSON:
	case encodingSnappy:
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return rec, result, zerr.Wrap(err, domain.ErrRecordCorrupt.Error())
		}
		body = decoded
	default:
		return rec, result, zerr.With(domain.ErrRecordCorrupt, "encoding", string(data[0]))
	}

	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, result, zerr.Wrap(err, domain.ErrRecordCorrupt.Error())
	}
	if rec.Version != recordVersion {
		return rec, result, zerr.With(domain.ErrRecordCorrupt, "version", rec.Version)
	}
	if checksum(rec.Value) != rec.Checksum {
		return rec, result, zerr.With(domain.ErrRecordCorrupt, "reason", "checksum mismatch")
	}
	if err := json.Unmarshal(rec.Value, &result); err != nil {
		return rec, result, zerr.Wrap(err, domain.ErrRecordCorrupt.Error())
	}
	return rec, result, nil
}
