package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const envelopeVersion = 1

var (
	ErrCorrupt = errors.New("corrupt entry")
	errExpired = errors.New("entry expired")
)

type envelopeMeta struct {
	Version   int    `json:"version"`
	ExpiresAt *int64 `json:"expiresAt"` // unix millis, null when the entry never expires
}

type envelope struct {
	Meta  *envelopeMeta   `json:"meta"`
	Value json.RawMessage `json:"value"`
}

func encodeEnvelope(value any, ttl time.Duration, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	meta := &envelopeMeta{Version: envelopeVersion}
	if ttl > 0 {
		exp := now.Add(ttl).UnixMilli()
		meta.ExpiresAt = &exp
	}
	return json.Marshal(envelope{Meta: meta, Value: raw})
}

// decodeEnvelope unwraps data and returns the stored value. Values written
// before envelopes existed (no meta field) are returned unchanged.
func decodeEnvelope(data []byte, now time.Time) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, ErrCorrupt
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Meta == nil {
		return data, nil
	}
	if env.Meta.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown envelope version %d", ErrCorrupt, env.Meta.Version)
	}
	if env.Meta.ExpiresAt != nil && now.UnixMilli() > *env.Meta.ExpiresAt {
		return nil, errExpired
	}
	if env.Value == nil {
		return json.RawMessage("null"), nil
	}
	return env.Value, nil
}
