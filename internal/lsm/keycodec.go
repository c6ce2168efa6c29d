package lsm

import (
	"encoding/json"

	"github.com/lakestore/core/pkg/errors"
)

// encodeKey produces the byte form a DataFileMeta's MinKey/MaxKey store.
// Ordering decisions during merge always happen on the live []any values via
// mergefunc.CompareKeys; the encoded bytes exist only so a manifest entry
// can be written and later decoded back into []any for scan-time bound
// checks, without the manifest package needing to know about key shapes.
func encodeKey(key []any) ([]byte, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to encode key bound", err)
	}
	return data, nil
}

func decodeKey(data []byte) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var key []any
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, errors.New(ErrReadFailed, "failed to decode key bound", err)
	}
	return key, nil
}
