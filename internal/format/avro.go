package format

import (
	"github.com/hamba/avro/v2"

	"github.com/lakestore/core/pkg/errors"
)

// AvroCodec encodes/decodes manifest, manifest-list and changelog envelope
// records against a fixed Avro schema, replacing ad-hoc JSON with the binary
// format manifests are specified to use.
type AvroCodec struct {
	schema avro.Schema
}

// NewAvroCodec parses schemaJSON (an Avro schema document) once and reuses
// it for every Encode/Decode call.
func NewAvroCodec(schemaJSON string) (*AvroCodec, error) {
	schema, err := avro.Parse(schemaJSON)
	if err != nil {
		return nil, errors.New(ErrUnsupportedFormat, "invalid avro schema", err)
	}
	return &AvroCodec{schema: schema}, nil
}

func (c *AvroCodec) Encode(v any) ([]byte, error) {
	data, err := avro.Marshal(c.schema, v)
	if err != nil {
		return nil, errors.New(ErrEncodeFailed, "avro encode failed", err)
	}
	return data, nil
}

func (c *AvroCodec) Decode(data []byte, v any) error {
	if err := avro.Unmarshal(c.schema, data, v); err != nil {
		return errors.New(ErrDecodeFailed, "avro decode failed", err)
	}
	return nil
}
