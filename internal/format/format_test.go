package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/types"
)

func testRowType() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "name", types.NewPrimitive(types.String), true),
	)
}

func TestToArrowSchemaFields(t *testing.T) {
	schema, err := ToArrowSchema(testRowType())
	require.NoError(t, err)
	require.Len(t, schema.Fields(), 2)
	assert.Equal(t, "id", schema.Field(0).Name)
	assert.False(t, schema.Field(0).Nullable)
	assert.True(t, schema.Field(1).Nullable)

	idMeta, ok := schema.Field(0).Metadata.GetValue("field_id")
	require.True(t, ok)
	assert.Equal(t, "1", idMeta)
}

func TestCodecForRejectsUnknown(t *testing.T) {
	_, err := codecFor("not-a-codec")
	assert.Error(t, err)
}

func TestCodecForAcceptsKnown(t *testing.T) {
	for _, name := range []string{"none", "snappy", "gzip", "zstd", "lz4"} {
		_, err := codecFor(name)
		assert.NoError(t, err, name)
	}
}

func TestValidateCompressionLevelBounds(t *testing.T) {
	assert.NoError(t, ValidateCompressionLevel("gzip", 5))
	assert.Error(t, ValidateCompressionLevel("gzip", 0))
	assert.Error(t, ValidateCompressionLevel("zstd", 30))
	assert.NoError(t, ValidateCompressionLevel("snappy", 0))
}

func TestAvroCodecRoundTrip(t *testing.T) {
	schemaJSON := `{
		"type": "record",
		"name": "TestRecord",
		"fields": [
			{"name": "id", "type": "long"},
			{"name": "name", "type": "string"}
		]
	}`
	codec, err := NewAvroCodec(schemaJSON)
	require.NoError(t, err)

	type testRecord struct {
		ID   int64  `avro:"id"`
		Name string `avro:"name"`
	}

	data, err := codec.Encode(&testRecord{ID: 7, Name: "bucket-0"})
	require.NoError(t, err)

	var out testRecord
	require.NoError(t, codec.Decode(data, &out))
	assert.Equal(t, int64(7), out.ID)
	assert.Equal(t, "bucket-0", out.Name)
}

func TestAvroCodecRejectsInvalidSchema(t *testing.T) {
	_, err := NewAvroCodec("{not json")
	assert.Error(t, err)
}
