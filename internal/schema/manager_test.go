package schema

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/types"
)

func newTestManager() *Manager {
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/orders")
	return NewManager(mem, lm, zerolog.Nop())
}

func sampleDef() TableDef {
	return TableDef{
		RowType: types.NewRowType(
			types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
			types.NewField(2, "name", types.NewPrimitive(types.String), true),
			types.NewField(3, "ts", types.NewPrimitive(types.Timestamp), false),
		),
		PrimaryKeys:   []string{"id"},
		PartitionKeys: nil,
	}
}

func TestCreateTableWritesSchemaZero(t *testing.T) {
	m := newTestManager()
	ts, err := m.CreateTable(sampleDef())
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts.ID)
	assert.Equal(t, 3, ts.HighestFieldID)

	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, ts.ID, latest.ID)
}

func TestCreateTableRejectsDuplicate(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateTable(sampleDef())
	require.NoError(t, err)
	_, err = m.CreateTable(sampleDef())
	assert.Error(t, err)
}

func TestCreateTableRejectsBadKeys(t *testing.T) {
	m := newTestManager()
	def := sampleDef()
	def.PartitionKeys = []string{"missing_field"}
	_, err := m.CreateTable(def)
	assert.Error(t, err)
}

func TestCommitChangesAddColumn(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateTable(sampleDef())
	require.NoError(t, err)

	ts, err := m.CommitChanges([]Change{
		{Kind: AddColumn, ColumnName: "amount", NewType: types.NewPrimitive(types.Float64), Nullable: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ts.ID)
	assert.Equal(t, 4, ts.HighestFieldID)

	rt, err := ts.RowType()
	require.NoError(t, err)
	f, ok := rt.FieldByName("amount")
	require.True(t, ok)
	assert.Equal(t, 4, f.ID)
}

func TestCommitChangesRenameColumn(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateTable(sampleDef())
	require.NoError(t, err)

	ts, err := m.CommitChanges([]Change{{Kind: RenameColumn, ColumnName: "name", NewName: "full_name"}})
	require.NoError(t, err)
	rt, err := ts.RowType()
	require.NoError(t, err)
	_, ok := rt.FieldByName("name")
	assert.False(t, ok)
	f, ok := rt.FieldByName("full_name")
	require.True(t, ok)
	assert.Equal(t, 2, f.ID)
}

func TestCommitChangesDropColumnPreservesFieldIDs(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateTable(sampleDef())
	require.NoError(t, err)

	ts, err := m.CommitChanges([]Change{{Kind: DropColumn, ColumnName: "name"}})
	require.NoError(t, err)
	rt, err := ts.RowType()
	require.NoError(t, err)
	_, ok := rt.FieldByName("name")
	assert.False(t, ok)
	assert.Equal(t, 3, ts.HighestFieldID, "dropping a column must not reclaim its field id")
}

func TestCommitChangesRejectsNarrowingCast(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateTable(sampleDef())
	require.NoError(t, err)

	_, err = m.CommitChanges([]Change{{Kind: UpdateColumnType, ColumnName: "id", NewType: types.NewPrimitive(types.Int32)}})
	assert.Error(t, err)
}

func TestCommitChangesAllowsWideningCast(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateTable(sampleDef())
	require.NoError(t, err)

	ts, err := m.CommitChanges([]Change{{Kind: UpdateColumnType, ColumnName: "id", NewType: types.NewPrimitive(types.Float64)}})
	require.NoError(t, err)
	rt, err := ts.RowType()
	require.NoError(t, err)
	f, _ := rt.FieldByName("id")
	assert.Equal(t, types.Float64, f.Type.Kind())
}

func TestComputeMappingHandlesAddedColumn(t *testing.T) {
	dataSchema := types.NewRowType(
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "name", types.NewPrimitive(types.String), true),
	)
	tableSchema := types.NewRowType(
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "name", types.NewPrimitive(types.String), true),
		types.NewField(4, "amount", types.NewPrimitive(types.Float64), true),
	)

	mapping, cast := ComputeMapping(tableSchema, dataSchema)
	require.Len(t, mapping, 3)
	assert.Equal(t, 0, mapping[0])
	assert.Equal(t, 1, mapping[1])
	assert.Equal(t, -1, mapping[2])
	assert.False(t, cast.RequiresCast[0])
}

func TestListAllReturnsAllVersions(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateTable(sampleDef())
	require.NoError(t, err)
	_, err = m.CommitChanges([]Change{{Kind: AddColumn, ColumnName: "amount", NewType: types.NewPrimitive(types.Float64), Nullable: true}})
	require.NoError(t, err)

	all, err := m.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(0), all[0].ID)
	assert.Equal(t, int64(1), all[1].ID)
}
