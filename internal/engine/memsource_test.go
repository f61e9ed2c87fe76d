package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronym/relay/internal/store"
)

func TestMemSourceCRUD(t *testing.T) {
	ctx := context.Background()
	src := NewMemSource()

	first := &tag{Label: "one"}
	second := &tag{Label: "two"}
	require.NoError(t, src.Insert(ctx, first))
	require.NoError(t, src.Insert(ctx, second))
	assert.Equal(t, int64(1), first.PrimaryKey())
	assert.Equal(t, int64(2), second.PrimaryKey())

	got, err := src.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "one", got.(*tag).Label)

	first.Label = "renamed"
	require.NoError(t, src.Update(ctx, first))
	got, err = src.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.(*tag).Label)

	all, err := src.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].PrimaryKey())
	assert.Equal(t, int64(2), all[1].PrimaryKey())

	require.NoError(t, src.Delete(ctx, 1))
	_, err = src.Get(ctx, 1)
	assert.True(t, store.IsNotFoundError(err))
	assert.Error(t, src.Delete(ctx, 1))
	assert.Error(t, src.Update(ctx, first))
}

func TestMemSourceReplaceSet(t *testing.T) {
	ctx := context.Background()
	src := NewMemSource()

	parent := &book{Title: "T"}
	require.NoError(t, src.Insert(ctx, parent))

	members := []Record{&tag{PK: PK{ID: 5}, Label: "a"}, &tag{PK: PK{ID: 6}, Label: "b"}}
	require.NoError(t, src.ReplaceSet(ctx, parent, "Tags", members))
	require.Len(t, parent.Tags, 2)

	require.NoError(t, src.ReplaceSet(ctx, parent, "Tags", nil))
	assert.Empty(t, parent.Tags)

	assert.Error(t, src.ReplaceSet(ctx, &book{PK: PK{ID: 99}}, "Tags", nil))
	assert.Error(t, src.ReplaceSet(ctx, parent, "NoSuchField", nil))
}
