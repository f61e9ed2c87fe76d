package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeOmitsHiddenFieldsAndNilReferences(t *testing.T) {
	_, books := registerBookModels(t)

	out := books.Serialize(&book{PK: PK{ID: 5}, AccountID: 3, Title: "Bare"})

	assert.Equal(t, int64(5), out["id"])
	assert.Equal(t, "Bare", out["title"])
	assert.NotContains(t, out, "account_id")
	assert.Nil(t, out["author"])
	assert.Equal(t, []any{}, out["tags"])
}

func TestSerializeRecursesThroughGraph(t *testing.T) {
	_, books := registerBookModels(t)
	saved := createBook(t, books)

	out := books.Serialize(saved)

	author, ok := out["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "George Eliot", author["name"])
	assert.Equal(t, saved.Author.PrimaryKey(), author["id"])

	tags, ok := out["tags"].([]any)
	require.True(t, ok)
	require.Len(t, tags, 2)
	assert.Equal(t, "novel", tags[0].(map[string]any)["label"])

	chapters, ok := out["chapters"].([]any)
	require.True(t, ok)
	require.Len(t, chapters, 1)
}

func TestSerializeOverrideReplacesDefaultRendering(t *testing.T) {
	registry := NewRegistry()
	books, err := registry.Register(Model{
		Name:      "book",
		Prototype: &book{},
		Source:    NewMemSource(),
		Overrides: map[string]FieldOverride{
			"author": {
				Serialize: func(rec Record) any { return rec.(*author).Name },
			},
		},
	})
	require.NoError(t, err)
	for name, proto := range map[string]Record{"author": &author{}, "tag": &tag{}, "chapter": &chapter{}} {
		_, err := registry.Register(Model{Name: name, Prototype: proto, Source: NewMemSource()})
		require.NoError(t, err)
	}

	out := books.Serialize(&book{
		PK:     PK{ID: 1},
		Title:  "T",
		Author: &author{PK: PK{ID: 2}, Name: "George Eliot"},
	})
	assert.Equal(t, "George Eliot", out["author"])
}
