package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodePayload mirrors the production deserializer so numeric values arrive
// as json.Number, exactly as they would off the wire.
func decodePayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	payload := map[string]any{}
	require.NoError(t, dec.Decode(&payload))
	return payload
}

func TestFormCreatesNestedGraph(t *testing.T) {
	ctx := context.Background()
	registry, books := registerBookModels(t)

	tags, _ := registry.Schema("tag")
	existingTag := &tag{Label: "classics"}
	require.NoError(t, tags.Source.Insert(ctx, existingTag))

	payload := decodePayload(t, `{
		"title": "Middlemarch",
		"pages": 880,
		"author": {"name": "George Eliot"},
		"tags": [{"label": "novel"}, `+jsonID(existingTag.PrimaryKey())+`],
		"chapters": [{"title": "Miss Brooke"}, {"title": "Old and Young"}]
	}`)

	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.Nil(t, summary)

	rec, err := form.Save(ctx)
	require.NoError(t, err)

	saved := rec.(*book)
	assert.NotZero(t, saved.PrimaryKey())
	assert.Equal(t, "Middlemarch", saved.Title)
	assert.Equal(t, 880, saved.Pages)

	// Singular reference persisted before the parent.
	require.NotNil(t, saved.Author)
	assert.NotZero(t, saved.Author.PrimaryKey())
	assert.Equal(t, "George Eliot", saved.Author.Name)

	// Many-to-many set holds the new tag and the referenced one.
	require.Len(t, saved.Tags, 2)
	assert.Equal(t, "novel", saved.Tags[0].Label)
	assert.NotZero(t, saved.Tags[0].PrimaryKey())
	assert.Equal(t, existingTag.PrimaryKey(), saved.Tags[1].PrimaryKey())

	// Children carry the parent identifier assigned after the parent save.
	require.Len(t, saved.Chapters, 2)
	for _, ch := range saved.Chapters {
		assert.Equal(t, saved.PrimaryKey(), ch.BookID)
		assert.NotZero(t, ch.PrimaryKey())
	}
}

func TestFormResolvesExistingReferenceByID(t *testing.T) {
	ctx := context.Background()
	registry, books := registerBookModels(t)

	authors, _ := registry.Schema("author")
	eliot := &author{Name: "George Eliot"}
	require.NoError(t, authors.Source.Insert(ctx, eliot))

	payload := decodePayload(t, `{
		"title": "Silas Marner",
		"author": `+jsonID(eliot.PrimaryKey())+`,
		"tags": [],
		"chapters": []
	}`)

	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.Nil(t, summary)

	rec, err := form.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, eliot.PrimaryKey(), rec.(*book).Author.PrimaryKey())
}

func TestFormRejectsUnknownReference(t *testing.T) {
	ctx := context.Background()
	_, books := registerBookModels(t)

	payload := decodePayload(t, `{
		"title": "Ghost Book",
		"author": 99,
		"tags": [],
		"chapters": []
	}`)

	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, []string{"Invalid id specified: 99"}, summary.FieldErrors["author"])
}

func TestFormValidationFailures(t *testing.T) {
	ctx := context.Background()
	_, books := registerBookModels(t)

	cases := []struct {
		name    string
		payload string
		field   string
		want    any
	}{
		{
			name:    "missing required scalar",
			payload: `{"author": {"name": "A"}, "tags": [], "chapters": []}`,
			field:   "title",
			want:    []string{"This field is required."},
		},
		{
			name:    "wrong scalar type",
			payload: `{"title": "T", "pages": "many", "author": {"name": "A"}, "tags": [], "chapters": []}`,
			field:   "pages",
			want:    []string{"Received invalid data type."},
		},
		{
			name:    "non-array plural",
			payload: `{"title": "T", "author": {"name": "A"}, "tags": "novel", "chapters": []}`,
			field:   "tags",
			want:    []string{"Received non-array in JSON where we expected an array."},
		},
		{
			name:    "absent plural",
			payload: `{"title": "T", "author": {"name": "A"}, "chapters": []}`,
			field:   "tags",
			want:    []string{"Received non-array in JSON where we expected an array."},
		},
		{
			name:    "wrong singular type",
			payload: `{"title": "T", "author": true, "tags": [], "chapters": []}`,
			field:   "author",
			want:    []string{"Received invalid data type."},
		},
		{
			name:    "missing singular",
			payload: `{"title": "T", "tags": [], "chapters": []}`,
			field:   "author",
			want:    []string{"This field is required."},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := NewForm(books, decodePayload(t, tc.payload), ModeCreate, nil)
			summary, err := form.Validate(ctx)
			require.NoError(t, err)
			require.NotNil(t, summary)
			assert.Equal(t, tc.want, summary.FieldErrors[tc.field])
		})
	}
}

func TestFormNestedFailureSurfacesUnderField(t *testing.T) {
	ctx := context.Background()
	_, books := registerBookModels(t)

	payload := decodePayload(t, `{
		"title": "T",
		"author": {},
		"tags": [],
		"chapters": []
	}`)

	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)

	nested, ok := summary.FieldErrors["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"This field is required."}, nested["name"])
}

func TestFormIndexedErrorsKeepPositions(t *testing.T) {
	ctx := context.Background()
	_, books := registerBookModels(t)

	payload := decodePayload(t, `{
		"title": "T",
		"author": {"name": "A"},
		"tags": [{"label": "ok"}, {}, 42],
		"chapters": []
	}`)

	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)

	indexed, ok := summary.FieldErrors["tags"].([]IndexedError)
	require.True(t, ok)
	require.Len(t, indexed, 2)

	assert.Equal(t, 1, indexed[0].Index)
	nested, ok := indexed[0].Errors.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"This field is required."}, nested["label"])

	assert.Equal(t, 2, indexed[1].Index)
	assert.Equal(t, []string{"Invalid id specified: 42"}, indexed[1].Errors)
}

func TestFormPatchLeavesUntouchedFieldsAlone(t *testing.T) {
	ctx := context.Background()
	_, books := registerBookModels(t)

	existing := createBook(t, books)
	originalTitle := existing.Title
	originalTags := len(existing.Tags)

	form := NewForm(books, decodePayload(t, `{"pages": 200}`), ModePatch, existing)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.Nil(t, summary)

	rec, err := form.Save(ctx)
	require.NoError(t, err)

	patched := rec.(*book)
	assert.Equal(t, 200, patched.Pages)
	assert.Equal(t, originalTitle, patched.Title)
	assert.Len(t, patched.Tags, originalTags)
	assert.NotNil(t, patched.Author)
}

func TestFormPatchReplacesManyToManyWholesale(t *testing.T) {
	ctx := context.Background()
	registry, books := registerBookModels(t)

	existing := createBook(t, books)
	require.Len(t, existing.Tags, 2)

	tags, _ := registry.Schema("tag")
	replacement := &tag{Label: "only"}
	require.NoError(t, tags.Source.Insert(ctx, replacement))

	form := NewForm(books, decodePayload(t, `{"tags": [`+jsonID(replacement.PrimaryKey())+`]}`), ModePatch, existing)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.Nil(t, summary)

	rec, err := form.Save(ctx)
	require.NoError(t, err)

	patched := rec.(*book)
	require.Len(t, patched.Tags, 1)
	assert.Equal(t, replacement.PrimaryKey(), patched.Tags[0].PrimaryKey())

	stored, err := books.Source.Get(ctx, patched.PrimaryKey())
	require.NoError(t, err)
	assert.Len(t, stored.(*book).Tags, 1)
}

func TestFormReplaceZeroesAbsentOptionalScalars(t *testing.T) {
	ctx := context.Background()
	_, books := registerBookModels(t)

	existing := createBook(t, books)
	require.NotZero(t, existing.Pages)

	payload := decodePayload(t, `{
		"title": "Renamed",
		"author": `+jsonID(existing.Author.PrimaryKey())+`,
		"tags": [],
		"chapters": []
	}`)

	form := NewForm(books, payload, ModeReplace, existing)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.Nil(t, summary)

	rec, err := form.Save(ctx)
	require.NoError(t, err)

	replaced := rec.(*book)
	assert.Equal(t, "Renamed", replaced.Title)
	assert.Zero(t, replaced.Pages)
	assert.Empty(t, replaced.Tags)
}

func TestFormAssignForcesServerControlledFields(t *testing.T) {
	ctx := context.Background()
	_, books := registerBookModels(t)

	payload := decodePayload(t, `{
		"title": "Owned",
		"author": {"name": "A"},
		"tags": [],
		"chapters": []
	}`)

	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.Nil(t, summary)

	form.Assign("AccountID", int64(7))
	rec, err := form.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.(*book).AccountID)
}

func TestFormSaveRequiresValidation(t *testing.T) {
	_, books := registerBookModels(t)
	form := NewForm(books, map[string]any{}, ModeCreate, nil)
	_, err := form.Save(context.Background())
	assert.Error(t, err)
}

func TestFormCustomValidatorAddsFailures(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()

	books, err := registry.Register(Model{
		Name:      "book",
		Prototype: &book{},
		Source:    NewMemSource(),
		Overrides: map[string]FieldOverride{
			"author": {
				Validate: func(payload map[string]any) *ErrorSummary {
					if name, _ := payload["name"].(string); name == "Anonymous" {
						s := &ErrorSummary{}
						s.AddFieldError("name", "Anonymous authors are not accepted.")
						return s
					}
					return nil
				},
			},
		},
	})
	require.NoError(t, err)
	for name, proto := range map[string]Record{"author": &author{}, "tag": &tag{}, "chapter": &chapter{}} {
		_, err := registry.Register(Model{Name: name, Prototype: proto, Source: NewMemSource()})
		require.NoError(t, err)
	}

	payload := decodePayload(t, `{
		"title": "T",
		"author": {"name": "Anonymous"},
		"tags": [],
		"chapters": []
	}`)

	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)

	nested, ok := summary.FieldErrors["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"Anonymous authors are not accepted."}, nested["name"])
}

// createBook persists a full graph and returns the saved parent.
func createBook(t *testing.T, books *Schema) *book {
	t.Helper()
	payload := decodePayload(t, `{
		"title": "Middlemarch",
		"pages": 880,
		"author": {"name": "George Eliot"},
		"tags": [{"label": "novel"}, {"label": "classics"}],
		"chapters": [{"title": "Miss Brooke"}]
	}`)
	form := NewForm(books, payload, ModeCreate, nil)
	summary, err := form.Validate(context.Background())
	require.NoError(t, err)
	require.Nil(t, summary)
	rec, err := form.Save(context.Background())
	require.NoError(t, err)
	return rec.(*book)
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
