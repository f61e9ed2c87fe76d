package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type author struct {
	PK
	Name string `json:"name" validate:"required"`
}

type tag struct {
	PK
	Label string `json:"label" validate:"required"`
}

type chapter struct {
	PK
	BookID int64  `json:"-"`
	Title  string `json:"title" validate:"required"`
}

type book struct {
	PK
	AccountID int64      `json:"-"`
	Title     string     `json:"title" validate:"required"`
	Pages     int        `json:"pages"`
	Author    *author    `json:"author" rel:"one"`
	Tags      []*tag     `json:"tags" rel:"many"`
	Chapters  []*chapter `json:"chapters" rel:"has,fk=BookID"`
}

// employee is self-referential on both sides: a singular manager reference
// and the reverse set of reports.
type employee struct {
	PK
	ManagerID int64       `json:"-"`
	Name      string      `json:"name" validate:"required"`
	Manager   *employee   `json:"manager" rel:"one"`
	Reports   []*employee `json:"reports" rel:"has,fk=ManagerID"`
}

func registerBookModels(t *testing.T) (*Registry, *Schema) {
	t.Helper()
	registry := NewRegistry()

	books, err := registry.Register(Model{
		Name:       "book",
		Prototype:  &book{},
		Source:     NewMemSource(),
		OwnerField: "AccountID",
	})
	require.NoError(t, err)

	for name, proto := range map[string]Record{
		"author":  &author{},
		"tag":     &tag{},
		"chapter": &chapter{},
	} {
		_, err := registry.Register(Model{Name: name, Prototype: proto, Source: NewMemSource()})
		require.NoError(t, err)
	}
	return registry, books
}

func TestRegisterClassifiesFields(t *testing.T) {
	_, books := registerBookModels(t)

	assert.Len(t, books.Scalars, 2)
	scalarNames := []string{books.Scalars[0].Name, books.Scalars[1].Name}
	assert.Contains(t, scalarNames, "title")
	assert.Contains(t, scalarNames, "pages")
	assert.Len(t, books.Relationships, 3)

	authorRel, ok := books.Relationship("author")
	require.True(t, ok)
	assert.Equal(t, RelSingular, authorRel.Kind)
	assert.False(t, authorRel.PostSave())

	tagsRel, ok := books.Relationship("tags")
	require.True(t, ok)
	assert.Equal(t, RelManyToMany, tagsRel.Kind)
	assert.True(t, tagsRel.PostSave())

	chaptersRel, ok := books.Relationship("chapters")
	require.True(t, ok)
	assert.Equal(t, RelHasMany, chaptersRel.Kind)
	assert.Equal(t, "BookID", chaptersRel.ForeignKey)
	assert.True(t, chaptersRel.PostSave())

	assert.Equal(t, "AccountID", books.OwnerField)
}

func TestRegisterHiddenFieldsStayOffPayloads(t *testing.T) {
	_, books := registerBookModels(t)

	for _, sf := range books.Scalars {
		assert.NotEqual(t, "AccountID", sf.GoName)
	}
}

func TestRelatedResolvesLazily(t *testing.T) {
	registry := NewRegistry()

	// Register the referencing model first; the related model arrives later.
	books, err := registry.Register(Model{
		Name:      "book",
		Prototype: &book{},
		Source:    NewMemSource(),
	})
	require.NoError(t, err)

	authorRel, ok := books.Relationship("author")
	require.True(t, ok)
	_, err = authorRel.Related()
	assert.Error(t, err)

	_, err = registry.Register(Model{Name: "author", Prototype: &author{}, Source: NewMemSource()})
	require.NoError(t, err)

	related, err := authorRel.Related()
	require.NoError(t, err)
	assert.Equal(t, "author", related.Name)
}

func TestSelfReferentialRelationsResolveToOwningSchema(t *testing.T) {
	registry := NewRegistry()
	employees, err := registry.Register(Model{
		Name:      "employee",
		Prototype: &employee{},
		Source:    NewMemSource(),
	})
	require.NoError(t, err)

	managerRel, ok := employees.Relationship("manager")
	require.True(t, ok)
	assert.Equal(t, RelSingular, managerRel.Kind)
	related, err := managerRel.Related()
	require.NoError(t, err)
	assert.Same(t, employees, related)

	reportsRel, ok := employees.Relationship("reports")
	require.True(t, ok)
	assert.Equal(t, RelHasMany, reportsRel.Kind)
	assert.Equal(t, "ManagerID", reportsRel.ForeignKey)
	related, err = reportsRel.Related()
	require.NoError(t, err)
	assert.Same(t, employees, related)
}

func TestRegisterRejectsBadModels(t *testing.T) {
	type badRelKind struct {
		PK
		Other *author `json:"other" rel:"sideways"`
	}
	type missingFK struct {
		PK
		Children []*chapter `json:"children" rel:"has"`
	}
	type wrongShape struct {
		PK
		Author author `json:"author" rel:"one"`
	}

	registry := NewRegistry()
	cases := []struct {
		name  string
		model Model
	}{
		{"unknown kind", Model{Name: "a", Prototype: &badRelKind{}, Source: NewMemSource()}},
		{"missing fk", Model{Name: "b", Prototype: &missingFK{}, Source: NewMemSource()}},
		{"non-pointer relation", Model{Name: "c", Prototype: &wrongShape{}, Source: NewMemSource()}},
		{"no source", Model{Name: "d", Prototype: &author{}}},
		{"no name", Model{Prototype: &author{}, Source: NewMemSource()}},
		{"bad owner field", Model{Name: "e", Prototype: &author{}, Source: NewMemSource(), OwnerField: "Nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := registry.Register(tc.model)
			assert.Error(t, err)
		})
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Register(Model{Name: "author", Prototype: &author{}, Source: NewMemSource()})
	require.NoError(t, err)
	_, err = registry.Register(Model{Name: "author", Prototype: &author{}, Source: NewMemSource()})
	assert.Error(t, err)
}
