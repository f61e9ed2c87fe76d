package engine

import "context"

// Record is an addressable, typed entity with an integer primary identifier.
// Model structs implement it by embedding PK.
type Record interface {
	PrimaryKey() int64
	SetPrimaryKey(int64)
}

// PK provides the primary identifier for model structs. A zero ID marks a
// record that has not been persisted yet.
type PK struct {
	ID int64 `json:"id"`
}

// PrimaryKey implements Record.
func (p *PK) PrimaryKey() int64 { return p.ID }

// SetPrimaryKey implements Record.
func (p *PK) SetPrimaryKey(id int64) { p.ID = id }

// RecordSource is the storage boundary for one registered model. The engine
// never assumes more of the storage layer than these primitives: look up a
// record by primary key, iterate the collection, insert/update/delete a
// record, and replace a set-valued relation wholesale.
type RecordSource interface {
	// Get returns the record with the given primary key.
	// Returns store.ErrNotFound (or a wrapper) if no such record exists.
	Get(ctx context.Context, id int64) (Record, error)

	// List returns all records of the model.
	List(ctx context.Context) ([]Record, error)

	// Insert persists a new record and assigns its primary key.
	Insert(ctx context.Context, rec Record) error

	// Update persists changes to an existing record.
	// Returns store.ErrNotFound if the record does not exist.
	Update(ctx context.Context, rec Record) error

	// Delete removes the record with the given primary key.
	// Returns store.ErrNotFound if the record does not exist.
	Delete(ctx context.Context, id int64) error

	// ReplaceSet replaces the set-valued relation named by the Go field on
	// the parent with exactly the given members. Full replacement, never an
	// incremental add.
	ReplaceSet(ctx context.Context, parent Record, goField string, members []Record) error
}

// Transactor runs a unit of work atomically when the storage layer supports
// transactions. Endpoints without one execute directly; in that case phase
// ordering still holds but a failure partway through the post-save phase can
// leave the parent persisted without part of its association set.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactorFunc adapts a function to the Transactor interface.
type TransactorFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// InTransaction implements Transactor.
func (f TransactorFunc) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}
