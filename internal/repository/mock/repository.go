package mock

import (
	"context"
	"sync"

	"github.com/penne-app/penne/internal/remote"
)

// Op identifies a recorded store call
type Op string

const (
	OpSelect Op = "select"
	OpUpsert Op = "upsert"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
	OpCall   Op = "call"
)

// Call is one recorded invocation. Name is the relation, or the RPC name for
// OpCall.
type Call struct {
	Op   Op
	Name string
	Row  remote.Record
}

// Repository wraps a real store and allows injecting errors for testing.
// Every call is recorded, including the ones that fail.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.CallErrors[remote.RPCIncrementUpvote] = errors.New("database error")
//	tracker := votes.NewTracker(mockRepo, log, votes.Options{})
//	err := tracker.ToggleUpvote(ctx, dishID, "user-1").Wait()
//	// err will now contain the injected error
type Repository struct {
	remote.Store

	// Errors returned for every call of the kind
	SelectError error
	UpsertError error
	InsertError error
	DeleteError error
	CallError   error

	// Errors keyed by relation (or RPC name for CallErrors)
	SelectErrors map[string]error
	UpsertErrors map[string]error
	InsertErrors map[string]error
	DeleteErrors map[string]error
	CallErrors   map[string]error

	// Before runs ahead of each call, outside the recording lock. Tests use it
	// to block or reorder calls.
	Before func(ctx context.Context, c Call)

	mu    sync.Mutex
	calls []Call
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real remote.Store) *Repository {
	return &Repository{
		Store:        real,
		SelectErrors: map[string]error{},
		UpsertErrors: map[string]error{},
		InsertErrors: map[string]error{},
		DeleteErrors: map[string]error{},
		CallErrors:   map[string]error{},
	}
}

func (m *Repository) record(ctx context.Context, c Call) {
	if m.Before != nil {
		m.Before(ctx, c)
	}
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Calls returns a copy of the recorded calls
func (m *Repository) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsOf returns the recorded calls of one kind
func (m *Repository) CallsOf(op Op) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls
func (m *Repository) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

func pick(all error, byName map[string]error, name string) error {
	if all != nil {
		return all
	}
	return byName[name]
}

func (m *Repository) Select(ctx context.Context, q remote.Query) ([]remote.Record, error) {
	m.record(ctx, Call{Op: OpSelect, Name: q.Relation})
	if err := pick(m.SelectError, m.SelectErrors, q.Relation); err != nil {
		return nil, err
	}
	return m.Store.Select(ctx, q)
}

func (m *Repository) Upsert(ctx context.Context, relation string, row remote.Record, conflict []string) error {
	m.record(ctx, Call{Op: OpUpsert, Name: relation, Row: row.Clone()})
	if err := pick(m.UpsertError, m.UpsertErrors, relation); err != nil {
		return err
	}
	return m.Store.Upsert(ctx, relation, row, conflict)
}

func (m *Repository) Insert(ctx context.Context, relation string, row remote.Record) (remote.Record, error) {
	m.record(ctx, Call{Op: OpInsert, Name: relation, Row: row.Clone()})
	if err := pick(m.InsertError, m.InsertErrors, relation); err != nil {
		return nil, err
	}
	return m.Store.Insert(ctx, relation, row)
}

func (m *Repository) Delete(ctx context.Context, q remote.Query) (int64, error) {
	m.record(ctx, Call{Op: OpDelete, Name: q.Relation})
	if err := pick(m.DeleteError, m.DeleteErrors, q.Relation); err != nil {
		return 0, err
	}
	return m.Store.Delete(ctx, q)
}

func (m *Repository) Call(ctx context.Context, fn string, args remote.Record) error {
	m.record(ctx, Call{Op: OpCall, Name: fn, Row: args.Clone()})
	if err := pick(m.CallError, m.CallErrors, fn); err != nil {
		return err
	}
	return m.Store.Call(ctx, fn, args)
}
