// Package memory provides an in-process record store for a state tree. It
// keeps inverse relationships in sync, treats relationship updates on unknown
// records as upserts and supports filtered, sorted and paged queries.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/logging"
	"github.com/drblury/statetree/internal/runtime/operation"
	"github.com/drblury/statetree/internal/runtime/schema"
)

// Store is a schema-aware in-memory implementation of operation.Store.
type Store struct {
	mu      sync.RWMutex
	schema  schema.Adapter
	records map[string]map[string]jsonapi.Resource
	order   map[string][]string
	log     logging.ServiceLogger
	latency time.Duration
}

var _ operation.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for per-operation debug output.
func WithLogger(log logging.ServiceLogger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = logging.ForComponent(log, "memory_store")
		}
	}
}

// WithLatency delays every call, simulating a remote source.
func WithLatency(d time.Duration) Option {
	return func(s *Store) {
		s.latency = d
	}
}

// WithRecords seeds the store. Inverse relationships of the seeded records
// are linked as if each record had been added in order.
func WithRecords(records ...jsonapi.Resource) Option {
	return func(s *Store) {
		for _, r := range records {
			t := newTxn(s)
			t.put(r)
		}
	}
}

// New creates an empty store for the given schema.
func New(adapter schema.Adapter, opts ...Option) *Store {
	s := &Store{
		schema:  adapter,
		records: make(map[string]map[string]jsonapi.Resource),
		order:   make(map[string][]string),
		log:     logging.NewNopServiceLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len reports how many records of typ are stored.
func (s *Store) Len(typ string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[typ])
}

// Update applies a mutation. Successful mutations return the affected record
// as primary data and every record touched through an inverse relationship
// as included data; removals return the null document.
func (s *Store) Update(ctx context.Context, op operation.Operation) (jsonapi.Document, error) {
	if err := s.wait(ctx); err != nil {
		return jsonapi.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := logging.LogFields{logging.FieldOperation: string(op.Op), "record": op.Identity().String()}
	s.log.Debug("Applying operation", fields)

	doc, err := s.apply(op)
	if err != nil {
		s.log.Debug("Operation rejected", logging.LogFields{logging.FieldOperation: string(op.Op), "error": err.Error()})
		return jsonapi.Document{}, err
	}
	return doc, nil
}

func (s *Store) apply(op operation.Operation) (jsonapi.Document, error) {
	t := newTxn(s)
	target := op.Identity()

	if !s.schema.HasModel(target.Type) {
		return jsonapi.Document{}, operation.ModelNotFound(target.Type)
	}

	switch op.Op {
	case operation.AddRecord:
		record := op.Record
		if record.ID == "" {
			record.ID = s.schema.GenerateID(record.Type)
		}
		return t.result(t.put(record)), nil

	case operation.ReplaceRecord:
		record := op.Record
		if current, ok := s.get(record.Identity()); ok {
			record = jsonapi.MergeResource(current, record)
		}
		return t.result(t.put(record)), nil

	case operation.RemoveRecord:
		if _, ok := s.get(target); !ok {
			return jsonapi.Document{}, operation.RecordNotFound(target.Type, target.ID)
		}
		t.remove(target)
		return jsonapi.Document{Included: t.touchedResources()}, nil

	case operation.ReplaceKey:
		current, ok := s.get(target)
		if !ok {
			return jsonapi.Document{}, operation.RecordNotFound(target.Type, target.ID)
		}
		value, _ := op.Value.(string)
		current = current.Clone()
		if current.Keys == nil {
			current.Keys = map[string]string{}
		}
		current.Keys[op.Name] = value
		s.set(current)
		return t.result(target), nil

	case operation.ReplaceAttribute:
		current, ok := s.get(target)
		if !ok {
			return jsonapi.Document{}, operation.RecordNotFound(target.Type, target.ID)
		}
		current = current.Clone()
		if current.Attributes == nil {
			current.Attributes = map[string]any{}
		}
		current.Attributes[op.Name] = op.Value
		s.set(current)
		return t.result(target), nil

	case operation.AddToRelatedRecords:
		if op.Related == nil {
			return jsonapi.Document{}, fmt.Errorf("memory: %s requires a related record", op.Op)
		}
		t.addToRelated(target, op.Relationship, *op.Related)
		return t.result(target), nil

	case operation.RemoveFromRelatedRecords:
		if op.Related == nil {
			return jsonapi.Document{}, fmt.Errorf("memory: %s requires a related record", op.Op)
		}
		t.removeFromRelated(target, op.Relationship, *op.Related)
		return t.result(target), nil

	case operation.ReplaceRelatedRecords:
		t.replaceRelatedRecords(target, op.Relationship, op.RelatedSet)
		return t.result(target), nil

	case operation.ReplaceRelatedRecord:
		t.replaceRelatedRecord(target, op.Relationship, op.Related)
		return t.result(target), nil

	default:
		return jsonapi.Document{}, fmt.Errorf("memory: unsupported operation %q", op.Op)
	}
}

// Query evaluates a query expression against the stored records.
func (s *Store) Query(ctx context.Context, q operation.Query) (jsonapi.Document, error) {
	if err := s.wait(ctx); err != nil {
		return jsonapi.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.log.Debug("Evaluating query", logging.LogFields{"expression": string(q.Expr)})

	switch q.Expr {
	case operation.FindRecordExpr:
		r, ok := s.get(q.Target)
		if !ok {
			return jsonapi.Document{}, operation.RecordNotFound(q.Target.Type, q.Target.ID)
		}
		return jsonapi.Single(r.Clone()), nil

	case operation.FindRecordsExpr:
		if !s.schema.HasModel(q.Type) {
			return jsonapi.Document{}, operation.ModelNotFound(q.Type)
		}
		return jsonapi.Collection(s.findRecords(q)...), nil

	case operation.FindRelatedRecordExpr:
		owner, ok := s.get(q.Target)
		if !ok {
			return jsonapi.Document{}, operation.RecordNotFound(q.Target.Type, q.Target.ID)
		}
		rel := owner.Relationships[q.Relationship]
		if rel.Many || rel.One == nil {
			return jsonapi.Empty(), nil
		}
		return jsonapi.Single(s.resolve(*rel.One)), nil

	case operation.FindRelatedRecordsExpr:
		owner, ok := s.get(q.Target)
		if !ok {
			return jsonapi.Document{}, operation.RecordNotFound(q.Target.Type, q.Target.ID)
		}
		rel := owner.Relationships[q.Relationship]
		related := make([]jsonapi.Resource, 0, len(rel.Members))
		for _, member := range rel.Members {
			related = append(related, s.resolve(member))
		}
		return jsonapi.Collection(related...), nil

	default:
		return jsonapi.Document{}, fmt.Errorf("memory: unsupported query %q", q.Expr)
	}
}

func (s *Store) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Store) get(id jsonapi.Identity) (jsonapi.Resource, bool) {
	r, ok := s.records[id.Type][id.ID]
	return r, ok
}

func (s *Store) set(r jsonapi.Resource) {
	byID, ok := s.records[r.Type]
	if !ok {
		byID = make(map[string]jsonapi.Resource)
		s.records[r.Type] = byID
	}
	if _, exists := byID[r.ID]; !exists {
		s.order[r.Type] = append(s.order[r.Type], r.ID)
	}
	byID[r.ID] = r
}

func (s *Store) delete(id jsonapi.Identity) {
	delete(s.records[id.Type], id.ID)
	ids := s.order[id.Type]
	for i, existing := range ids {
		if existing == id.ID {
			s.order[id.Type] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// resolve returns a copy of the stored record, or its bare identity when the
// record is unknown.
func (s *Store) resolve(id jsonapi.Identity) jsonapi.Resource {
	if r, ok := s.get(id); ok {
		return r.Clone()
	}
	return jsonapi.Resource{Type: id.Type, ID: id.ID}
}
