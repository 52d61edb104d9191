package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drblury/statetree/internal/runtime/jsonapi"
	loggingpkg "github.com/drblury/statetree/internal/runtime/logging"
	"github.com/drblury/statetree/internal/runtime/operation"
	"github.com/drblury/statetree/internal/runtime/schema"
	"github.com/drblury/statetree/store/memory"
)

func planetSchema() *schema.Schema {
	return schema.MustNew(map[string]schema.Model{
		"planet": {
			Attributes: map[string]schema.Attribute{
				"name":           {Type: "string"},
				"classification": {Type: "string"},
				"order":          {Type: "number"},
			},
			Relationships: map[string]schema.Relationship{
				"moons": {Kind: schema.HasMany, Model: "moon", Inverse: "planet"},
				"sun":   {Kind: schema.HasOne, Model: "star", Inverse: "planets"},
			},
		},
		"moon": {
			Attributes: map[string]schema.Attribute{"name": {Type: "string"}},
			Relationships: map[string]schema.Relationship{
				"planet": {Kind: schema.HasOne, Model: "planet", Inverse: "moons"},
			},
		},
		"star": {
			Relationships: map[string]schema.Relationship{
				"planets": {Kind: schema.HasMany, Model: "planet", Inverse: "sun"},
			},
		},
	})
}

func newTestTree(t *testing.T, deps Dependencies) *StateTree {
	t.Helper()
	if deps.Schema == nil {
		deps.Schema = planetSchema()
	}
	if deps.Store == nil {
		deps.Store = memory.New(deps.Schema)
	}
	tree, err := TryNewStateTree(context.Background(), nil, nil, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func wait(t *testing.T, h Handle) Request {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := h.Wait(ctx)
	require.NoError(t, err)
	return req
}

// must fails the test when a façade call returns a precondition error.
func must(t *testing.T) func(Handle, error) Handle {
	return func(h Handle, err error) Handle {
		t.Helper()
		require.NoError(t, err)
		return h
	}
}

// funcStore delegates to the configured functions.
type funcStore struct {
	update func(ctx context.Context, op operation.Operation) (jsonapi.Document, error)
	query  func(ctx context.Context, q operation.Query) (jsonapi.Document, error)
}

func (s *funcStore) Update(ctx context.Context, op operation.Operation) (jsonapi.Document, error) {
	return s.update(ctx, op)
}

func (s *funcStore) Query(ctx context.Context, q operation.Query) (jsonapi.Document, error) {
	return s.query(ctx, q)
}

// gateStore blocks every call until release is closed.
type gateStore struct {
	operation.Store
	release chan struct{}
}

func (s *gateStore) Update(ctx context.Context, op operation.Operation) (jsonapi.Document, error) {
	<-s.release
	return s.Store.Update(ctx, op)
}

func (s *gateStore) Query(ctx context.Context, q operation.Query) (jsonapi.Document, error) {
	<-s.release
	return s.Store.Query(ctx, q)
}

type loggedEntry struct {
	level  string
	msg    string
	fields loggingpkg.LogFields
	err    error
}

type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]loggedEntry
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]loggedEntry{}}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, loggedEntry{level: level, msg: msg, fields: merged, err: err})
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{mu: l.mu, entries: l.entries, fields: merged}
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) find(msg string) (loggedEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return loggedEntry{}, false
}

func (l *recordingLogger) findAll(msg string) []loggedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []loggedEntry
	for _, e := range *l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}
