/*
Package runtime implements the state tree: an immutable, normalized mirror of
a JSON:API record store, plus a record of every request made against it.

# Architecture Overview

A StateTree owns the current Snapshot. Every façade call (AddRecord,
FindRecords, ReplaceRelatedRecord, ...) allocates a request id, commits the
pending request and returns a Handle straight away. The store call runs on
its own goroutine; when it settles the result document is normalized and
merged into a new Snapshot, and the request completes.

# Package Structure

## StateTree (tree.go, dispatch.go, operations.go)

  - Construction from Config, a logger and Dependencies
  - Request dispatch and settlement
  - Relationship validation against the schema before any id is allocated

## Snapshots (snapshot.go, merge.go, ledger.go, selectors.go)

  - Snapshot, Request and Delta types
  - Field-level additive merge; completed requests are never overwritten
  - Pure selectors for denormalized records and requests

## Notification (notifier.go, task.go)

Observers are called in registration order from a single draining goroutine,
once per snapshot, in commit order. Tasks settle after observers have seen
the state that completed them.

## Observability (hooks.go, metrics.go, latency.go, tracing.go, inspect.go)

  - RequestHooks for start, done and unhandled error
  - Prometheus collectors and an in-process snapshot
  - One OpenTelemetry span per request
  - A read-only HTTP inspection API

## Change feed (feed.go)

Publishes every commit as a CloudEvents envelope through a Watermill
publisher built by the feed package registry.

# Sub-packages

  - cloudevents/: change event envelope
  - config/: configuration with validation
  - errors/: sentinel errors
  - feedfactory/: builds feed transports from Config
  - ids/: request counter and ULIDs
  - jsonapi/: resources, documents, normalization
  - jsoncodec/: sonic-backed JSON
  - logging/: logger interface and adapters
  - metadata/: change event message headers
  - operation/: store contract, operation and query descriptors
  - schema/: model definitions
  - serializer/: record payload to JSON:API conversion

# Usage Example

	tree := statetree.NewStateTree(ctx, nil, logger, statetree.Dependencies{
		Store:  memory.New(s),
		Schema: s,
	})

	h, err := tree.AddRecord(ctx, "planet", map[string]any{"id": "earth", "name": "Earth"})
	if err != nil {
		return err
	}
	req, err := h.Wait(ctx)
*/
package runtime
