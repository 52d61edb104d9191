// Package statetree keeps an immutable, normalized mirror of a JSON:API record
// store. Every mutation or query sent through a StateTree opens a request
// record, runs against the store asynchronously and folds the JSON:API
// response into a new Snapshot with an additive field-level merge. Callers
// observe snapshots through OnChange, read records back with the pure
// SelectRecord and SelectRequest selectors, and wait on the returned Handle
// when they need the outcome of a single operation.
//
// A minimal setup is a schema, a record store and a tree:
//
//	tree, err := statetree.NewMemoryStateTree(ctx, models)
//	h, err := tree.AddRecord(ctx, "planet", map[string]any{"id": "earth", "name": "Earth"})
//	req, err := h.Wait(ctx)
//	earth, ok := statetree.SelectRecord(tree.Snapshot(), "planet", "earth")
//
// # Errors
//
// Domain failures reported by the store, such as RecordNotFound, complete the
// request with a populated Error field. Any other store error leaves the
// request pending and is broadcast to OnUnhandledError observers. Invalid
// relationship names or cardinalities, unknown types and invalid query
// refinements are returned synchronously before a request is opened.
//
// # Change feed
//
// Setting Config.FeedSystem to "channel", "kafka", "rabbitmq", "nats", "http"
// or "aws" publishes every committed change as a CloudEvents JSON envelope on
// Config.FeedTopic. Dependencies.FeedPublisher accepts any Watermill
// publisher instead.
//
// # Observability
//
// Config.MetricsEnabled registers Prometheus collectors for request counts,
// durations, in-flight requests and emissions. Every dispatched operation is
// traced as an OpenTelemetry span. RequestHooks adds custom callbacks around
// the request lifecycle, and InspectHandler serves a read-only JSON view of
// the current snapshot.
package statetree
