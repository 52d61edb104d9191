package statetree

import (
	"context"

	"github.com/drblury/statetree/feed"
	runtimepkg "github.com/drblury/statetree/internal/runtime"
	ce "github.com/drblury/statetree/internal/runtime/cloudevents"
	configpkg "github.com/drblury/statetree/internal/runtime/config"
	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	"github.com/drblury/statetree/internal/runtime/feedfactory"
	idspkg "github.com/drblury/statetree/internal/runtime/ids"
	"github.com/drblury/statetree/internal/runtime/jsonapi"
	jsoncodec "github.com/drblury/statetree/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/statetree/internal/runtime/logging"
	metadatapkg "github.com/drblury/statetree/internal/runtime/metadata"
	"github.com/drblury/statetree/internal/runtime/operation"
	"github.com/drblury/statetree/internal/runtime/schema"
	"github.com/drblury/statetree/internal/runtime/serializer"
	"github.com/drblury/statetree/store/memory"
)

type (
	Config       = configpkg.Config
	StateTree    = runtimepkg.StateTree
	Dependencies = runtimepkg.Dependencies

	// Snapshot and request records
	Snapshot      = runtimepkg.Snapshot
	Delta         = runtimepkg.Delta
	Request       = runtimepkg.Request
	RequestID     = runtimepkg.RequestID
	RequestError  = runtimepkg.RequestError
	Task          = runtimepkg.Task
	Handle        = runtimepkg.Handle
	RequestLedger = runtimepkg.RequestLedger

	ChangeObserver         = runtimepkg.ChangeObserver
	UnhandledErrorObserver = runtimepkg.UnhandledErrorObserver

	// Operations and queries
	RecordsQuery             = runtimepkg.RecordsQuery
	RecordStore              = operation.Store
	Operation                = operation.Operation
	Op                       = operation.Op
	Query                    = operation.Query
	QueryTerm                = operation.QueryTerm
	Filter                   = operation.Filter
	FilterOp                 = operation.FilterOp
	Sort                     = operation.Sort
	SortOrder                = operation.SortOrder
	Page                     = operation.Page
	RecordError              = operation.RecordError
	InvalidRelationshipError = runtimepkg.InvalidRelationshipError
	ErrorClassifier          = runtimepkg.ErrorClassifier

	// Schema
	Schema            = schema.Schema
	SchemaAdapter     = schema.Adapter
	Model             = schema.Model
	Attribute         = schema.Attribute
	Relationship      = schema.Relationship
	RelationshipKind  = schema.Kind
	Serializer        = serializer.Serializer
	MemoryStore       = memory.Store
	MemoryStoreOption = memory.Option

	// JSON:API documents
	Document = jsonapi.Document
	Resource = jsonapi.Resource
	Identity = jsonapi.Identity
	Linkage  = jsonapi.Relationship
	Entities = jsonapi.Entities

	// Request lifecycle hooks
	RequestContext = runtimepkg.RequestContext
	RequestHooks   = runtimepkg.RequestHooks

	// Request metrics
	RequestMetrics         = runtimepkg.RequestMetrics
	OperationMetrics       = runtimepkg.OperationMetrics
	RequestMetricsSnapshot = runtimepkg.RequestMetricsSnapshot
	LatencyMetrics         = runtimepkg.LatencyMetrics

	// Change feed
	ChangeFeed      = runtimepkg.ChangeFeed
	ChangeEventData = runtimepkg.ChangeEventData
	Event           = ce.Event
	FeedTransport   = feed.Transport
	FeedBuilder     = feed.Builder
	FeedConfig      = feed.Config
	FeedRegistry    = feed.Registry
	FeedFactory     = feedfactory.Factory
	FeedFactoryFunc = feedfactory.FactoryFunc

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError
)

var (
	NewStateTree    = runtimepkg.NewStateTree
	TryNewStateTree = runtimepkg.TryNewStateTree
	ValidateConfig  = configpkg.ValidateConfig

	// Pure state functions
	Merge         = runtimepkg.Merge
	SelectRecord  = runtimepkg.SelectRecord
	SelectRequest = runtimepkg.SelectRequest
	Normalize     = jsonapi.Normalize
	Denormalize   = jsonapi.Denormalize
	IDsByType     = jsonapi.IDsByType

	// Schema
	NewSchema     = schema.New
	MustNewSchema = schema.MustNew
	ParseSchema   = schema.Parse
	LoadSchema    = schema.Load
	NewSerializer = serializer.New
	Augment       = serializer.Augment

	// In-memory record store
	NewMemoryStore     = memory.New
	WithStoreLogger    = memory.WithLogger
	WithStoreLatency   = memory.WithLatency
	WithInitialRecords = memory.WithRecords

	// Query builders
	FindRecord         = operation.FindRecord
	FindRecords        = operation.FindRecords
	FindRelatedRecord  = operation.FindRelatedRecord
	FindRelatedRecords = operation.FindRelatedRecords

	// Domain errors
	RecordNotFound         = operation.RecordNotFound
	RelatedRecordNotFound  = operation.RelatedRecordNotFound
	ModelNotFound          = operation.ModelNotFound
	DefaultErrorClassifier = runtimepkg.DefaultErrorClassifier

	// JSON:API helpers
	SingleDocument     = jsonapi.Single
	CollectionDocument = jsonapi.Collection
	EmptyDocument      = jsonapi.Empty
	DecodeDocument     = jsonapi.DecodeDocument
	ToOne              = jsonapi.ToOne
	ToMany             = jsonapi.ToMany
	MergeResource      = jsonapi.MergeResource

	// Request lifecycle hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	NewRequestMetrics = runtimepkg.NewRequestMetrics

	// Change feed
	NewChangeFeed         = runtimepkg.NewChangeFeed
	NewCloudEvent         = ce.New
	EncodeCloudEvent      = ce.Encode
	DecodeCloudEvent      = ce.Decode
	DefaultFeedRegistry   = feed.DefaultRegistry
	RegisterFeedTransport = feed.Register
	BuildFeedTransport    = feed.Build
	DefaultFeedFactory    = feedfactory.DefaultFactory
	RegistryFeedFactory   = feedfactory.RegistryFactory

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrStoreRequired       = errspkg.ErrStoreRequired
	ErrSchemaRequired      = errspkg.ErrSchemaRequired
	ErrUnknownType         = errspkg.ErrUnknownType
	ErrInvalidRelationship = errspkg.ErrInvalidRelationship
	ErrInvalidQuery        = errspkg.ErrInvalidQuery
	ErrPublisherRequired   = errspkg.ErrPublisherRequired
	ErrTopicRequired       = errspkg.ErrTopicRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Relationship cardinalities.
const (
	HasOne  = schema.HasOne
	HasMany = schema.HasMany
)

// Filter operators and sort orders for FindRecords.
const (
	Equal            = operation.Equal
	GreaterThan      = operation.GreaterThan
	GreaterThanEqual = operation.GreaterThanEqual
	LessThan         = operation.LessThan
	LessThanEqual    = operation.LessThanEqual

	Ascending  = operation.Ascending
	Descending = operation.Descending
)

// Request outcomes reported to RequestHooks.
const (
	OutcomeSucceeded = runtimepkg.OutcomeSucceeded
	OutcomeFailed    = runtimepkg.OutcomeFailed
	OutcomeUnhandled = runtimepkg.OutcomeUnhandled
)

// Change feed event types and defaults.
const (
	EventTypeRequestPending   = ce.TypeRequestPending
	EventTypeRequestCompleted = ce.TypeRequestCompleted
	EventTypeRequestFailed    = ce.TypeRequestFailed
	EventTypeRequestUnhandled = ce.TypeRequestUnhandled

	DefaultFeedTopic        = configpkg.DefaultFeedTopic
	DefaultFeedSource       = configpkg.DefaultFeedSource
	DefaultMetricsNamespace = configpkg.DefaultMetricsNamespace
)

// Metadata keys set on every change feed message.
const (
	MetadataKeyEventID     = metadatapkg.KeyEventID
	MetadataKeyEventType   = metadatapkg.KeyEventType
	MetadataKeyEventSource = metadatapkg.KeyEventSource
	MetadataKeyRequestID   = metadatapkg.KeyRequestID
)

// NewMemoryStateTree wires a StateTree to an in-memory store for models. It is
// the quickest way to a working tree in tests and prototypes.
func NewMemoryStateTree(ctx context.Context, models map[string]Model, opts ...MemoryStoreOption) (*StateTree, error) {
	s, err := schema.New(models)
	if err != nil {
		return nil, err
	}
	return runtimepkg.TryNewStateTree(ctx, nil, nil, runtimepkg.Dependencies{
		Store:  memory.New(s, opts...),
		Schema: s,
	})
}
