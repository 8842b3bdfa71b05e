package outagewire

import (
	runtimepkg "github.com/electsolve/outagewire/internal/runtime"
	codecpkg "github.com/electsolve/outagewire/internal/runtime/codec"
	configpkg "github.com/electsolve/outagewire/internal/runtime/config"
	deliverypkg "github.com/electsolve/outagewire/internal/runtime/delivery"
	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	exchangepkg "github.com/electsolve/outagewire/internal/runtime/exchange"
	idspkg "github.com/electsolve/outagewire/internal/runtime/ids"
	jsoncodec "github.com/electsolve/outagewire/internal/runtime/jsoncodec"
	loggingpkg "github.com/electsolve/outagewire/internal/runtime/logging"
	metadatapkg "github.com/electsolve/outagewire/internal/runtime/metadata"
	"github.com/electsolve/outagewire/internal/runtime/outage"
	transportpkg "github.com/electsolve/outagewire/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Producer            = runtimepkg.Producer

	SubscriberRegistration = runtimepkg.SubscriberRegistration
	SubscriberInfo         = runtimepkg.SubscriberInfo
	SubscriberStats        = runtimepkg.SubscriberStats
	Metrics                = runtimepkg.Metrics

	// Delivery
	Handler         = deliverypkg.Handler
	Hooks           = deliverypkg.Hooks
	DeliveryContext = deliverypkg.DeliveryContext
	DeliveryLoop    = deliverypkg.Loop

	// Exchange
	Exchange     = exchangepkg.Exchange
	Channel      = exchangepkg.Channel
	Subscription = exchangepkg.Subscription
	Delivery     = exchangepkg.Delivery
	Message      = exchangepkg.Message

	// Record schema
	Batch       = outage.Batch
	Event       = outage.Event
	Extension   = outage.Extension
	MapLocation = outage.MapLocation
	GPSLocation = outage.GPSLocation
	ObjectRef   = outage.ObjectRef
	RawDocument = outage.RawDocument
	Verb        = outage.Verb
	Status      = outage.Status
	Phase       = outage.Phase
	ExtType     = outage.ExtType

	// Codecs
	Codec          = codecpkg.Codec
	CodecRegistry  = codecpkg.Registry
	XMLCodec       = codecpkg.XML
	JSONCodec      = codecpkg.JSON
	ProtowireCodec = codecpkg.Protowire

	// Metadata
	Metadata      = metadatapkg.Carrier
	MetadataEntry = metadatapkg.Entry
	MetadataValue = metadatapkg.Value
	MetadataKind  = metadatapkg.Kind

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	SchemaViolationError      = errspkg.SchemaViolationError
	TransportUnavailableError = errspkg.TransportUnavailableError
	HandlerFailureError       = errspkg.HandlerFailureError
	ConfigValidationError     = errspkg.ConfigValidationError

	// Transports
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewService      = runtimepkg.NewService
	TryNewService   = runtimepkg.TryNewService
	DefaultConfig   = configpkg.Default
	ConfigFromEnv   = configpkg.FromEnv
	ValidateConfig  = configpkg.ValidateConfig
	NewMetrics      = runtimepkg.NewMetrics
	NewBatchMessage = runtimepkg.NewBatchMessage

	RegisterSubscriber = runtimepkg.RegisterSubscriber

	LoggingHooks = deliverypkg.LoggingHooks
	MetricsHooks = deliverypkg.MetricsHooks

	NewExchange = exchangepkg.New
	NewMessage  = exchangepkg.NewMessage
	QueueName   = exchangepkg.QueueName

	DefaultCodecs    = codecpkg.DefaultRegistry
	NewCodecRegistry = codecpkg.NewRegistry

	ParseVerb    = outage.ParseVerb
	ParseStatus  = outage.ParseStatus
	ParsePhase   = outage.ParsePhase
	ParseExtType = outage.ParseExtType

	NewMetadata = metadatapkg.New
	TextValue   = metadatapkg.Text
	BoolValue   = metadatapkg.Bool
	IntValue    = metadatapkg.Int
	Int8Value   = metadatapkg.Int8
	FloatValue  = metadatapkg.Float
	BytesValue  = metadatapkg.Bytes
	ParseKind   = metadatapkg.ParseKind

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrSchemaViolation       = errspkg.ErrSchemaViolation
	ErrTransportUnavailable  = errspkg.ErrTransportUnavailable
	ErrHandlerFailure        = errspkg.ErrHandlerFailure
	ErrServiceRequired       = errspkg.ErrServiceRequired
	ErrServiceStarted        = errspkg.ErrServiceStarted
	ErrHandlerRequired       = errspkg.ErrHandlerRequired
	ErrCodecRequired         = errspkg.ErrCodecRequired
	ErrConfigRequired        = errspkg.ErrConfigRequired
	ErrLoggerRequired        = errspkg.ErrLoggerRequired
	ErrSubscriberIDRequired  = errspkg.ErrSubscriberIDRequired
	ErrSubscriptionClosed    = errspkg.ErrSubscriptionClosed
	ErrUnknownCodec          = errspkg.ErrUnknownCodec
	ErrDuplicateSubscriberID = errspkg.ErrDuplicateSubscriberID

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewTextServiceLogger = loggingpkg.NewTextServiceLogger
	NewNopServiceLogger  = loggingpkg.NewNopServiceLogger

	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build

	CreateULID       = idspkg.CreateULID
	NewCorrelationID = idspkg.NewCorrelationID
)

// Standard metadata keys stamped on every published batch.
const (
	MetadataKeyObjectType    = metadatapkg.KeyObjectType
	MetadataKeySchemaVersion = metadatapkg.KeySchemaVersion
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyContentType   = metadatapkg.KeyContentType

	// ObjectType is the ObjectType metadata value of an outage batch.
	ObjectType = outage.ObjectType

	// EnvPrefix prefixes every variable read by ConfigFromEnv.
	EnvPrefix = configpkg.EnvPrefix
)

const (
	VerbCreate = outage.VerbCreate
	VerbUpdate = outage.VerbUpdate
	VerbDelete = outage.VerbDelete

	StatusUnconfirmed       = outage.StatusUnconfirmed
	StatusConfirmed         = outage.StatusConfirmed
	StatusAssigned          = outage.StatusAssigned
	StatusDispatched        = outage.StatusDispatched
	StatusActive            = outage.StatusActive
	StatusPartiallyRestored = outage.StatusPartiallyRestored
	StatusRestored          = outage.StatusRestored
	StatusCanceled          = outage.StatusCanceled
	StatusClosed            = outage.StatusClosed
)

func Some[T any](v T) outage.Optional[T] {
	return outage.Some(v)
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
