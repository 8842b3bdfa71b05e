package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock config for testing
type mockConfig struct {
	pubSubSystem string
}

func (m *mockConfig) GetPubSubSystem() string              { return m.pubSubSystem }
func (m *mockConfig) GetRabbitMQURL() string               { return "" }
func (m *mockConfig) GetRabbitMQDurableExchange() bool     { return false }
func (m *mockConfig) GetRabbitMQMessageTTL() time.Duration { return 0 }
func (m *mockConfig) GetNATSURL() string                   { return "" }
func (m *mockConfig) GetKafkaBrokers() []string            { return nil }
func (m *mockConfig) GetKafkaClientID() string             { return "" }
func (m *mockConfig) GetAWSRegion() string                 { return "" }
func (m *mockConfig) GetAWSAccountID() string              { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string            { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string        { return "" }
func (m *mockConfig) GetAWSEndpoint() string               { return "" }

// Mock publisher and subscriber
type mockPublisher struct {
	closed int
	err    error
}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	return nil
}

func (m *mockPublisher) Close() error {
	m.closed++
	return m.err
}

type mockSubscriber struct {
	closed int
}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	m.closed++
	return nil
}

func mockBuilder(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	return &Transport{
		Publisher: &mockPublisher{},
		NewSubscriber: func(queue string) (message.Subscriber, error) {
			return &mockSubscriber{}, nil
		},
	}, nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg)
	assert.NotNil(t, reg.builders)
	assert.NotNil(t, reg.capabilities)
	assert.Empty(t, reg.Names())
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	reg.Register("test-transport", mockBuilder)
	assert.True(t, reg.Has("test-transport"))
	assert.Contains(t, reg.Names(), "test-transport")
}

func TestRegistry_RegisterWithCapabilities(t *testing.T) {
	reg := NewRegistry()

	caps := Capabilities{
		Name:            "test-transport",
		TypedHeaders:    true,
		SupportsDeclare: true,
	}

	reg.RegisterWithCapabilities("test-transport", mockBuilder, caps)

	assert.True(t, reg.Has("test-transport"))
	retrievedCaps := reg.GetCapabilities("test-transport")
	assert.Equal(t, "test-transport", retrievedCaps.Name)
	assert.True(t, retrievedCaps.TypedHeaders)
	assert.True(t, retrievedCaps.SupportsDeclare)
}

func TestRegistry_GetCapabilities_Unknown(t *testing.T) {
	reg := NewRegistry()
	caps := reg.GetCapabilities("unknown")
	assert.Equal(t, "unknown", caps.Name)
	assert.False(t, caps.TypedHeaders)
}

func TestRegistry_Build(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test-transport", mockBuilder)

	cfg := &mockConfig{pubSubSystem: "test-transport"}

	tr, err := reg.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)

	sub, err := tr.NewSubscriber("q")
	require.NoError(t, err)
	assert.NotNil(t, sub)
}

func TestRegistry_Build_NilConfig(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Build(context.Background(), nil, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")
}

func TestRegistry_Build_UnknownTransport(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", mockBuilder)
	reg.Register("a", mockBuilder)
	cfg := &mockConfig{pubSubSystem: "unknown-transport"}

	_, err := reg.Build(context.Background(), cfg, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
	assert.Contains(t, err.Error(), "[a b]")
}

func TestRegistry_Build_BuilderError(t *testing.T) {
	reg := NewRegistry()

	expectedErr := errors.New("builder error")
	reg.Register("failing-transport", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
		return nil, expectedErr
	})
	cfg := &mockConfig{pubSubSystem: "failing-transport"}

	_, err := reg.Build(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, expectedErr)
	assert.Contains(t, err.Error(), "build failing-transport transport")
}

func TestRegistry_Build_IncompleteTransport(t *testing.T) {
	reg := NewRegistry()
	reg.Register("half", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
		return &Transport{Publisher: &mockPublisher{}}, nil
	})

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "half"}, nil)
	assert.Error(t, err)
}

func TestRegistry_Build_PassesLogger(t *testing.T) {
	reg := NewRegistry()

	var got watermill.LoggerAdapter
	reg.Register("logged", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
		got = logger
		return mockBuilder(ctx, cfg, logger)
	})

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "logged"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, got, "a nil logger is replaced with a no-op logger")
}

func TestRegistry_Has(t *testing.T) {
	reg := NewRegistry()

	assert.False(t, reg.Has("test-transport"))

	reg.Register("test-transport", mockBuilder)
	assert.True(t, reg.Has("test-transport"))
	assert.False(t, reg.Has("other-transport"))
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry()

	assert.Empty(t, reg.Names())

	reg.Register("transport3", mockBuilder)
	reg.Register("transport1", mockBuilder)
	reg.Register("transport2", mockBuilder)

	assert.Equal(t, []string{"transport1", "transport2", "transport3"}, reg.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				reg.Register("transport", mockBuilder)
				reg.Has("transport")
				reg.Names()
				reg.GetCapabilities("transport")
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.True(t, reg.Has("transport"))
}

func TestBuildWithDefaultRegistry(t *testing.T) {
	cfg := &mockConfig{pubSubSystem: "nonexistent"}

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestPackageLevelRegisterWithCapabilities(t *testing.T) {
	caps := Capabilities{
		Name:         "test-pkg-caps-transport",
		TypedHeaders: true,
	}

	RegisterWithCapabilities("test-pkg-caps-transport", mockBuilder, caps)

	assert.True(t, DefaultRegistry.Has("test-pkg-caps-transport"))
	retrievedCaps := GetCapabilities("test-pkg-caps-transport")
	assert.Equal(t, "test-pkg-caps-transport", retrievedCaps.Name)
	assert.True(t, retrievedCaps.TypedHeaders)

	Register("test-pkg-transport", mockBuilder)
	assert.True(t, DefaultRegistry.Has("test-pkg-transport"))
}
