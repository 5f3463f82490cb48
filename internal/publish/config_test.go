package publish

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaConfigDefaults(t *testing.T) {
	// Environment is clean in tests; defaults apply.
	cfg := NewKafkaConfig()

	want := &KafkaConfig{
		SecurityProtocol: "SASL_SSL",
		SASLMechanism:    "PLAIN",
		Topic:            "position-estimates",
		CompressionType:  "snappy",
		Acks:             "all",
		LingerMS:         10,
		BatchSize:        16384,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config defaults mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, cfg.Enabled(), "publisher should be disabled without brokers")
}

func TestNewKafkaConfigEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "broker-1:9092")
	t.Setenv("KAFKA_TOPIC", "estimates-test")
	t.Setenv("KAFKA_LINGER_MS", "25")
	t.Setenv("KAFKA_BATCH_SIZE", "not-a-number")

	cfg := NewKafkaConfig()
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "broker-1:9092", cfg.BootstrapServers)
	assert.Equal(t, "estimates-test", cfg.Topic)
	assert.Equal(t, 25, cfg.LingerMS)
	// Unparseable numeric values fall back to the default.
	assert.Equal(t, 16384, cfg.BatchSize)
}

func TestConfigMap(t *testing.T) {
	cfg := &KafkaConfig{
		BootstrapServers: "broker-1:9092",
		CompressionType:  "snappy",
		Acks:             "all",
		LingerMS:         10,
		BatchSize:        16384,
	}

	cm := cfg.configMap()
	servers, err := cm.Get("bootstrap.servers", "")
	require.NoError(t, err)
	assert.Equal(t, "broker-1:9092", servers)

	// No SASL settings without a username.
	proto, err := cm.Get("security.protocol", "")
	require.NoError(t, err)
	assert.Equal(t, "", proto, "security.protocol should be unset for plain brokers")

	cfg.SASLUsername = "svc-camera"
	cfg.SASLPassword = "secret"
	cfg.SecurityProtocol = "SASL_SSL"
	cfg.SASLMechanism = "PLAIN"
	cm = cfg.configMap()
	proto, err = cm.Get("security.protocol", "")
	require.NoError(t, err)
	assert.Equal(t, "SASL_SSL", proto)
	user, err := cm.Get("sasl.username", "")
	require.NoError(t, err)
	assert.Equal(t, "svc-camera", user)
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(&KafkaConfig{})
	require.Error(t, err, "publisher requires bootstrap servers")
}