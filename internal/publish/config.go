// Package publish mirrors position estimates to a Kafka topic for
// downstream consumers. The publisher is optional: it is wired in only
// when brokers are configured.
package publish

import (
	"fmt"
	"os"
)

// KafkaConfig holds Kafka connection configuration, read from the
// environment (godotenv is loaded by the daemon before this runs).
type KafkaConfig struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Topic            string
	CompressionType  string
	Acks             string
	LingerMS         int
	BatchSize        int
}

// NewKafkaConfig creates a new Kafka configuration from environment variables.
func NewKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		BootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", ""),
		SecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "SASL_SSL"),
		SASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
		SASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		SASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
		Topic:            getEnv("KAFKA_TOPIC", "position-estimates"),
		CompressionType:  getEnv("KAFKA_COMPRESSION_TYPE", "snappy"),
		Acks:             getEnv("KAFKA_ACKS", "all"),
		LingerMS:         getEnvInt("KAFKA_LINGER_MS", 10),
		BatchSize:        getEnvInt("KAFKA_BATCH_SIZE", 16384),
	}
}

// Enabled reports whether the configuration names any brokers.
func (c *KafkaConfig) Enabled() bool {
	return c.BootstrapServers != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}
