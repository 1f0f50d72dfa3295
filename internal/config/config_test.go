package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Profile.Environment)
	assert.Equal(t, "Clima", cfg.Profile.FunctionName)
	assert.Equal(t, "/aws/lambda/Clima", cfg.Profile.LogGroupName)
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather", cfg.WeatherBaseURL)
	assert.Empty(t, cfg.WeatherAPIKey)
	assert.Zero(t, cfg.WeatherTimeout)
	assert.True(t, cfg.BreakerEnabled)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
	assert.Equal(t, "kafka", cfg.QueueDriver)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "ColaDeEsperaClima", cfg.KafkaSourceTopic)
	assert.Empty(t, cfg.KafkaSinkTopic)
	assert.Equal(t, "Clima", cfg.KafkaGroupID)
	assert.Equal(t, "ColaDeEsperaClima", cfg.AMQPQueue)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "data/clima.db", cfg.StoreDSN)
	assert.Equal(t, "city", cfg.StoreTable)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.RefreshCities)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "PROD")
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("WEATHER_TIMEOUT", "3s")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("QUEUE_DRIVER", "amqp")
	t.Setenv("AMQP_URL", "amqp://clima@rabbit:5672/")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "clima-outcomes")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_DSN", "postgres://clima@db/clima")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("REFRESH_CITIES", "Monterrey, Lima,,Moscu")
	t.Setenv("REFRESH_INTERVAL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvProd, cfg.Profile.Environment)
	assert.Equal(t, "Clima-Prod", cfg.Profile.FunctionName)
	assert.Equal(t, "secret", cfg.WeatherAPIKey)
	assert.Equal(t, 3*time.Second, cfg.WeatherTimeout)
	assert.False(t, cfg.BreakerEnabled)
	assert.Equal(t, "amqp", cfg.QueueDriver)
	assert.Equal(t, "amqp://clima@rabbit:5672/", cfg.AMQPURL)
	assert.Equal(t, "ColaDeEsperaClima-Prod", cfg.AMQPQueue)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "ColaDeEsperaClima-Prod", cfg.KafkaSourceTopic)
	assert.Equal(t, "clima-outcomes", cfg.KafkaSinkTopic)
	assert.Equal(t, "Clima-Prod", cfg.KafkaGroupID)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "city-prod", cfg.StoreTable)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"Monterrey", "Lima", "Moscu"}, cfg.RefreshCities)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, "city", ProfileFor("").TableName)
	assert.Equal(t, "city", ProfileFor("staging").TableName)
	assert.Equal(t, "city-test", ProfileFor("test").TableName)
	assert.Equal(t, "city-test", ProfileFor(" Test ").TableName)
	assert.Equal(t, "ColaDeEsperaClima-Test", ProfileFor("test").QueueName)
	assert.Equal(t, "city-prod", ProfileFor("prod").TableName)
}

func TestLoad_OverridesTableAndTopic(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("STORE_TABLE", "observations")
	t.Setenv("KAFKA_SOURCE_TOPIC", "clima-in")
	t.Setenv("KAFKA_GROUP_ID", "clima-workers")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "observations", cfg.StoreTable)
	assert.Equal(t, "clima-in", cfg.KafkaSourceTopic)
	assert.Equal(t, "clima-workers", cfg.KafkaGroupID)
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"WEATHER_TIMEOUT", "BREAKER_OPEN_TIMEOUT", "SHUTDOWN_TIMEOUT", "REFRESH_INTERVAL"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "not-a-duration")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBreakerMaxFailures(t *testing.T) {
	t.Setenv("BREAKER_MAX_FAILURES", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BREAKER_MAX_FAILURES")
}

func TestLoad_UnknownQueueDriver(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "sqs")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_DRIVER")
}

func TestLoad_UnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "dynamodb")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestValidate_StoreDSNRequired(t *testing.T) {
	cfg := &Config{
		WeatherBaseURL:   "http://provider",
		QueueDriver:      "kafka",
		KafkaBrokers:     []string{defaultBroker},
		KafkaSourceTopic: "clima",
		StoreDriver:      "redis",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DSN")

	cfg.StoreDriver = "memory"
	assert.NoError(t, cfg.Validate())
}
