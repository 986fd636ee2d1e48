package mqtt_test

import (
	"testing"

	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "fedavg/fl/rounds/next", mqtt.RoundsTopic("fedavg"))
	assert.Equal(t, "lab/fedavg/fl/runs/done", mqtt.RunsTopic("lab/fedavg"))
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, mqtt.Config{}.Enabled())
	assert.True(t, mqtt.Config{URL: "tcp://localhost:1883"}.Enabled())
}

func TestNewPubSubRequiresClientID(t *testing.T) {
	_, err := mqtt.NewPubSub(mqtt.Config{URL: "tcp://localhost:1883"}, nil)
	assert.Error(t, err)
}
