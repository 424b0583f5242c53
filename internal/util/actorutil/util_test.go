package actorutil

import (
	"testing"

	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/mqtt"

	"github.com/stretchr/testify/assert"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {

	assert := assert.New(t)

	req, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{SwitchId: "pump_abcdef", Selected: true, Payload: "on"})
	assert.NoError(err)
	assert.Equal(domain.ToggleSwitchRequest{SwitchId: "pump_abcdef", Selected: true}, req)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{})
	assert.ErrorIs(err, mqtt.ErrInvalidCommand)
}
