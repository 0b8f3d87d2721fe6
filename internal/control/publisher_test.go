package control_test

import (
	"context"
	"testing"

	"github.com/rovercam/rovercam/internal/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewPublisher_DisabledChannelDropsCommands(t *testing.T) {
	publisher, err := control.NewPublisher(control.MqttConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, publisher)

	for _, command := range []string{control.CommandRecord, control.CommandStopRecord, control.CommandTrack, control.CommandStopTrack} {
		assert.NoErrorf(t, publisher.Publish(context.Background(), command), "disabled publisher must accept %q silently", command)
	}
}
