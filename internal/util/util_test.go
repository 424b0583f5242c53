package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTestConfigIsValid(t *testing.T) {

	require := require.New(t)

	cfg := LoadTestConfig()
	require.NoError(cfg.Check())
	require.NoError(cfg.Tile.Validate())

	valve := cfg.Tile.Dataseries[1].Source.Modbus
	require.NotNil(valve)
	require.NoError(valve.Validate())
}
