package feeders

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTomlFeeder_Feed(t *testing.T) {
	tempFile, err := os.CreateTemp("", "loop-*.toml")
	require.NoError(t, err)
	defer os.Remove(tempFile.Name())

	_, err = tempFile.WriteString(`
[loop]
backend = "epoll"
workers = 4
poll_timeout = "250ms"
`)
	require.NoError(t, err)
	require.NoError(t, tempFile.Close())

	var cfg struct {
		Loop struct {
			Backend     string `toml:"backend"`
			Workers     int    `toml:"workers"`
			PollTimeout string `toml:"poll_timeout"`
		} `toml:"loop"`
	}

	require.NoError(t, NewTomlFeeder(tempFile.Name()).Feed(&cfg))
	require.Equal(t, "epoll", cfg.Loop.Backend)
	require.Equal(t, 4, cfg.Loop.Workers)
	require.Equal(t, "250ms", cfg.Loop.PollTimeout)
}

func TestTomlFeeder_MissingFile(t *testing.T) {
	var cfg struct{}
	err := NewTomlFeeder("/nonexistent/path/loop.toml").Feed(&cfg)
	require.Error(t, err)
}
