package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
)

func TestLocate(t *testing.T) {
	assert := assert.New(t)

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	xdg.Reload()
	defer xdg.Reload()

	missing := filepath.Join(t.TempDir(), "tradeflair.yml")
	assert.Equal(missing, Locate(missing, true))
	assert.Equal(missing, Locate(missing, false))

	xdgPath := filepath.Join(home, "tradeflair", "tradeflair.yml")
	assert.NoError(os.MkdirAll(filepath.Dir(xdgPath), 0o755))
	assert.NoError(os.WriteFile(xdgPath, []byte("subreddit: tradeswap\n"), 0o644))
	assert.Equal(xdgPath, Locate(missing, false))
	assert.Equal(missing, Locate(missing, true))

	local := filepath.Join(t.TempDir(), "tradeflair.yml")
	assert.NoError(os.WriteFile(local, []byte("subreddit: tradeswap\n"), 0o644))
	assert.Equal(local, Locate(local, false))
}
