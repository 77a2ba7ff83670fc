package config

import (
	"os"

	"github.com/adrg/xdg"
)

// Relative path of the config file under the XDG config directories.
const xdgConfigPath = "tradeflair/tradeflair.yml"

// Locate resolves the config file path. An explicitly requested path is used as-is. Otherwise the default
// path is used when it exists, falling back to $XDG_CONFIG_HOME/tradeflair/tradeflair.yml (and the other XDG
// config directories).
func Locate(path string, explicit bool) string {
	if explicit {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if found, err := xdg.SearchConfigFile(xdgConfigPath); err == nil {
		return found
	}
	return path
}
