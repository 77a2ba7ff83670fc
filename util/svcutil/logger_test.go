package svcutil

import (
	"bytes"
	"encoding/json"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

func testContext(t *testing.T, level, format string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("log-level", level, "")
	set.String("log-format", format, "")
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestConfigLogger(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	logger := ConfigLogger(testContext(t, "warn", "json"), &buf)
	logger.Info("hidden")
	logger.Warn("shown", "thread", "abc123")

	var line map[string]any
	assert.NoError(json.Unmarshal(buf.Bytes(), &line))
	assert.Equal("shown", line["msg"])
	assert.Equal("abc123", line["thread"])

	buf.Reset()
	logger = ConfigLogger(testContext(t, "", "text"), &buf)
	logger.Info("plain")
	assert.Contains(buf.String(), "msg=plain")
}
