package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEpochSeconds(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), FromEpochSeconds(1717243200))
	assert.Equal(time.Date(2024, 6, 1, 12, 0, 0, 500_000_000, time.UTC), FromEpochSeconds(1717243200.5))
	assert.Equal("2024-06-01T12:00:00.500Z", FormatTimestamp(FromEpochSeconds(1717243200.5)))
}
