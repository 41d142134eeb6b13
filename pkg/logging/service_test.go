package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	assert.NoError(t, err)
	assert.Equal(t, log.DebugLevel, level)

	level, err = ParseLevel("")
	assert.NoError(t, err)
	assert.Equal(t, log.InfoLevel, level)

	level, err = ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, log.InfoLevel, level)
}

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	Setup("warning")
	assert.Equal(t, log.WarnLevel, log.GetLevel())
}
