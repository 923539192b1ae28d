package common

import (
	"bytes"
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogResult(t *testing.T) {
	handler := memory.New()
	log.SetHandler(handler)
	log.SetLevel(log.DebugLevel)

	LogResult("POST /issues", 200, nil)
	LogResult("POST /issues", 500, nil)
	LogResult("POST /issues", 0, errors.New("connection refused"))

	require.Len(t, handler.Entries, 3)
	assert.Equal(t, log.DebugLevel, handler.Entries[0].Level)
	assert.Equal(t, log.WarnLevel, handler.Entries[1].Level)
	assert.Equal(t, log.ErrorLevel, handler.Entries[2].Level)
	assert.Contains(t, handler.Entries[2].Message, "connection refused")
}

func TestSetupLoggingUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupLoggingTo(&buf, "loud", "json")
	assert.Equal(t, log.InfoLevel, log.Log.(*log.Logger).Level)
	assert.Contains(t, buf.String(), "Unknown log level")
}
