package utils

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetVerbose_And_IsVerbose(t *testing.T) {
	// save original state and restore after test
	original := IsVerbose()
	defer SetVerbose(original)

	SetVerbose(true)
	assert.True(t, IsVerbose())
	assert.Equal(t, logrus.DebugLevel, Logger().GetLevel())

	SetVerbose(false)
	assert.False(t, IsVerbose())
	assert.Equal(t, logrus.InfoLevel, Logger().GetLevel())
}

func TestVerbose_OnlyWrittenWhenEnabled(t *testing.T) {
	original := IsVerbose()
	defer SetVerbose(original)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)

	SetVerbose(false)
	Verbose("hidden %s", "message")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Verbose("visible %s %d", "arg", 42)
	assert.Contains(t, buf.String(), "visible arg 42")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)

	WithFields(logrus.Fields{"serial": "emulator-5554"}).Info("capture done")
	Warn("slow capture %dms", 120)

	out := buf.String()
	assert.Contains(t, out, "serial=emulator-5554")
	assert.Contains(t, out, "capture done")
	assert.Contains(t, out, "slow capture 120ms")
}
