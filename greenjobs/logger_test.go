package greenjobs

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLogrusAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	adapter := NewLogrusAdapter(logger)
	adapter.Debug("fetch scheduled", "key", "products", "attempt", 2)
	adapter.Error("fetch failed", "key", "wallet")

	out := buf.String()
	assert.Contains(t, out, `"key":"products"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, "fetch scheduled")
	assert.Contains(t, out, `"level":"error"`)
}

func TestLogrusAdapterUnpairedKey(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	NewLogrusAdapter(logger).Info("message", "dangling")

	assert.Contains(t, buf.String(), `"extra":"dangling"`)
}
