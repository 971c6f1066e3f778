package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToTextOnStderr(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.Equal(t, os.Stderr, l.Out)
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}

func TestContextLoggerMergesFields(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	cl := NewContextLogger(base).WithField("component", "filter").WithField("index", "logstash-2017.04.04")
	cl.Infof("retained")

	out := buf.String()
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "filter")
	assert.Contains(t, out, "logstash-2017.04.04")
}

func TestLogOperationReportsError(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	cl := NewContextLogger(base)

	err := LogOperation(cl, "delete_indices", func() error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, buf.String(), "failed")
}
