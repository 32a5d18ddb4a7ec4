package hostlog_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/fiberhost/internal/hostlog"
)

func TestLogger_DropsMessagesBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := hostlog.New(hostlog.LevelWarn)
	logger.SetOutput(&buf)

	logger.Infof("should not appear")
	logger.Errorf("should appear: %s", "boom")

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "ERROR")
	assert.Contains(t, lines[0], "should appear: boom")
}

func TestLogger_UsesGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := hostlog.New(hostlog.LevelDebug)
	logger.SetOutput(&buf)

	logger.Debugf("hello %d", 7)
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "hello 7")
}
