// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// capture redirects given logger output for the duration of the test.
func capture(t *testing.T, l interface{ SetOutput(io.Writer) }) *strings.Builder {
	t.Helper()
	var sb strings.Builder
	l.SetOutput(&sb)
	t.Cleanup(func() { l.SetOutput(io.Discard) })
	return &sb
}

func TestInfoLogger(t *testing.T) {
	t.Run("Disabled by default", func(t *testing.T) {
		assert.Equal(t, io.Discard, InfoLogger.Writer())
	})

	t.Run("Infof writes with INFO prefix", func(t *testing.T) {
		out := capture(t, InfoLogger)

		Infof("count=%d", 42)
		assert.Contains(t, out.String(), "INFO: ")
		assert.Contains(t, out.String(), "count=42")
	})

	t.Run("Info writes plain values", func(t *testing.T) {
		out := capture(t, InfoLogger)

		Info("plain message")
		assert.Contains(t, out.String(), "plain message")
	})
}

func TestDebugLogger(t *testing.T) {
	t.Run("Disabled by default", func(t *testing.T) {
		assert.Equal(t, io.Discard, DebugLogger.Writer())
	})

	t.Run("Debugf writes with DEBUG prefix and file info", func(t *testing.T) {
		out := capture(t, DebugLogger)

		Debugf("state=%s", "draining")
		assert.Contains(t, out.String(), "DEBUG: ")
		assert.Contains(t, out.String(), "state=draining")
		// Lshortfile flag should point at this test file, not the wrapper.
		assert.Contains(t, out.String(), "logging_test.go")
	})

	t.Run("Debug writes plain values", func(t *testing.T) {
		out := capture(t, DebugLogger)

		Debug("plain debug")
		assert.Contains(t, out.String(), "plain debug")
	})
}
