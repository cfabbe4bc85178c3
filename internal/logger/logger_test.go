// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWriter_FiltersByLevel(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantWarn  bool
	}{
		{level: "debug", wantDebug: true, wantWarn: true},
		{level: "info", wantDebug: false, wantWarn: true},
		{level: "", wantDebug: false, wantWarn: true},
		{level: "error", wantDebug: false, wantWarn: false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWriter(&buf, tt.level)
			l.Debugf("debug line %d", 1)
			l.Warn("warn line")
			l.Error("error line")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug line 1")), out)
			assert.Equal(t, tt.wantWarn, bytes.Contains(buf.Bytes(), []byte("warn line")), out)
			assert.Contains(t, out, "error line")
		})
	}
}

func TestNewWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	InfoWithFields(NewWriter(&buf, "info"), "collected 3 items", Fields{"stage": "collect"})

	out := buf.String()
	assert.Contains(t, out, `"message":"collected 3 items"`)
	assert.Contains(t, out, "stage")
	assert.Contains(t, out, "collect")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("dropped")
	l.Errorf("dropped %s", "too")
	InfoWithFields(l, "dropped", Fields{"k": "v"})
}
