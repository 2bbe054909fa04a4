package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{"TRACE", logrus.TraceLevel},
		{"warn", logrus.WarnLevel},
		{"chatty", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var buf bytes.Buffer
			require.Equal(t, tt.want, NewWithOutput(tt.in, &buf).GetLevel())
		})
	}
}

func TestNew_UnknownLevelWarns(t *testing.T) {
	var buf bytes.Buffer
	NewWithOutput("chatty", &buf)
	require.Contains(t, buf.String(), "unknown log level")
}

func TestNew_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)
	log.WithField("component", "reader").Info("port open")
	require.Contains(t, buf.String(), "component=reader")
	require.Contains(t, buf.String(), "msg=\"port open\"")
}
