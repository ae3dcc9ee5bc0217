package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
	"github.com/jmylchreest/sysnotify/internal/session"
)

func testResult() *broadcast.Result {
	return &broadcast.Result{
		RunID:  "01JABCDEFGHJKMNPQRSTVWXYZ0",
		Status: broadcast.StatusDelivered,
		Outcomes: []broadcast.Outcome{
			{
				Session: session.Session{
					PID:       10,
					UID:       1000,
					Display:   "DISPLAY=:0",
					Authority: "XAUTHORITY=/home/alice/.Xauthority",
				},
				Error:    "notify call failed: no such name",
				Duration: 12 * time.Millisecond,
			},
			{
				Session: session.Session{
					PID:       20,
					UID:       1001,
					Display:   "DISPLAY=:1",
					Authority: "XAUTHORITY=/home/bob/.Xauthority",
					Root:      "/proc/20/root",
				},
				Delivered:      true,
				NotificationID: 3,
				Duration:       4 * time.Millisecond,
			},
		},
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format   FormatType
		expected Formatter
		wantErr  bool
	}{
		{FormatPlain, &PlainFormatter{}, false},
		{"", &PlainFormatter{}, false},
		{FormatJSON, &JSONFormatter{}, false},
		{FormatYAML, &YAMLFormatter{}, false},
		{"xml", nil, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expected, f)
		})
	}
}

func TestPlainFormatter_Result(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Result(&buf, testResult()))

	out := buf.String()
	assert.Contains(t, out, "failed    pid=10 uid=1000 display=:0 (12ms): notify call failed: no such name\n")
	assert.Contains(t, out, "delivered pid=20 uid=1001 display=:1 root=/proc/20/root (4ms)\n")
	assert.Contains(t, out, "delivered to 1 of 2 sessions\n")
}

func TestPlainFormatter_ResultUnavailable(t *testing.T) {
	var buf bytes.Buffer
	r := &broadcast.Result{Status: broadcast.StatusUnavailable}
	require.NoError(t, (&PlainFormatter{}).Result(&buf, r))
	assert.Equal(t, "no session bus found\n", buf.String())
}

func TestPlainFormatter_Sessions(t *testing.T) {
	var buf bytes.Buffer
	sessions := []session.Session{
		{PID: 10, UID: 1000, Display: "DISPLAY=:0", Authority: "XAUTHORITY=/home/alice/.Xauthority", BusAddress: "unix:path=/run/user/1000/bus"},
	}
	require.NoError(t, (&PlainFormatter{}).Sessions(&buf, sessions))

	assert.Equal(t,
		"pid=10 uid=1000 display=:0 XAUTHORITY=/home/alice/.Xauthority bus=unix:path=/run/user/1000/bus\n1 session found\n",
		buf.String())
}

func TestJSONFormatter_Result(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Result(&buf, testResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "delivered", decoded["status"])
	outcomes, ok := decoded["outcomes"].([]any)
	require.True(t, ok)
	assert.Len(t, outcomes, 2)
}

func TestJSONFormatter_EmptySessions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Sessions(&buf, nil))
	assert.JSONEq(t, `{"sessions": []}`, buf.String())
}

func TestYAMLFormatter_Result(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Result(&buf, testResult()))

	var decoded struct {
		RunID    string `yaml:"run_id"`
		Status   string `yaml:"status"`
		Outcomes []struct {
			Delivered bool   `yaml:"delivered"`
			Duration  string `yaml:"duration"`
			Session   struct {
				Root string `yaml:"root"`
			} `yaml:"session"`
		} `yaml:"outcomes"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "01JABCDEFGHJKMNPQRSTVWXYZ0", decoded.RunID)
	assert.Equal(t, "delivered", decoded.Status)
	require.Len(t, decoded.Outcomes, 2)
	assert.False(t, decoded.Outcomes[0].Delivered)
	assert.Equal(t, "12ms", decoded.Outcomes[0].Duration)
	assert.Equal(t, "/proc/20/root", decoded.Outcomes[1].Session.Root)
}
