package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

const generateRequestJSON = `{
	"user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	"target_date": "2025-01-15",
	"tasks": [
		{"title": "Write report", "duration": "1h", "priority": 4, "earliest_start": "09:00"}
	],
	"preferences": {"preferred_wake_time": "07:00"},
	"user_profile": {"age": 30}
}`

func TestGenerateCommandJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte(generateRequestJSON), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"generate", "--input", path, "--json"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var schedule domain.GeneratedSchedule
	require.NoError(t, json.Unmarshal(out.Bytes(), &schedule))
	assert.Equal(t, domain.StatusCompleted, schedule.Metrics.Status)
	require.NotEmpty(t, schedule.Items)
	assert.Equal(t, 0, schedule.Items[0].StartMinutes)
	assert.Equal(t, 1440, schedule.Items[len(schedule.Items)-1].EndMinutes)
}

func TestGenerateCommandMissingFile(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"generate", "--input", filepath.Join(t.TempDir(), "missing.json")})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read request")
}
