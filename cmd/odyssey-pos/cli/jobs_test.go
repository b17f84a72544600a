package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(jobs.TaskTypeShiftReceipt, "shift-42")
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskTypeShiftReceipt, task.Type())
	var payload jobs.ShiftReceiptPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "shift-42", payload.ShiftID)

	task, err = BuildTask(jobs.TaskTypeStaleShiftCheck)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskTypeStaleShiftCheck, task.Type())

	_, err = BuildTask(jobs.TaskTypeShiftReceipt)
	assert.Error(t, err)
	_, err = BuildTask("report:daily")
	assert.Error(t, err)
}

func TestRunRejectsMalformedCommands(t *testing.T) {
	c, err := NewJobsCLI(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer c.Close()

	var out bytes.Buffer
	for _, args := range [][]string{
		nil,
		{"purge"},
		{"trigger"},
		{"scheduled", "many"},
	} {
		assert.ErrorIs(t, c.Run(context.Background(), args, &out), ErrUsage, args)
	}
	assert.Error(t, c.Run(context.Background(), []string{"trigger", "report:daily"}, &out))
	assert.Empty(t, out.String())
}

func TestNewJobsCLIRequiresAddress(t *testing.T) {
	_, err := NewJobsCLI(asynq.RedisClientOpt{})
	assert.Error(t, err)
}

func TestWriteStats(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeStats(&out, QueueStats{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}))
	assert.Contains(t, out.String(), "PENDING")
	assert.Contains(t, out.String(), jobs.QueueDefault)
}
