package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestInit_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestRecordAgentCall(t *testing.T) {
	before := testutil.ToFloat64(AgentTokens.WithLabelValues("test_agent", "gpt-4o", "input"))
	RecordAgentCall("test_agent", "gpt-4o", 100, 20, 0.5, nil)
	RecordAgentCall("test_agent", "gpt-4o", 100, 20, 0.5, errors.New("boom"))

	after := testutil.ToFloat64(AgentTokens.WithLabelValues("test_agent", "gpt-4o", "input"))
	assert.Equal(t, 100.0, after-before)
	assert.Equal(t, 1.0, testutil.ToFloat64(AgentCalls.WithLabelValues("test_agent", "gpt-4o", "error")))
}

func TestRecordTool(t *testing.T) {
	RecordTool("test_tool", "transient", 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(ToolExecutions.WithLabelValues("test_tool", "transient")))
}

func TestCacheCollector(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	c := NewCacheCollector(client)
	assert.Equal(t, 5, testutil.CollectAndCount(c))
}
