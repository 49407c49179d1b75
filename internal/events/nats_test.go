package events

import (
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestNATSPublisherEmit(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan *nats.Msg, 8)
	_, err = nc.ChanSubscribe("agents.>", received)
	require.NoError(t, err)

	pub, err := NewNATSPublisher(server.ClientURL(), zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	req := &contract.Request{RequestID: "req-1", TaskType: contract.TaskRetrieveGrounding}
	pub.Emit(Started(req))
	pub.Emit(Progress(req, "semantic", "searching", 40))
	pub.Emit(Completed(req, contract.OK(req.RequestID, map[string]any{"done": true})))

	subjects := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		select {
		case msg := <-received:
			subjects = append(subjects, msg.Subject)
			var ev Event
			require.NoError(t, json.Unmarshal(msg.Data, &ev))
			assert.Equal(t, "req-1", ev.RequestID)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	assert.Contains(t, subjects, "agents.retrieve_grounding.req-1.started")
	assert.Contains(t, subjects, "agents.retrieve_grounding.req-1.progress")
	assert.Contains(t, subjects, "agents.retrieve_grounding.req-1.completed")
}

func TestEventConstructors(t *testing.T) {
	req := &contract.Request{RequestID: "req-2", TaskType: contract.TaskVerifyClaims}

	started := Started(req)
	assert.Equal(t, TypeStarted, started.Type)
	assert.Equal(t, "req-2", started.RequestID)
	assert.False(t, started.Timestamp.IsZero())

	progress := Progress(req, "judging", "claim 1 of 3", 33)
	assert.Equal(t, TypeProgress, progress.Type)
	assert.Equal(t, "judging", progress.Stage)
	assert.Equal(t, 33, progress.Percent)

	resp := contract.OK("req-2", nil)
	completed := Completed(req, resp)
	assert.Equal(t, TypeCompleted, completed.Type)
	assert.Equal(t, 100, completed.Percent)
	require.NotNil(t, completed.Response)
	assert.Equal(t, contract.StatusOK, completed.Response.Status)

	failed := Completed(req, contract.Fail("req-2", contract.NewError(
		contract.CodeTaskFailed, "storage unavailable", nil)))
	assert.Equal(t, TypeError, failed.Type)
	require.NotNil(t, failed.Response)
	assert.Equal(t, contract.StatusError, failed.Response.Status)
}
