package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"water-synth/models"
	"water-synth/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

// broadcaster is the part of the socket.io server the controller pushes through.
type broadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
	BroadcastToNamespace(namespace, event string, args ...interface{}) bool
}

// socketController pushes ledger progress to socket.io clients. Clients
// receive the run list on connect and join a room per watched run.
type socketController struct {
	server broadcaster
	ledger runLedger

	mu       sync.Mutex
	rendered map[string]int
}

const socketRecentRuns = 10

func newSocketController(server broadcaster, ledger runLedger) *socketController {
	return &socketController{server: server, ledger: ledger, rendered: make(map[string]int)}
}

func (c *socketController) emitRuns(socket socketio.Conn) {
	runs, err := c.ledger.RecentRuns(context.Background(), socketRecentRuns)
	if err != nil {
		utils.GetLogger().Error("failed to list runs", slog.Any("error", xerrors.New(err)))
		socket.Emit("monitorError", map[string]string{"message": "failed to list runs"})
		return
	}
	socket.Emit("runs", runs)
}

func (c *socketController) handleWatchRun(socket socketio.Conn, runID string) {
	runID = strings.TrimSpace(runID)
	st, ok, err := c.ledger.RunStatus(context.Background(), runID)
	if err != nil || !ok {
		socket.Emit("monitorError", map[string]string{"message": "unknown run " + runID})
		return
	}
	socket.Join(runID)
	socket.Emit("progress", st)
}

// poll broadcasts every recent run whose rendered count changed since the
// previous poll. It returns the runs it broadcast.
func (c *socketController) poll(ctx context.Context) ([]models.RunStatus, error) {
	runs, err := c.ledger.RecentRuns(ctx, socketRecentRuns)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var changed []models.RunStatus
	for _, st := range runs {
		if prev, seen := c.rendered[st.RunID]; seen && prev == st.Rendered {
			continue
		}
		c.rendered[st.RunID] = st.Rendered
		changed = append(changed, st)
		c.server.BroadcastToRoom("/", st.RunID, "progress", st)
	}
	if len(changed) > 0 {
		c.server.BroadcastToNamespace("/", "runs", runs)
	}
	return changed, nil
}

func (c *socketController) pollLoop(ctx context.Context, every time.Duration) {
	logger := utils.GetLogger()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.poll(ctx); err != nil {
				logger.WarnContext(ctx, "ledger poll failed", slog.Any("error", err))
			}
		}
	}
}
