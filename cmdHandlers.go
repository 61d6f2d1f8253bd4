package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"water-synth/config"
	"water-synth/db"
	"water-synth/models"
	"water-synth/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

// runLedger is the read side of the ledger the monitor serves.
type runLedger interface {
	RecentRuns(ctx context.Context, limit int) ([]models.RunStatus, error)
	RunStatus(ctx context.Context, runID string) (models.RunStatus, bool, error)
	SplitCounts(ctx context.Context, runID string) (map[string]int, error)
}

type runDetail struct {
	models.RunStatus
	Splits map[string]int `json:"splits,omitempty"`
}

const defaultRunLimit = 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

func newRunsHandler(ledger runLedger) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		runs, err := ledger.RecentRuns(r.Context(), limit)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list runs", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		if runs == nil {
			runs = []models.RunStatus{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func newRunHandler(ledger runLedger) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimSpace(r.PathValue("id"))
		if runID == "" {
			writeJSONError(w, http.StatusBadRequest, "run id is required")
			return
		}

		st, ok, err := ledger.RunStatus(r.Context(), runID)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to load run", slog.String("runId", runID), slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load run")
			return
		}
		if !ok {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		splits, err := ledger.SplitCounts(r.Context(), runID)
		if err != nil {
			logger.WarnContext(r.Context(), "failed to load splits", slog.String("runId", runID), slog.Any("error", err))
		}
		writeJSON(w, http.StatusOK, runDetail{RunStatus: st, Splits: splits})
	}
}

func newMonitorMux(ledger runLedger, socketServer http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if socketServer != nil {
		mux.Handle("/socket.io/", socketServer)
	}
	mux.HandleFunc("GET /api/runs", newRunsHandler(ledger))
	mux.HandleFunc("GET /api/runs/{id}", newRunHandler(ledger))
	return mux
}

func runMonitor(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	protocol := fs.String("proto", "http", "Protocol to use (http or https)")
	port := fs.String("p", "5000", "Port to use")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ledger, err := db.NewSQLiteClient(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	poll := time.Duration(cfg.MonitorPollSeconds) * time.Second
	if poll <= 0 {
		return errors.New("monitor poll interval must be positive")
	}
	return serve(ctx, ledger, poll, *protocol, *port)
}

func serve(ctx context.Context, ledger runLedger, poll time.Duration, protocol, port string) error {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})
	controller := newSocketController(server, ledger)

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		controller.emitRuns(socket)
		return nil
	})

	server.OnEvent("/", "requestRuns", func(socket socketio.Conn) {
		controller.emitRuns(socket)
	})

	server.OnEvent("/", "watchRun", func(socket socketio.Conn, runID string) {
		log.Printf("watchRun %q received from %s\n", runID, socket.ID())
		controller.handleWatchRun(socket, runID)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	go controller.pollLoop(ctx, poll)

	return serveHTTP(ctx, protocol == "https", port, newMonitorMux(ledger, server))
}

func serveHTTP(ctx context.Context, serveHTTPS bool, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	var err error
	if serveHTTPS {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		certKey := utils.GetEnv("CERT_KEY", "")
		certFile := utils.GetEnv("CERT_FILE", "")
		if certKey == "" || certFile == "" {
			return errors.New("https requires CERT_KEY and CERT_FILE")
		}
		log.Printf("Starting HTTPS server on %s\n", srv.Addr)
		err = srv.ListenAndServeTLS(certFile, certKey)
	} else {
		log.Printf("Starting HTTP server on port %v", port)
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
