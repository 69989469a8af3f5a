package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"avocado.town/internal/persistence/store"
	"avocado.town/internal/protocol"
	"avocado.town/internal/sim/engine"
	"avocado.town/internal/transport/ws"
)

type persistStats interface {
	Stats() store.WriterStats
}

func newMux(eng *engine.Engine, persist persistStats, wsSrv *ws.Server, logger *log.Logger, enableAdmin bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-eng.Done():
			http.Error(rw, "engine stopped", http.StatusServiceUnavailable)
			return
		default:
		}
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, eng.Metrics(), persist)
	})
	mux.HandleFunc("/v1/leaderboard", func(rw http.ResponseWriter, r *http.Request) {
		entries := eng.Leaderboard()
		if entries == nil {
			entries = []protocol.LeaderboardEntry{}
		}
		writeJSON(rw, http.StatusOK, map[string]any{"entries": entries})
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	if !enableAdmin {
		logger.Printf("admin endpoints disabled (AVOCADO_ENABLE_ADMIN_HTTP=false)")
		return mux
	}
	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := eng.RequestStatus(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, st)
	})
	mux.HandleFunc("/admin/v1/reset", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := eng.RequestReset(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		logger.Printf("admin reset remote=%s total=%d", r.RemoteAddr, st.GlobalTotal)
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "status": st})
	})
	return mux
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}

// writeMetrics renders a minimal Prometheus exposition.
func writeMetrics(rw http.ResponseWriter, m engine.Metrics, persist persistStats) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s %v\n", name, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s %d\n", name, v)
	}

	gauge("avocado_clients", "Connected transport clients.", m.Clients)
	gauge("avocado_sessions", "Joined sessions.", m.Sessions)
	gauge("avocado_global_total", "Community click total.", m.GlobalTotal)
	gauge("avocado_shard_pool", "Shards left in the weekly pool.", m.ShardPool)
	gauge("avocado_game_overs", "Game-over resets since start.", m.GameOvers)

	fmt.Fprintf(rw, "# HELP avocado_active_items Live collectibles by kind.\n")
	fmt.Fprintf(rw, "# TYPE avocado_active_items gauge\n")
	fmt.Fprintf(rw, "avocado_active_items{kind=%q} %d\n", "coin", m.ActiveCoins)
	fmt.Fprintf(rw, "avocado_active_items{kind=%q} %d\n", "trash", m.ActiveTrash)

	fmt.Fprintf(rw, "# HELP avocado_queue_depth Engine channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE avocado_queue_depth gauge\n")
	fmt.Fprintf(rw, "avocado_queue_depth{queue=%q} %d\n", "connect", m.QueueDepths.Connect)
	fmt.Fprintf(rw, "avocado_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "avocado_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)
	fmt.Fprintf(rw, "avocado_queue_depth{queue=%q} %d\n", "results", m.QueueDepths.Results)

	counter("avocado_inbound_total", "Inbound client events.", m.InboundTotal)
	counter("avocado_rejected_total", "Inbound events answered with an error.", m.RejectedTotal)
	counter("avocado_slow_drop_total", "Clients dropped for a full send queue.", m.SlowDropTotal)

	if persist == nil {
		return
	}
	s := persist.Stats()
	gauge("avocado_persist_queue_depth", "Pending store jobs.", s.QueueDepth)
	gauge("avocado_persist_queue_capacity", "Store job queue capacity.", s.QueueCapacity)
	counter("avocado_persist_done_total", "Store jobs completed.", s.DoneTotal)
	counter("avocado_persist_fail_total", "Store jobs that returned an error.", s.FailTotal)
	counter("avocado_persist_drop_total", "Store jobs dropped because the queue was full.", s.DropTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
