package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"avocado.town/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		identity = flag.String("identity", "bot", "player identity")
		name     = flag.String("name", "", "display name (optional)")
		every    = flag.Duration("click_every", 2*time.Second, "click interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := send(conn, protocol.EvJoin, *identity); err != nil {
		logger.Fatalf("send join: %v", err)
	}
	if *name != "" {
		_ = send(conn, protocol.EvRename, *name)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	frames := make(chan protocol.Envelope, 64)
	go func() {
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.DecodeEnvelope(msg)
			if err != nil {
				continue
			}
			frames <- env
		}
	}()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	tick := time.NewTicker(*every)
	defer tick.Stop()
	var selfID string
	var clicks int

	for {
		select {
		case <-stop:
			return
		case env, ok := <-frames:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			selfID = handleFrame(logger, env, selfID)
		case <-tick.C:
			clicks++
			_ = send(conn, protocol.EvClick, nil)
			// Wander and chat now and then.
			if clicks%5 == 0 {
				_ = send(conn, protocol.EvMove, protocol.MoveMsg{X: r.Float64() * 100, Y: r.Float64() * 100})
			}
			if clicks%20 == 0 {
				_ = send(conn, protocol.EvChat, fmt.Sprintf("%s clicked %d times", *identity, clicks))
			}
		}
	}
}

func handleFrame(logger *log.Logger, env protocol.Envelope, selfID string) string {
	switch env.Event {
	case protocol.EvSnapshot:
		var s protocol.SnapshotMsg
		if err := json.Unmarshal(env.Data, &s); err == nil {
			logger.Printf("SNAPSHOT self=%s sessions=%d total=%d pool=%d stage=%s", s.SelfID, len(s.Sessions), s.GlobalTotal, s.ShardPool, s.StageColor)
			return s.SelfID
		}
	case protocol.EvScoreUpdate:
		var u protocol.ScoreUpdateMsg
		if err := json.Unmarshal(env.Data, &u); err == nil && u.ConnID == selfID {
			logger.Printf("score personal=%d total=%d", u.PersonalCount, u.GlobalTotal)
		}
	case protocol.EvItemSpawned:
		var it protocol.ItemView
		if err := json.Unmarshal(env.Data, &it); err == nil {
			logger.Printf("item spawned id=%s kind=%s", it.ID, it.Kind)
		}
	case protocol.EvQuotaExceeded, protocol.EvDailyReset, protocol.EvGameOverReset, protocol.EvStageChanged:
		logger.Printf("%s %s", env.Event, env.Data)
	case protocol.EvError:
		var m protocol.ErrorMsg
		if err := json.Unmarshal(env.Data, &m); err == nil {
			logger.Printf("error code=%s msg=%s", m.Code, m.Message)
		}
	}
	return selfID
}

func send(conn *websocket.Conn, event string, data any) error {
	b, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
