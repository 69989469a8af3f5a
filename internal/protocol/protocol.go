package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1"

// Inbound events (client -> server).
const (
	EvJoin         = "join"
	EvMove         = "move"
	EvClick        = "click"
	EvRename       = "rename"
	EvChat         = "chat"
	EvGrow         = "grow"
	EvMine         = "mine"
	EvCollectItem  = "collect-item"
	EvSpawnRequest = "spawn-request"
)

// Outbound events (server -> client).
const (
	EvSnapshot      = "snapshot"
	EvJoined        = "joined"
	EvLeft          = "left"
	EvMoved         = "moved"
	EvScoreUpdate   = "score-update"
	EvStageChanged  = "stage-changed"
	EvRenamed       = "renamed"
	EvMessage       = "message"
	EvScaleChanged  = "scale-changed"
	EvShardCollect  = "shard-collected"
	EvPoolUpdate    = "pool-update"
	EvPoolDepleted  = "pool-depleted"
	EvItemSpawned   = "item-spawned"
	EvItemRemoved   = "item-removed"
	EvItemExpired   = "item-expired"
	EvDecayDamage   = "decay-damage"
	EvGameOverReset = "game-over-reset"
	EvQuotaExceeded = "quota-exceeded"
	EvDailyReset    = "daily-reset"
	EvDailyProgress = "your-daily-progress"
	EvLeaderboard   = "leaderboard"
	EvError         = "error"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, err
	}
	if env.Event == "" {
		return env, fmt.Errorf("envelope: missing event")
	}
	return env, nil
}

// Encode marshals an outbound frame. A nil data value is omitted.
func Encode(event string, data any) ([]byte, error) {
	out := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: data}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}
