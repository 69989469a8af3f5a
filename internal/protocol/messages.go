package protocol

// Inbound payloads. Events without a payload (click, grow, mine) carry no data.

type MoveMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type SpawnRequestMsg struct {
	Kind string `json:"kind,omitempty"`
}

// Outbound payloads.

type PlayerView struct {
	ID          string  `json:"id"`
	Identity    string  `json:"identity"`
	Name        string  `json:"name,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	Scale       float64 `json:"scale"`
	Clicks      int64   `json:"clicks"`
	Coins       int64   `json:"coins"`
	Shards      int64   `json:"shards"`
	Collected   int64   `json:"collected"`
	TodayClicks int     `json:"todayClicks"`
}

type ItemView struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Clicks   int64  `json:"clicks"`
	Coins    int64  `json:"coins"`
	Shards   int64  `json:"shards"`
}

type SnapshotMsg struct {
	SelfID      string                `json:"selfId"`
	Sessions    map[string]PlayerView `json:"sessions"`
	StageColor  string                `json:"stageColor"`
	GlobalTotal int64                 `json:"globalTotal"`
	ShardPool   int                   `json:"shardPool"`
	ActiveItems []ItemView            `json:"activeItems"`
	TodayClicks int                   `json:"todayClicks"`
	DailyCap    int                   `json:"dailyCap"`
	Leaderboard []LeaderboardEntry    `json:"leaderboard,omitempty"`
}

type MovedMsg struct {
	ConnID string  `json:"connId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type ScoreUpdateMsg struct {
	ConnID        string `json:"connId"`
	PersonalCount int64  `json:"personalCount"`
	GlobalTotal   int64  `json:"globalTotal"`
	StageColor    string `json:"stageColor,omitempty"`
}

type RenamedMsg struct {
	ConnID string `json:"connId"`
	Name   string `json:"name"`
}

type ChatMessage struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName,omitempty"`
	Color      string `json:"color"`
	Timestamp  int64  `json:"timestamp"`
}

type ScaleChangedMsg struct {
	ConnID string  `json:"connId"`
	Scale  float64 `json:"scale"`
}

type ShardCollectedMsg struct {
	ConnID        string `json:"connId"`
	NewShardCount int64  `json:"newShardCount"`
}

type ItemRemovedMsg struct {
	ItemID      string `json:"itemId"`
	CollectorID string `json:"collectorId"`
	NewCount    int64  `json:"newCount"`
}

type DecayDamageMsg struct {
	GlobalTotal int64 `json:"globalTotal"`
	Damage      int64 `json:"damage"`
}

type GameOverResetMsg struct {
	GlobalTotal int64  `json:"globalTotal"`
	StageColor  string `json:"stageColor"`
}
