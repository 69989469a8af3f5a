package tuning

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	DailyClickCap   int     `yaml:"daily_click_cap"`
	StageCheckEvery int64   `yaml:"stage_check_every"`
	Stages          []Stage `yaml:"stages"`

	ShardPoolCap int   `yaml:"shard_pool_cap"`
	ResetBuffer  int64 `yaml:"reset_buffer"`

	DecayTickMs          int     `yaml:"decay_tick_ms"`
	DecayDamagePerItem   int64   `yaml:"decay_damage_per_item"`
	DecayActivationScore int64   `yaml:"decay_activation_score"`
	DecaySpawnChance     float64 `yaml:"decay_spawn_chance"`
	MaxDecayItems        int     `yaml:"max_decay_items"`

	MaxCoins         int     `yaml:"max_coins"`
	CoinSpawnEveryMs int     `yaml:"coin_spawn_every_ms"`
	CoinSpawnChance  float64 `yaml:"coin_spawn_chance"`
	CoinLifetimeMs   int     `yaml:"coin_lifetime_ms"`

	CheckpointEveryMs int `yaml:"checkpoint_every_ms"`
	LeaderboardSize   int `yaml:"leaderboard_size"`

	BaseScale    float64 `yaml:"base_scale"`
	GrowScale    float64 `yaml:"grow_scale"`
	GrowRevertMs int     `yaml:"grow_revert_ms"`

	NameMaxLen int `yaml:"name_max_len"`
	ChatMaxLen int `yaml:"chat_max_len"`

	ClickRate RateLimit `yaml:"click_rate"`
}

// Stage is a background color unlocked once the community total reaches Threshold.
type Stage struct {
	Threshold int64  `yaml:"threshold"`
	Color     string `yaml:"color"`
}

// RateLimit is a token bucket; PerSecond <= 0 disables it.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1",
		DailyClickCap:   100,
		StageCheckEvery: 50,
		Stages: []Stage{
			{Threshold: 0, Color: "#5d4037"},
			{Threshold: 1000, Color: "#4e342e"},
			{Threshold: 5000, Color: "#3e2723"},
			{Threshold: 10000, Color: "#8d6e63"},
			{Threshold: 50000, Color: "#795548"},
		},
		ShardPoolCap:         100,
		ResetBuffer:          1000,
		DecayTickMs:          1000,
		DecayDamagePerItem:   1,
		DecayActivationScore: 100,
		DecaySpawnChance:     0.05,
		MaxDecayItems:        10,
		MaxCoins:             1,
		CoinSpawnEveryMs:     60000,
		CoinSpawnChance:      0.5,
		CoinLifetimeMs:       10000,
		CheckpointEveryMs:    60000,
		LeaderboardSize:      10,
		BaseScale:            1.0,
		GrowScale:            1.5,
		GrowRevertMs:         3000,
		NameMaxLen:           11,
		ChatMaxLen:           200,
		ClickRate:            RateLimit{PerSecond: 20, Burst: 20},
	}
}

// Load reads a tuning file on top of Defaults, so a file only needs the keys it overrides.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize sorts stages ascending by threshold.
func (t *Tuning) Normalize() {
	sort.SliceStable(t.Stages, func(i, j int) bool { return t.Stages[i].Threshold < t.Stages[j].Threshold })
}

func (t Tuning) Validate() error {
	var errs []error
	if t.DailyClickCap <= 0 {
		errs = append(errs, errors.New("daily_click_cap must be > 0"))
	}
	if len(t.Stages) == 0 {
		errs = append(errs, errors.New("stages must not be empty"))
	}
	for i := 1; i < len(t.Stages); i++ {
		if t.Stages[i].Threshold == t.Stages[i-1].Threshold {
			errs = append(errs, fmt.Errorf("duplicate stage threshold %d", t.Stages[i].Threshold))
		}
	}
	if t.ShardPoolCap < 0 {
		errs = append(errs, errors.New("shard_pool_cap must be >= 0"))
	}
	if t.ResetBuffer <= 0 {
		errs = append(errs, errors.New("reset_buffer must be > 0"))
	}
	if t.MaxDecayItems < 0 || t.MaxCoins < 0 {
		errs = append(errs, errors.New("item caps must be >= 0"))
	}
	for name, ms := range map[string]int{
		"decay_tick_ms":       t.DecayTickMs,
		"coin_spawn_every_ms": t.CoinSpawnEveryMs,
		"checkpoint_every_ms": t.CheckpointEveryMs,
		"grow_revert_ms":      t.GrowRevertMs,
	} {
		if ms <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}
	if t.DecaySpawnChance < 0 || t.DecaySpawnChance > 1 || t.CoinSpawnChance < 0 || t.CoinSpawnChance > 1 {
		errs = append(errs, errors.New("spawn chances must be within [0,1]"))
	}
	if t.NameMaxLen <= 0 || t.ChatMaxLen <= 0 {
		errs = append(errs, errors.New("name_max_len and chat_max_len must be > 0"))
	}
	return errors.Join(errs...)
}

func (t Tuning) DecayTick() time.Duration       { return ms(t.DecayTickMs) }
func (t Tuning) CoinSpawnEvery() time.Duration  { return ms(t.CoinSpawnEveryMs) }
func (t Tuning) CoinLifetime() time.Duration    { return ms(t.CoinLifetimeMs) }
func (t Tuning) CheckpointEvery() time.Duration { return ms(t.CheckpointEveryMs) }
func (t Tuning) GrowRevert() time.Duration      { return ms(t.GrowRevertMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
