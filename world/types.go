package world

import "time"

type ResourceType string

const (
	Nickel    ResourceType = "nickel"
	Cobalt    ResourceType = "cobalt"
	Copper    ResourceType = "copper"
	Manganese ResourceType = "manganese"
)

// ResourceTypes is indexed by the seeded generator, so the order is load-bearing.
var ResourceTypes = []ResourceType{Nickel, Cobalt, Copper, Manganese}

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ResourceNode is a mineable deposit. Size, PulseSpeed and PulsePhase are
// presentation hints copied through to clients unchanged.
type ResourceNode struct {
	ID         string       `json:"id"`
	Position   Vec2         `json:"position"`
	Type       ResourceType `json:"type"`
	Amount     int          `json:"amount"`
	Depleted   bool         `json:"depleted"`
	Size       float64      `json:"size"`
	PulseSpeed float64      `json:"pulseSpeed"`
	PulsePhase float64      `json:"pulsePhase"`
}

type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

type SubmarineStats struct {
	Health     int     `json:"health"`
	Energy     int     `json:"energy"`
	Depth      int     `json:"depth"`
	Speed      float64 `json:"speed"`
	MiningRate float64 `json:"miningRate"`
	Tier       int     `json:"tier"`
}

// StatsPatch is a partial stats override sent with an upgrade; nil fields keep
// their current values, matching the front end's merge of newStats over stats.
// MaxCapacity entries replace the per-resource hold limits they name.
type StatsPatch struct {
	Health      *int                 `json:"health,omitempty"`
	Energy      *int                 `json:"energy,omitempty"`
	Depth       *int                 `json:"depth,omitempty"`
	Speed       *float64             `json:"speed,omitempty"`
	MiningRate  *float64             `json:"miningRate,omitempty"`
	MaxCapacity map[ResourceType]int `json:"maxCapacity,omitempty"`
}

// Player is connection-scoped: its ID is the realtime connection id and the
// record does not survive a reconnect.
type Player struct {
	ID            string               `json:"id"`
	Username      string               `json:"username"`
	Position      Position             `json:"position"`
	SubmarineType int                  `json:"submarineType"`
	Score         int                  `json:"score"`
	Stats         SubmarineStats       `json:"stats"`
	Capacity      map[ResourceType]int `json:"capacity"`
	MaxCapacity   map[ResourceType]int `json:"maxCapacity"`
	JoinedAt      time.Time            `json:"-"`
}

// PlayerView is the wire shape other clients see for a player.
type PlayerView struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Position      Position `json:"position"`
	Rotation      float64  `json:"rotation"`
	SubmarineType int      `json:"submarineType"`
}

func (p *Player) View() PlayerView {
	return PlayerView{
		ID:            p.ID,
		Username:      p.Username,
		Position:      p.Position,
		Rotation:      p.Position.Rotation,
		SubmarineType: p.SubmarineType,
	}
}

type ChatMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type LeaderboardEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Stats is the counters block exposed on /health.
type Stats struct {
	TotalPlayersJoined  int       `json:"totalPlayersJoined"`
	TotalResourcesMined int       `json:"totalResourcesMined"`
	MapExpansions       int       `json:"mapExpansions"`
	CurrentMapSize      float64   `json:"currentMapSize"`
	PeakPlayerCount     int       `json:"peakPlayerCount"`
	ServerStartTime     time.Time `json:"serverStartTime"`
}

type MineResult struct {
	Mined     int
	Remaining int
	Depleted  bool
}

// Expansion describes a one-way world growth event.
type Expansion struct {
	OldSize  float64
	NewSize  float64
	NewNodes []*ResourceNode
}
