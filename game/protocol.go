package game

import (
	"encoding/json"

	"github.com/Cleo-11/ocean-mining-game/world"
)

// Event names are wire-stable with the existing front end; renaming any of
// these breaks deployed clients.
const (
	// client -> server
	EvtJoinGame         = "joinGame"
	EvtUpdatePosition   = "updatePosition"
	EvtMineResource     = "mineResource"
	EvtSendChatMessage  = "sendChatMessage"
	EvtUpgradeSubmarine = "upgradeSubmarine"
	EvtTradeResource    = "tradeResource"
	EvtLeaveGame        = "leaveGame"

	// server -> client
	EvtResourcesInitialized = "resourcesInitialized"
	EvtMapInfo              = "mapInfo"
	EvtMapExpanded          = "mapExpanded"
	EvtPlayerJoined         = "playerJoined"
	EvtPlayerMoved          = "playerMoved"
	EvtPlayerMined          = "playerMined"
	EvtResourceUpdated      = "resourceUpdated"
	EvtChatMessage          = "chatMessage"
	EvtPlayerLeft           = "playerLeft"
	EvtGameState            = "gameState"
	EvtTradeCompleted       = "tradeCompleted"
	EvtSessionFull          = "session-full"
	EvtError                = "error"
)

// ClientEnvelope frames every client message; the payload is decoded by the
// handler registered for the event type, after the type is known.
type ClientEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type JoinGamePayload struct {
	Username      string `json:"username"`
	SubmarineType int    `json:"submarineType"`
	SessionID     string `json:"sessionId,omitempty"`
}

type MinePayload struct {
	NodeID string `json:"nodeId"`
	Amount int    `json:"amount"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type UpgradePayload struct {
	NewType  int               `json:"newType"`
	NewStats *world.StatsPatch `json:"newStats,omitempty"`
}

type TradePayload struct {
	ResourceType world.ResourceType `json:"resourceType"`
	Amount       int                `json:"amount"`
}

type MapInfoPayload struct {
	Size          float64 `json:"size"`
	ResourceCount int     `json:"resourceCount"`
}

type MapExpandedPayload struct {
	OldSize        float64               `json:"oldSize"`
	NewSize        float64               `json:"newSize"`
	NewResources   []*world.ResourceNode `json:"newResources"`
	TotalResources int                   `json:"totalResources"`
	Message        string                `json:"message"`
}

type PlayerMovedPayload struct {
	ID       string         `json:"id"`
	Position world.Position `json:"position"`
}

type PlayerMinedPayload struct {
	PlayerID string `json:"playerId"`
	NodeID   string `json:"nodeId"`
}

type ResourceUpdatedPayload struct {
	NodeID   string `json:"nodeId"`
	Amount   int    `json:"amount"`
	Depleted bool   `json:"depleted"`
}

type PlayerLeftPayload struct {
	ID string `json:"id"`
}

type GameStatePayload struct {
	Players       []world.PlayerView       `json:"players"`
	ResourceNodes []*world.ResourceNode    `json:"resourceNodes"`
	Leaderboard   []world.LeaderboardEntry `json:"leaderboard"`
	MapSize       float64                  `json:"mapSize"`
}

type TradeCompletedPayload struct {
	ResourceType world.ResourceType `json:"resourceType"`
	Amount       int                `json:"amount"`
	Score        int                `json:"score"`
}

func marshalEvent(evtType string, payload any) ([]byte, error) {
	return json.Marshal(ServerEnvelope{Type: evtType, Payload: payload})
}
