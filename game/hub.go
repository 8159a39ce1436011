package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Cleo-11/ocean-mining-game/world"
)

const (
	respawnInterval     = 15 * time.Second
	leaderboardInterval = 5 * time.Second
	pingInterval        = 30 * time.Second
	leaderboardSize     = 10
	chatReplayCount     = 10
)

type clientEvent struct {
	from *Client
	env  ClientEnvelope
}

type JoinSessionResult struct {
	SessionID   string
	PlayerCount int
	MaxPlayers  int
}

type HealthStats struct {
	Players        int
	Resources      int
	MapSize        float64
	ActiveSessions int
	Stats          world.Stats
}

// Hub is the single owner of all shared game state. One goroutine (HubActor)
// consumes every channel below, so world mutations never interleave: events
// from one client apply in delivery order and two clients racing on a node are
// resolved by whichever event the transport delivered first.
type Hub struct {
	world    *world.World
	sessions *sessionManager
	clients  map[string]*Client

	inbox           chan clientEvent
	registerChan    chan *Client
	removeChan      chan *Client
	sessionJoinReqs chan chan JoinSessionResult
	healthReqs      chan chan HealthStats
	shutdownChan    chan chan struct{}

	tickerCreator PeriodicTickerChannelCreator
	handlers      map[string]func(*Client, json.RawMessage)
}

func NewHub(w *world.World, tickerCreator PeriodicTickerChannelCreator) *Hub {
	h := &Hub{
		world:           w,
		sessions:        newSessionManager(DefaultMaxPlayersPerSession),
		clients:         make(map[string]*Client),
		inbox:           make(chan clientEvent, 1024),
		registerChan:    make(chan *Client, 64),
		removeChan:      make(chan *Client, 64),
		sessionJoinReqs: make(chan chan JoinSessionResult, 64),
		healthReqs:      make(chan chan HealthStats, 64),
		shutdownChan:    make(chan chan struct{}),
		tickerCreator:   tickerCreator,
	}

	h.handlers = map[string]func(*Client, json.RawMessage){
		EvtJoinGame:         h.handleJoin,
		EvtUpdatePosition:   h.handleMove,
		EvtMineResource:     h.handleMine,
		EvtSendChatMessage:  h.handleChat,
		EvtUpgradeSubmarine: h.handleUpgrade,
		EvtTradeResource:    h.handleTrade,
		EvtLeaveGame:        h.handleLeave,
	}
	return h
}

// HubActor processes all hub work until Shutdown is called.
func (h *Hub) HubActor(started chan struct{}) {
	respawnTicker := h.tickerCreator.Create(respawnInterval)
	leaderboardTicker := h.tickerCreator.Create(leaderboardInterval)
	pingTicker := h.tickerCreator.Create(pingInterval)

	close(started)

	for {
		select {
		case c := <-h.registerChan:
			h.handleRegister(c)

		case c := <-h.removeChan:
			h.handleDisconnect(c)

		case evt := <-h.inbox:
			h.dispatch(evt)

		case <-respawnTicker:
			h.handleRespawnTick()

		case <-leaderboardTicker:
			h.handleLeaderboardTick()

		case <-pingTicker:
			h.pingClients()

		case resp := <-h.sessionJoinReqs:
			h.handleSessionJoin(resp)

		case resp := <-h.healthReqs:
			resp <- h.healthStats()

		case done := <-h.shutdownChan:
			h.handleShutdown()
			close(done)
			return
		}
	}
}

// Register hands a freshly upgraded connection to the hub.
func (h *Hub) Register(c *Client) {
	h.registerChan <- c
}

func (h *Hub) RequestRemove(c *Client) {
	h.removeChan <- c
}

func (h *Hub) Forward(evt clientEvent) {
	h.inbox <- evt
}

// JoinSession asks the hub for a session with free capacity on behalf of the
// HTTP control plane.
func (h *Hub) JoinSession(ctx context.Context) (JoinSessionResult, error) {
	resp := make(chan JoinSessionResult, 1)
	select {
	case h.sessionJoinReqs <- resp:
		select {
		case res := <-resp:
			return res, nil
		case <-ctx.Done():
			return JoinSessionResult{}, ctx.Err()
		}
	case <-ctx.Done():
		return JoinSessionResult{}, ctx.Err()
	}
}

func (h *Hub) Health(ctx context.Context) (HealthStats, error) {
	resp := make(chan HealthStats, 1)
	select {
	case h.healthReqs <- resp:
		select {
		case res := <-resp:
			return res, nil
		case <-ctx.Done():
			return HealthStats{}, ctx.Err()
		}
	case <-ctx.Done():
		return HealthStats{}, ctx.Err()
	}
}

// Shutdown notifies every connected client before the actor exits, so the
// front end can show a maintenance notice instead of a dead socket.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case h.shutdownChan <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) dispatch(evt clientEvent) {
	handler, ok := h.handlers[evt.env.Type]
	if !ok {
		slog.Debug("unknown client event", "type", evt.env.Type, "client", evt.from.id)
		return
	}
	handler(evt.from, evt.env.Payload)
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c.id] = c
	h.sendTo(c, EvtResourcesInitialized, h.world.Nodes())
	slog.Info("client connected", "client", c.id)
}

func (h *Hub) handleJoin(c *Client, raw json.RawMessage) {
	if c.joined {
		return
	}

	var payload JoinGamePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	var session *GameSession
	if payload.SessionID != "" {
		if s, ok := h.sessions.Get(payload.SessionID); ok {
			session = s
		}
	}
	if session == nil {
		session = h.sessions.FindOrCreate()
	}
	if !session.AddPlayer(c.id) {
		h.sendTo(c, EvtSessionFull, nil)
		return
	}
	c.sessionID = session.ID

	player := h.world.NewPlayer(c.id, payload.Username, payload.SubmarineType)
	c.joined = true

	// The joiner's snapshot must already reflect any expansion its own join
	// triggered, so scaling runs before anything is acknowledged.
	if exp := h.world.ExpandForPlayers(); exp != nil {
		slog.Info("map expanded",
			"oldSize", exp.OldSize,
			"newSize", exp.NewSize,
			"newNodes", len(exp.NewNodes),
			"players", h.world.PlayerCount(),
		)
		h.broadcast(EvtMapExpanded, MapExpandedPayload{
			OldSize:        exp.OldSize,
			NewSize:        exp.NewSize,
			NewResources:   exp.NewNodes,
			TotalResources: h.world.NodeCount(),
			Message:        "Map expanded! New area available for exploration.",
		}, "")
	}

	h.sendTo(c, EvtMapInfo, MapInfoPayload{
		Size:          h.world.MapSize(),
		ResourceCount: h.world.NodeCount(),
	})

	h.broadcast(EvtPlayerJoined, player.View(), c.id)

	for _, view := range h.world.PlayerViews() {
		if view.ID != c.id {
			h.sendTo(c, EvtPlayerJoined, view)
		}
	}

	for _, msg := range h.world.RecentChat(chatReplayCount) {
		h.sendTo(c, EvtChatMessage, msg)
	}

	h.sendTo(c, EvtGameState, h.gameState())

	slog.Info("player joined",
		"client", c.id,
		"username", player.Username,
		"session", session.ID,
		"sessionPlayers", session.PlayerCount(),
	)
}

func (h *Hub) handleMove(c *Client, raw json.RawMessage) {
	if !c.joined {
		return
	}
	var pos world.Position
	if err := json.Unmarshal(raw, &pos); err != nil {
		return
	}
	if h.world.MovePlayer(c.id, pos) {
		h.broadcast(EvtPlayerMoved, PlayerMovedPayload{ID: c.id, Position: pos}, c.id)
	}
}

func (h *Hub) handleMine(c *Client, raw json.RawMessage) {
	if !c.joined {
		return
	}
	var payload MinePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	node, ok := h.world.Node(payload.NodeID)
	if !ok {
		return
	}

	res, _ := h.world.MineNode(payload.NodeID, payload.Amount)
	if res.Mined == 0 {
		// already depleted, the loser of a mining race gets nothing
		return
	}

	h.world.CreditMined(c.id, node.Type, res.Mined)

	h.broadcast(EvtResourceUpdated, ResourceUpdatedPayload{
		NodeID:   payload.NodeID,
		Amount:   res.Remaining,
		Depleted: res.Depleted,
	}, "")
	h.broadcast(EvtPlayerMined, PlayerMinedPayload{PlayerID: c.id, NodeID: payload.NodeID}, c.id)
}

func (h *Hub) handleChat(c *Client, raw json.RawMessage) {
	if !c.joined {
		return
	}
	var payload ChatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	msg, ok := h.world.AppendChat(c.id, payload.Text)
	if !ok {
		return
	}
	// echoed to the sender too, so their own message shows up
	h.broadcast(EvtChatMessage, msg, "")
}

func (h *Hub) handleUpgrade(c *Client, raw json.RawMessage) {
	if !c.joined {
		return
	}
	var payload UpgradePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	if !h.world.UpgradePlayer(c.id, payload.NewType, payload.NewStats) {
		return
	}
	if p, ok := h.world.Player(c.id); ok {
		h.broadcast(EvtPlayerMoved, PlayerMovedPayload{ID: c.id, Position: p.Position}, c.id)
	}
}

func (h *Hub) handleTrade(c *Client, raw json.RawMessage) {
	if !c.joined {
		return
	}
	var payload TradePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	traded, score, ok := h.world.Trade(c.id, payload.ResourceType, payload.Amount)
	if !ok {
		return
	}
	h.sendTo(c, EvtTradeCompleted, TradeCompletedPayload{
		ResourceType: payload.ResourceType,
		Amount:       traded,
		Score:        score,
	})
}

func (h *Hub) handleLeave(c *Client, _ json.RawMessage) {
	h.removeFromGame(c)
}

func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	h.removeFromGame(c)
	delete(h.clients, c.id)
	close(c.outbox)
	slog.Info("client disconnected", "client", c.id)
}

// removeFromGame takes the player out of the world immediately and tells
// everyone, so no stale submarine lingers on other screens.
func (h *Hub) removeFromGame(c *Client) {
	if !c.joined {
		return
	}
	c.joined = false
	h.world.RemovePlayer(c.id)
	h.sessions.RemovePlayer(c.sessionID, c.id)
	c.sessionID = ""
	h.broadcast(EvtPlayerLeft, PlayerLeftPayload{ID: c.id}, "")
}

func (h *Hub) handleRespawnTick() {
	changed := h.world.RespawnTick()
	if len(changed) == 0 {
		return
	}
	// full node set, not a diff; simplicity beats bandwidth here
	h.broadcast(EvtResourcesInitialized, h.world.Nodes(), "")
}

func (h *Hub) handleLeaderboardTick() {
	if h.world.PlayerCount() == 0 {
		return
	}
	h.broadcast(EvtGameState, h.gameState(), "")
}

func (h *Hub) handleSessionJoin(resp chan JoinSessionResult) {
	session := h.sessions.FindOrCreate()
	resp <- JoinSessionResult{
		SessionID:   session.ID,
		PlayerCount: session.PlayerCount(),
		MaxPlayers:  session.MaxPlayers,
	}
}

func (h *Hub) handleShutdown() {
	h.broadcast(EvtError, "Server is shutting down", "")
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.outbox)
	}
}

func (h *Hub) pingClients() {
	for _, c := range h.clients {
		select {
		case c.pingChan <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) gameState() GameStatePayload {
	return GameStatePayload{
		Players:       h.world.PlayerViews(),
		ResourceNodes: h.world.Nodes(),
		Leaderboard:   h.world.Leaderboard(leaderboardSize),
		MapSize:       h.world.MapSize(),
	}
}

func (h *Hub) healthStats() HealthStats {
	return HealthStats{
		Players:        h.world.PlayerCount(),
		Resources:      h.world.NodeCount(),
		MapSize:        h.world.MapSize(),
		ActiveSessions: h.sessions.Count(),
		Stats:          h.world.Stats(),
	}
}

func (h *Hub) sendTo(c *Client, evtType string, payload any) {
	data, err := marshalEvent(evtType, payload)
	if err != nil {
		slog.Error("marshal server event", "type", evtType, "err", err)
		return
	}
	if err := c.Send(data); err != nil {
		slog.Warn("dropping message for slow client", "client", c.id, "type", evtType)
	}
}

func (h *Hub) broadcast(evtType string, payload any, except string) {
	data, err := marshalEvent(evtType, payload)
	if err != nil {
		slog.Error("marshal server event", "type", evtType, "err", err)
		return
	}
	for id, c := range h.clients {
		if id == except {
			continue
		}
		if err := c.Send(data); err != nil {
			slog.Warn("dropping message for slow client", "client", id, "type", evtType)
		}
	}
}
