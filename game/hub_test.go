package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Cleo-11/ocean-mining-game/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, cfg world.MapConfig) *Hub {
	t.Helper()
	w := world.New(cfg, world.DefaultSeed, rand.New(rand.NewSource(1)))
	tickerGen := NewTickerGen()
	return NewHub(w, &tickerGen)
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// drain empties a client's outbox and decodes the queued envelopes.
func drain(t *testing.T, c *Client) []ClientEnvelope {
	t.Helper()
	var out []ClientEnvelope
	for {
		select {
		case data := <-c.outbox:
			var env ClientEnvelope
			require.NoError(t, json.Unmarshal(data, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventTypes(envs []ClientEnvelope) []string {
	types := make([]string, 0, len(envs))
	for _, e := range envs {
		types = append(types, e.Type)
	}
	return types
}

func decodePayload[T any](t *testing.T, env ClientEnvelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func joinedClient(t *testing.T, h *Hub, id, username string) *Client {
	t.Helper()
	c := newClient(id, nil, h)
	h.handleRegister(c)
	h.handleJoin(c, mustPayload(t, JoinGamePayload{Username: username, SubmarineType: 1}))
	require.True(t, c.joined)
	drain(t, c)
	return c
}

func TestJoinFlow(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())

	c1 := newClient("conn-a", nil, h)
	h.handleRegister(c1)

	envs := drain(t, c1)
	require.Equal(t, []string{EvtResourcesInitialized}, eventTypes(envs))
	nodes := decodePayload[[]*world.ResourceNode](t, envs[0])
	assert.Len(t, nodes, 30)

	h.handleJoin(c1, mustPayload(t, JoinGamePayload{Username: "A", SubmarineType: 1}))
	envs = drain(t, c1)
	require.Equal(t, []string{EvtMapInfo, EvtGameState}, eventTypes(envs))

	info := decodePayload[MapInfoPayload](t, envs[0])
	assert.Equal(t, 2000.0, info.Size)
	assert.Equal(t, 30, info.ResourceCount)

	state := decodePayload[GameStatePayload](t, envs[1])
	assert.Equal(t, 2000.0, state.MapSize)
	require.Len(t, state.Players, 1)
	assert.Equal(t, "A", state.Players[0].Username)

	c2 := newClient("conn-b", nil, h)
	h.handleRegister(c2)
	drain(t, c2)
	h.handleJoin(c2, mustPayload(t, JoinGamePayload{Username: "B", SubmarineType: 2}))

	envs = drain(t, c1)
	require.Equal(t, []string{EvtPlayerJoined}, eventTypes(envs))
	joined := decodePayload[world.PlayerView](t, envs[0])
	assert.Equal(t, "B", joined.Username)
	assert.Equal(t, "conn-b", joined.ID)

	envs = drain(t, c2)
	require.Equal(t, []string{EvtMapInfo, EvtPlayerJoined, EvtGameState}, eventTypes(envs))
	existing := decodePayload[world.PlayerView](t, envs[1])
	assert.Equal(t, "A", existing.Username)

	// a second join on the same connection is a silent no-op
	h.handleJoin(c2, mustPayload(t, JoinGamePayload{Username: "B2"}))
	assert.Empty(t, drain(t, c2))
	assert.Equal(t, 2, h.world.PlayerCount())
}

func TestThirdJoinExpandsMapForEveryone(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())

	cA := joinedClient(t, h, "conn-a", "A")
	cB := joinedClient(t, h, "conn-b", "B")
	drain(t, cA)

	cC := newClient("conn-c", nil, h)
	h.handleRegister(cC)
	drain(t, cC)
	h.handleJoin(cC, mustPayload(t, JoinGamePayload{Username: "C", SubmarineType: 1}))

	// already-connected clients learn about the growth in lockstep
	for _, c := range []*Client{cA, cB} {
		envs := drain(t, c)
		require.Equal(t, []string{EvtMapExpanded, EvtPlayerJoined}, eventTypes(envs), "client %s", c.id)
		exp := decodePayload[MapExpandedPayload](t, envs[0])
		assert.Equal(t, 2000.0, exp.OldSize)
		assert.Equal(t, 2500.0, exp.NewSize)
		assert.Len(t, exp.NewResources, 180)
		assert.Equal(t, 210, exp.TotalResources)
	}

	// the joiner's snapshot already reflects the expanded world
	envs := drain(t, cC)
	require.Equal(t,
		[]string{EvtMapExpanded, EvtMapInfo, EvtPlayerJoined, EvtPlayerJoined, EvtGameState},
		eventTypes(envs),
	)
	state := decodePayload[GameStatePayload](t, envs[len(envs)-1])
	assert.Equal(t, 2500.0, state.MapSize)
	assert.Len(t, state.ResourceNodes, 210)

	// the periodic snapshot carries the new size to A and B as well
	h.handleLeaderboardTick()
	for _, c := range []*Client{cA, cB, cC} {
		envs := drain(t, c)
		require.Equal(t, []string{EvtGameState}, eventTypes(envs))
		state := decodePayload[GameStatePayload](t, envs[0])
		assert.Equal(t, 2500.0, state.MapSize)
	}
}

func TestPreJoinEventsAreSilentlyDropped(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	observer := joinedClient(t, h, "conn-a", "A")

	c := newClient("conn-b", nil, h)
	h.handleRegister(c)
	drain(t, c)

	events := []ClientEnvelope{
		{Type: EvtUpdatePosition, Payload: mustPayload(t, world.Position{X: 1, Y: 2})},
		{Type: EvtMineResource, Payload: mustPayload(t, MinePayload{NodeID: "node-0", Amount: 3})},
		{Type: EvtSendChatMessage, Payload: mustPayload(t, ChatPayload{Text: "hi"})},
		{Type: EvtUpgradeSubmarine, Payload: mustPayload(t, UpgradePayload{NewType: 2})},
		{Type: EvtTradeResource, Payload: mustPayload(t, TradePayload{ResourceType: world.Nickel, Amount: 1})},
		{Type: "no-such-event", Payload: mustPayload(t, struct{}{})},
	}
	for _, env := range events {
		h.dispatch(clientEvent{from: c, env: env})
	}

	assert.Empty(t, drain(t, c))
	assert.Empty(t, drain(t, observer))
	assert.Equal(t, 1, h.world.PlayerCount())

	node, _ := h.world.Node("node-0")
	assert.False(t, node.Depleted)
}

func TestMiningRaceResolvesByArrivalOrder(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	require.NoError(t, h.world.AddNodes([]*world.ResourceNode{
		{ID: "vein", Position: world.Vec2{X: 50, Y: 50}, Type: world.Copper, Amount: 8},
	}))

	cA := joinedClient(t, h, "conn-a", "A")
	cB := joinedClient(t, h, "conn-b", "B")
	drain(t, cA)

	h.handleMine(cA, mustPayload(t, MinePayload{NodeID: "vein", Amount: 5}))

	envs := drain(t, cA)
	require.Equal(t, []string{EvtResourceUpdated}, eventTypes(envs))
	upd := decodePayload[ResourceUpdatedPayload](t, envs[0])
	assert.Equal(t, ResourceUpdatedPayload{NodeID: "vein", Amount: 3, Depleted: false}, upd)

	envs = drain(t, cB)
	require.Equal(t, []string{EvtResourceUpdated, EvtPlayerMined}, eventTypes(envs))
	mined := decodePayload[PlayerMinedPayload](t, envs[1])
	assert.Equal(t, PlayerMinedPayload{PlayerID: "conn-a", NodeID: "vein"}, mined)

	// the second racer asked for 5 but only 3 were left
	h.handleMine(cB, mustPayload(t, MinePayload{NodeID: "vein", Amount: 5}))
	envs = drain(t, cB)
	require.Equal(t, []string{EvtResourceUpdated}, eventTypes(envs))
	upd = decodePayload[ResourceUpdatedPayload](t, envs[0])
	assert.Equal(t, ResourceUpdatedPayload{NodeID: "vein", Amount: 0, Depleted: true}, upd)
	drain(t, cA)

	pA, _ := h.world.Player("conn-a")
	pB, _ := h.world.Player("conn-b")
	assert.Equal(t, 5, pA.Capacity[world.Copper])
	assert.Equal(t, 3, pB.Capacity[world.Copper])

	// mining a depleted node is a no-op, not an error
	h.handleMine(cA, mustPayload(t, MinePayload{NodeID: "vein", Amount: 5}))
	assert.Empty(t, drain(t, cA))
	assert.Empty(t, drain(t, cB))

	// so is mining a node that doesn't exist
	h.handleMine(cA, mustPayload(t, MinePayload{NodeID: "ghost-vein", Amount: 5}))
	assert.Empty(t, drain(t, cA))
}

func TestChatEchoAndReplay(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	cA := joinedClient(t, h, "conn-a", "A")
	cB := joinedClient(t, h, "conn-b", "B")
	drain(t, cA)

	h.handleChat(cA, mustPayload(t, ChatPayload{Text: "  found a cobalt field  "}))

	for _, c := range []*Client{cA, cB} {
		envs := drain(t, c)
		require.Equal(t, []string{EvtChatMessage}, eventTypes(envs), "chat echoes to sender too")
		msg := decodePayload[world.ChatMessage](t, envs[0])
		assert.Equal(t, "A", msg.Sender)
		assert.Equal(t, "found a cobalt field", msg.Text)
	}

	h.handleChat(cA, mustPayload(t, ChatPayload{Text: "   "}))
	assert.Empty(t, drain(t, cA))
	assert.Empty(t, drain(t, cB))

	// late joiners get the recent history replayed before their snapshot
	cC := newClient("conn-c", nil, h)
	h.handleRegister(cC)
	drain(t, cC)
	h.handleJoin(cC, mustPayload(t, JoinGamePayload{Username: "C"}))
	envs := drain(t, cC)
	types := eventTypes(envs)
	assert.Contains(t, types, EvtChatMessage)
	assert.Equal(t, EvtGameState, types[len(types)-1])
}

func TestJoinThenDisconnectBroadcastOrdering(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	observer := joinedClient(t, h, "conn-a", "A")

	c := newClient("conn-b", nil, h)
	h.handleRegister(c)
	h.handleJoin(c, mustPayload(t, JoinGamePayload{Username: "B"}))
	h.handleDisconnect(c)

	envs := drain(t, observer)
	require.Equal(t, []string{EvtPlayerJoined, EvtPlayerLeft}, eventTypes(envs))
	left := decodePayload[PlayerLeftPayload](t, envs[1])
	assert.Equal(t, "conn-b", left.ID)

	assert.Equal(t, 1, h.world.PlayerCount())
	assert.Equal(t, 1, h.sessions.Count(), "the shared session survives with the observer in it")

	// the disconnected client's outbox is closed after the queued frames
	for {
		if _, ok := <-c.outbox; !ok {
			break
		}
	}

	// a duplicate removal request must not double-broadcast
	h.handleDisconnect(c)
	assert.Empty(t, drain(t, observer))
}

func TestExplicitLeaveKeepsConnection(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	observer := joinedClient(t, h, "conn-a", "A")
	c := joinedClient(t, h, "conn-b", "B")
	drain(t, observer)

	h.handleLeave(c, nil)

	envs := drain(t, observer)
	require.Equal(t, []string{EvtPlayerLeft}, eventTypes(envs))
	assert.False(t, c.joined)
	assert.Equal(t, 1, h.world.PlayerCount())

	// still connected: the client may join again
	h.handleJoin(c, mustPayload(t, JoinGamePayload{Username: "B"}))
	assert.True(t, c.joined)
	assert.Equal(t, 2, h.world.PlayerCount())
}

func TestSessionFullRejection(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	h.sessions = newSessionManager(1)

	cA := joinedClient(t, h, "conn-a", "A")
	drain(t, cA)

	cB := newClient("conn-b", nil, h)
	h.handleRegister(cB)
	drain(t, cB)
	h.handleJoin(cB, mustPayload(t, JoinGamePayload{Username: "B", SessionID: cA.sessionID}))

	envs := drain(t, cB)
	require.Equal(t, []string{EvtSessionFull}, eventTypes(envs))
	assert.False(t, cB.joined)
	assert.Equal(t, 1, h.world.PlayerCount())

	// without a pinned session a fresh one is created instead
	h.handleJoin(cB, mustPayload(t, JoinGamePayload{Username: "B"}))
	assert.True(t, cB.joined)
	assert.NotEqual(t, cA.sessionID, cB.sessionID)
}

func TestLeaderboardTick(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())

	idle := newClient("conn-idle", nil, h)
	h.handleRegister(idle)
	drain(t, idle)

	// zero joined players: the tick is a no-op
	h.handleLeaderboardTick()
	assert.Empty(t, drain(t, idle))

	var clients []*Client
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("conn-%d", i)
		c := joinedClient(t, h, id, fmt.Sprintf("captain%d", i))
		h.world.CreditMined(id, world.Nickel, i+1)
		clients = append(clients, c)
	}
	for _, c := range clients {
		drain(t, c)
	}

	h.handleLeaderboardTick()

	envs := drain(t, clients[0])
	require.Equal(t, []string{EvtGameState}, eventTypes(envs))
	state := decodePayload[GameStatePayload](t, envs[0])
	require.Len(t, state.Leaderboard, 10, "board is truncated to the top 10")
	for i := 1; i < len(state.Leaderboard); i++ {
		assert.GreaterOrEqual(t, state.Leaderboard[i-1].Score, state.Leaderboard[i].Score)
	}
	assert.Equal(t, "captain11", state.Leaderboard[0].Username)
	assert.Len(t, state.Players, 12)
}

func TestRespawnTickBroadcast(t *testing.T) {
	t.Parallel()

	t.Run("changed nodes push the full set", func(t *testing.T) {
		cfg := world.DefaultMapConfig()
		cfg.RespawnChance = 1
		h := newTestHub(t, cfg)
		c := joinedClient(t, h, "conn-a", "A")

		_, ok := h.world.MineNode("node-0", 1<<30)
		require.True(t, ok)

		h.handleRespawnTick()
		envs := drain(t, c)
		require.Equal(t, []string{EvtResourcesInitialized}, eventTypes(envs))
		nodes := decodePayload[[]*world.ResourceNode](t, envs[0])
		assert.Len(t, nodes, 30)
	})

	t.Run("quiet tick stays quiet", func(t *testing.T) {
		h := newTestHub(t, world.DefaultMapConfig())
		c := joinedClient(t, h, "conn-a", "A")

		h.handleRespawnTick()
		assert.Empty(t, drain(t, c))
	})
}

func TestTradeAck(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	cA := joinedClient(t, h, "conn-a", "A")
	cB := joinedClient(t, h, "conn-b", "B")
	drain(t, cA)

	h.world.CreditMined("conn-a", world.Manganese, 10)

	h.handleTrade(cA, mustPayload(t, TradePayload{ResourceType: world.Manganese, Amount: 4}))

	envs := drain(t, cA)
	require.Equal(t, []string{EvtTradeCompleted}, eventTypes(envs))
	ack := decodePayload[TradeCompletedPayload](t, envs[0])
	assert.Equal(t, world.Manganese, ack.ResourceType)
	assert.Equal(t, 4, ack.Amount)
	assert.Equal(t, 120, ack.Score)

	assert.Empty(t, drain(t, cB), "trades are acked privately")
}

func TestUpgradeBroadcast(t *testing.T) {
	t.Parallel()
	h := newTestHub(t, world.DefaultMapConfig())
	cA := joinedClient(t, h, "conn-a", "A")
	cB := joinedClient(t, h, "conn-b", "B")
	drain(t, cA)

	h.handleUpgrade(cA, json.RawMessage(`{"newType":3,"newStats":{"speed":7}}`))

	p, _ := h.world.Player("conn-a")
	assert.Equal(t, 3, p.SubmarineType)
	assert.Equal(t, 7.0, p.Stats.Speed)

	// the partial newStats must not wipe the stats it left out
	assert.Equal(t, 100, p.Stats.Health)
	assert.Equal(t, 100, p.Stats.Energy)
	assert.Equal(t, 1.0, p.Stats.MiningRate)

	envs := drain(t, cB)
	require.Equal(t, []string{EvtPlayerMoved}, eventTypes(envs))
	assert.Empty(t, drain(t, cA))

	h.handleUpgrade(cA, json.RawMessage(`{broken`))
	assert.Empty(t, drain(t, cB))
}

func TestHubActorLifecycle(t *testing.T) {
	t.Parallel()

	mockTickerCreator := &MockPeriodicTickerChannelCreator{}
	respawnTicker := make(chan time.Time)
	leaderboardTicker := make(chan time.Time)
	pingTicker := make(chan time.Time)
	mockTickerCreator.On("Create", respawnInterval).Return(respawnTicker)
	mockTickerCreator.On("Create", leaderboardInterval).Return(leaderboardTicker)
	mockTickerCreator.On("Create", pingInterval).Return(pingTicker)

	w := world.New(world.DefaultMapConfig(), world.DefaultSeed, rand.New(rand.NewSource(1)))
	h := NewHub(w, mockTickerCreator)

	started := make(chan struct{})
	go h.HubActor(started)
	<-started

	c := newClient("conn-a", nil, h)
	h.Register(c)

	select {
	case data := <-c.outbox:
		var env ClientEnvelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, EvtResourcesInitialized, env.Type)
	case <-time.After(time.Second):
		t.Fatal("registration snapshot never arrived")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats, err := h.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Players)
	assert.Equal(t, 30, stats.Resources)
	assert.Equal(t, 2000.0, stats.MapSize)

	res, err := h.JoinSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPlayersPerSession, res.MaxPlayers)
	assert.Equal(t, 0, res.PlayerCount)

	// idle ticks must not wake anyone up
	leaderboardTicker <- time.Now()
	respawnTicker <- time.Now()
	select {
	case data := <-c.outbox:
		t.Fatalf("unexpected frame on idle tick: %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, h.Shutdown(ctx))

	var lastType string
	for data := range c.outbox {
		var env ClientEnvelope
		require.NoError(t, json.Unmarshal(data, &env))
		lastType = env.Type
	}
	assert.Equal(t, EvtError, lastType, "clients hear about the shutdown before the socket dies")

	mockTickerCreator.AssertExpectations(t)
}
