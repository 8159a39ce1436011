// Package world holds the authoritative game state: resource nodes, connected
// players, chat history and the derived leaderboard. A World is not safe for
// concurrent use; it is owned by the gateway hub, which processes one event to
// completion before the next, so every mutation here runs atomically from the
// callers' perspective.
package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultSeed      = "ocean-mining-default-seed"
	initialNodeCount = 30
	chatHistoryLimit = 50
	maxChatLength    = 200
	maxUsernameLen   = 24
	scorePerMined    = 10
	scorePerTraded   = 5
)

var ErrDuplicateNodeID = errors.New("duplicate node id")

type World struct {
	cfg MapConfig
	rng *rand.Rand

	nodes     []*ResourceNode
	nodeIndex map[string]int
	players   map[string]*Player
	chat      []ChatMessage

	mapSize    float64
	expansions int

	totalPlayersJoined  int
	totalResourcesMined int
	peakPlayerCount     int
	startedAt           time.Time
}

// New builds a world with the deterministic node layout for seed. The rng
// drives respawns and expansion placement only, never the initial layout.
func New(cfg MapConfig, seed string, rng *rand.Rand) *World {
	w := &World{
		cfg:       cfg,
		rng:       rng,
		nodeIndex: make(map[string]int),
		players:   make(map[string]*Player),
		mapSize:   cfg.BaseSize,
		startedAt: time.Now(),
	}
	if err := w.AddNodes(GenerateNodes(seed, initialNodeCount, cfg.BaseSize)); err != nil {
		// generated ids are sequential, a collision here is a programming error
		panic(err)
	}
	return w
}

func (w *World) MapSize() float64 { return w.mapSize }
func (w *World) NodeCount() int   { return len(w.nodes) }
func (w *World) PlayerCount() int { return len(w.players) }

// Nodes returns the live node slice. Callers must not mutate it; mutations go
// through MineNode/RespawnTick/AddNodes so the depleted flag stays consistent.
func (w *World) Nodes() []*ResourceNode { return w.nodes }

func (w *World) Node(id string) (*ResourceNode, bool) {
	idx, ok := w.nodeIndex[id]
	if !ok {
		return nil, false
	}
	return w.nodes[idx], true
}

// MineNode clamps the requested amount to what the node still holds and
// mutates it in place. A zero Mined result means the node was already empty;
// callers treat that as a no-op, not an error.
func (w *World) MineNode(nodeID string, requested int) (MineResult, bool) {
	idx, ok := w.nodeIndex[nodeID]
	if !ok {
		return MineResult{}, false
	}
	node := w.nodes[idx]

	if requested < 1 {
		requested = 1
	}
	mined := requested
	if mined > node.Amount {
		mined = node.Amount
	}
	node.Amount -= mined
	node.Depleted = node.Amount == 0

	return MineResult{Mined: mined, Remaining: node.Amount, Depleted: node.Depleted}, true
}

// RespawnTick gives every depleted node a RespawnChance shot at coming back
// with a fresh amount. Returns the nodes that changed.
func (w *World) RespawnTick() []*ResourceNode {
	var changed []*ResourceNode
	for _, node := range w.nodes {
		if !node.Depleted || w.rng.Float64() >= w.cfg.RespawnChance {
			continue
		}
		node.Amount = w.cfg.RespawnMinAmount + w.rng.Intn(w.cfg.RespawnMaxAmount-w.cfg.RespawnMinAmount)
		node.Depleted = false
		changed = append(changed, node)
	}
	return changed
}

// AddNodes appends new deposits. Nodes are never removed once added, so ids
// stay stable for clients; a duplicate id rejects the whole batch.
func (w *World) AddNodes(nodes []*ResourceNode) error {
	for _, n := range nodes {
		if _, exists := w.nodeIndex[n.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
	}
	for _, n := range nodes {
		w.nodeIndex[n.ID] = len(w.nodes)
		w.nodes = append(w.nodes, n)
	}
	return nil
}

// ExpandForPlayers re-evaluates the scaling policy against the current player
// count and grows the world when the target exceeds the current size. Returns
// nil when no expansion happened. The map never shrinks.
func (w *World) ExpandForPlayers() *Expansion {
	target := w.cfg.TargetSize(len(w.players))
	if target <= w.mapSize {
		return nil
	}

	newNodes := expandNodes(w.rng, w.cfg, w.mapSize, target, w.nodes, w.expansions)
	if err := w.AddNodes(newNodes); err != nil {
		// expansion ids carry their own sequence, collisions cannot happen
		panic(err)
	}

	exp := &Expansion{OldSize: w.mapSize, NewSize: target, NewNodes: newNodes}
	w.mapSize = target
	w.expansions++
	return exp
}

// NewPlayer creates and registers a connection-scoped player with a randomized
// spawn position and tier-baseline stats.
func (w *World) NewPlayer(id, username string, submarineType int) *Player {
	username = strings.TrimSpace(username)
	if username == "" {
		username = "Captain" + lastN(id, 4)
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		username = string([]rune(username)[:maxUsernameLen])
	}
	if submarineType < 1 {
		submarineType = 1
	}

	p := &Player{
		ID:       id,
		Username: username,
		Position: Position{
			X: 500 + w.rng.Float64()*100,
			Y: 500 + w.rng.Float64()*100,
		},
		SubmarineType: submarineType,
		Stats: SubmarineStats{
			Health:     100,
			Energy:     100,
			Speed:      5,
			MiningRate: 1,
			Tier:       submarineType,
		},
		Capacity:    map[ResourceType]int{Nickel: 0, Cobalt: 0, Copper: 0, Manganese: 0},
		MaxCapacity: map[ResourceType]int{Nickel: 50, Cobalt: 50, Copper: 50, Manganese: 50},
		JoinedAt:    time.Now(),
	}

	w.players[id] = p
	w.totalPlayersJoined++
	if len(w.players) > w.peakPlayerCount {
		w.peakPlayerCount = len(w.players)
	}
	return p
}

func (w *World) Player(id string) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

func (w *World) RemovePlayer(id string) bool {
	if _, ok := w.players[id]; !ok {
		return false
	}
	delete(w.players, id)
	return true
}

func (w *World) MovePlayer(id string, pos Position) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	return true
}

// CreditMined adds a mined yield to the player's hold, clamped per resource by
// maxCapacity, and scores the full yield.
func (w *World) CreditMined(id string, resource ResourceType, mined int) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	if maxCap, tracked := p.MaxCapacity[resource]; tracked {
		p.Capacity[resource] += mined
		if p.Capacity[resource] > maxCap {
			p.Capacity[resource] = maxCap
		}
	}
	p.Score += mined * scorePerMined
	w.totalResourcesMined += mined
	return true
}

// Trade sells held resources: the amount is clamped to what the player
// actually carries, the hold is reduced and the score credited.
func (w *World) Trade(id string, resource ResourceType, amount int) (traded int, score int, ok bool) {
	p, exists := w.players[id]
	if !exists || amount < 1 {
		return 0, 0, false
	}
	traded = amount
	if traded > p.Capacity[resource] {
		traded = p.Capacity[resource]
	}
	p.Capacity[resource] -= traded
	p.Score += traded * scorePerTraded
	return traded, p.Score, true
}

// UpgradePlayer switches the submarine tier and applies a partial stats
// override; omitted fields keep their current values.
func (w *World) UpgradePlayer(id string, newType int, patch *StatsPatch) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	p.SubmarineType = newType
	p.Stats.Tier = newType
	if patch == nil {
		return true
	}
	if patch.Health != nil {
		p.Stats.Health = *patch.Health
	}
	if patch.Energy != nil {
		p.Stats.Energy = *patch.Energy
	}
	if patch.Depth != nil {
		p.Stats.Depth = *patch.Depth
	}
	if patch.Speed != nil {
		p.Stats.Speed = *patch.Speed
	}
	if patch.MiningRate != nil {
		p.Stats.MiningRate = *patch.MiningRate
	}
	for rt, max := range patch.MaxCapacity {
		p.MaxCapacity[rt] = max
	}
	return true
}

// AppendChat validates and stores a message in the bounded ring, returning
// false for messages that are empty after trimming.
func (w *World) AppendChat(senderID string, text string) (ChatMessage, bool) {
	p, ok := w.players[senderID]
	if !ok {
		return ChatMessage{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, false
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}

	msg := ChatMessage{
		ID:        fmt.Sprintf("msg-%d-%s", time.Now().UnixMilli(), senderID),
		Sender:    p.Username,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	w.chat = append(w.chat, msg)
	if len(w.chat) > chatHistoryLimit {
		w.chat = w.chat[len(w.chat)-chatHistoryLimit:]
	}
	return msg, true
}

func (w *World) RecentChat(n int) []ChatMessage {
	if n > len(w.chat) {
		n = len(w.chat)
	}
	return w.chat[len(w.chat)-n:]
}

// Leaderboard returns up to limit players ordered by descending score.
func (w *World) Leaderboard(limit int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(w.players))
	for _, p := range w.players {
		entries = append(entries, LeaderboardEntry{ID: p.ID, Username: p.Username, Score: p.Score})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (w *World) PlayerViews() []PlayerView {
	views := make([]PlayerView, 0, len(w.players))
	for _, p := range w.players {
		views = append(views, p.View())
	}
	return views
}

func (w *World) Stats() Stats {
	return Stats{
		TotalPlayersJoined:  w.totalPlayersJoined,
		TotalResourcesMined: w.totalResourcesMined,
		MapExpansions:       w.expansions,
		CurrentMapSize:      w.mapSize,
		PeakPlayerCount:     w.peakPlayerCount,
		ServerStartTime:     w.startedAt,
	}
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
