package world

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
)

// MapConfig holds the world sizing and density knobs.
type MapConfig struct {
	BaseSize           float64
	PlayerThreshold    int
	ExpansionPerPlayer float64
	MaxSize            float64
	MinResourceDensity float64 // nodes per 100x100 unit area
	MinNodeDistance    float64
	PlacementAttempts  int
	RespawnChance      float64
	RespawnMinAmount   int
	RespawnMaxAmount   int
}

func DefaultMapConfig() MapConfig {
	return MapConfig{
		BaseSize:           2000,
		PlayerThreshold:    2,
		ExpansionPerPlayer: 500,
		MaxSize:            8000,
		MinResourceDensity: 0.8,
		MinNodeDistance:    100,
		PlacementAttempts:  10,
		RespawnChance:      0.1,
		RespawnMinAmount:   5,
		RespawnMaxAmount:   20,
	}
}

// TargetSize computes the world size for a player count. Pure and monotonic
// non-decreasing; below the threshold the base size applies, above it the map
// grows linearly per extra player up to MaxSize.
func (cfg MapConfig) TargetSize(playerCount int) float64 {
	if playerCount <= cfg.PlayerThreshold {
		return cfg.BaseSize
	}
	extra := float64(playerCount - cfg.PlayerThreshold)
	return math.Min(cfg.BaseSize+extra*cfg.ExpansionPerPlayer, cfg.MaxSize)
}

// seededRandom reproduces the front end's string-hash generator so a given
// seed yields the same node layout on every run. The hash must stay 32-bit;
// the absolute value is taken in 64 bits because negating MinInt32 in 32 bits
// stays negative.
func seededRandom(seed string, min, max float64, index int) float64 {
	str := seed + strconv.Itoa(index)
	var hash int32
	for _, ch := range str {
		hash = (hash << 5) - hash + int32(ch)
	}
	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return min + float64(abs%1000)/1000*(max-min)
}

// GenerateNodes deterministically lays out the initial deposits for a seed,
// keeping a 100-unit margin from the map edge.
func GenerateNodes(seed string, count int, mapSize float64) []*ResourceNode {
	nodes := make([]*ResourceNode, 0, count)
	for i := 0; i < count; i++ {
		nodes = append(nodes, &ResourceNode{
			ID: fmt.Sprintf("node-%d", i),
			Position: Vec2{
				X: seededRandom(seed, 100, mapSize-100, i*2),
				Y: seededRandom(seed, 100, mapSize-100, i*2+1),
			},
			Type:       ResourceTypes[int(seededRandom(seed, 0, float64(len(ResourceTypes)), i+100))%len(ResourceTypes)],
			Amount:     int(seededRandom(seed, 5, 25, i+200)),
			Depleted:   false,
			Size:       seededRandom(seed, 15, 30, i+300),
			PulseSpeed: seededRandom(seed, 1, 3, i+400),
			PulsePhase: seededRandom(seed, 0, math.Pi*2, i+500),
		})
	}
	return nodes
}

// expandNodes places new deposits uniformly in the ring exposed by growing the
// map from oldSize to newSize. Placement retries a bounded number of times to
// keep MinNodeDistance from existing nodes and accepts the last candidate when
// retries run out; density wins over a hard spacing guarantee.
func expandNodes(rng *rand.Rand, cfg MapConfig, oldSize, newSize float64, existing []*ResourceNode, seq int) []*ResourceNode {
	if newSize <= oldSize {
		return nil
	}

	area := newSize*newSize - oldSize*oldSize
	count := int(area / 10000 * cfg.MinResourceDensity)

	// The ring splits into a right band (full height) and a bottom band
	// (old width); pick between them by area so placement stays uniform.
	rightArea := (newSize - oldSize) * newSize

	nodes := make([]*ResourceNode, 0, count)
	for i := 0; i < count; i++ {
		var pos Vec2
		for attempt := 0; attempt < cfg.PlacementAttempts; attempt++ {
			if rng.Float64()*area < rightArea {
				pos = Vec2{
					X: oldSize + rng.Float64()*(newSize-oldSize),
					Y: rng.Float64() * newSize,
				}
			} else {
				pos = Vec2{
					X: rng.Float64() * oldSize,
					Y: oldSize + rng.Float64()*(newSize-oldSize),
				}
			}
			if !tooClose(pos, existing, cfg.MinNodeDistance) {
				break
			}
		}

		nodes = append(nodes, &ResourceNode{
			ID:         fmt.Sprintf("expansion-node-%d-%d", seq, i),
			Position:   pos,
			Type:       ResourceTypes[rng.Intn(len(ResourceTypes))],
			Amount:     rng.Intn(20) + 5,
			Depleted:   false,
			Size:       rng.Float64()*15 + 15,
			PulseSpeed: rng.Float64()*2 + 1,
			PulsePhase: rng.Float64() * math.Pi * 2,
		})
	}
	return nodes
}

func tooClose(pos Vec2, nodes []*ResourceNode, minDist float64) bool {
	for _, n := range nodes {
		dx := n.Position.X - pos.X
		dy := n.Position.Y - pos.Y
		if math.Sqrt(dx*dx+dy*dy) < minDist {
			return true
		}
	}
	return false
}
