// Package world keeps the sniffer's view of the current cluster: who and
// what is around the local player. It is fed by dispatcher handlers.
package world

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/metrics"
)

type Player struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Guild     string         `json:"guild,omitempty"`
	Alliance  string         `json:"alliance,omitempty"`
	Faction   int            `json:"faction"`
	Position  events.Vector2 `json:"position"`
	Speed     float32        `json:"speed"`
	Health    events.Health  `json:"health"`
	Mounted   bool           `json:"mounted"`
	Equipment []int          `json:"equipment,omitempty"`
}

type Mob struct {
	ID       int64          `json:"id"`
	TypeID   int            `json:"typeId"`
	Position events.Vector2 `json:"position"`
	Health   events.Health  `json:"health"`
	Charge   int            `json:"charge"`
	Tier     int            `json:"tier"`
}

type Harvestable struct {
	ID       int64          `json:"id"`
	TypeID   int            `json:"typeId"`
	Tier     int            `json:"tier"`
	Position events.Vector2 `json:"position"`
	Count    int            `json:"count"`
	Charge   int            `json:"charge"`
}

type LootChest struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Position events.Vector2 `json:"position"`
	Tier     int            `json:"tier"`
}

type Dungeon struct {
	ID       int64          `json:"id"`
	Type     string         `json:"type"`
	Position events.Vector2 `json:"position"`
	Charges  int            `json:"charges"`
	Tier     int            `json:"tier"`
}

type FishingZone struct {
	ID           int64          `json:"id"`
	Position     events.Vector2 `json:"position"`
	Size         int            `json:"size"`
	RespawnCount int            `json:"respawnCount"`
}

type Wisp struct {
	ID        int64          `json:"id"`
	Position  events.Vector2 `json:"position"`
	Collected bool           `json:"collected"`
}

// Cluster is the map the local player is in.
type Cluster struct {
	LocationID string    `json:"locationId"`
	Type       string    `json:"type,omitempty"`
	EnteredAt  time.Time `json:"enteredAt"`
}

// LocalPlayer is the player running the sniffer.
type LocalPlayer struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Guild    string         `json:"guild,omitempty"`
	Alliance string         `json:"alliance,omitempty"`
	Position events.Vector2 `json:"position"`
	Known    bool           `json:"known"`
}

// World holds one store per entity family. Each store and the cluster and
// local player records have their own lock.
type World struct {
	Players      *Store[Player]
	Mobs         *Store[Mob]
	Harvestables *Store[Harvestable]
	Chests       *Store[LootChest]
	Dungeons     *Store[Dungeon]
	FishingZones *Store[FishingZone]
	Wisps        *Store[Wisp]

	clusterMu sync.RWMutex
	cluster   Cluster

	localMu sync.RWMutex
	local   LocalPlayer

	logger zerolog.Logger
}

// New creates an empty world.
func New(logger zerolog.Logger) *World {
	return &World{
		Players:      newStore[Player](),
		Mobs:         newStore[Mob](),
		Harvestables: newStore[Harvestable](),
		Chests:       newStore[LootChest](),
		Dungeons:     newStore[Dungeon](),
		FishingZones: newStore[FishingZone](),
		Wisps:        newStore[Wisp](),
		logger:       logger,
	}
}

// handledKinds are the kinds the world subscribes to.
var handledKinds = []events.Kind{
	events.KindNewCharacter, events.KindMove, events.KindLeave,
	events.KindHealthUpdate, events.KindRegenerationChanged, events.KindMounted,
	events.KindChangeFlaggingFinished, events.KindCharacterEquipmentChanged,
	events.KindMistsPlayerJoined, events.KindNewMob, events.KindMobChangeState,
	events.KindNewHarvestable, events.KindNewHarvestablesList,
	events.KindHarvestableChangeState, events.KindNewLootChest,
	events.KindNewDungeon, events.KindNewFishingZone, events.KindNewGatedWisp,
	events.KindWispGateOpened, events.KindChangeCluster, events.KindJoinResponse,
	events.KindMoveRequest,
}

// HandlerName is the name world handlers are registered under.
const HandlerName = "world"

// Register subscribes the world to every kind it tracks.
func (w *World) Register(d *events.Dispatcher) {
	for _, k := range handledKinds {
		d.Subscribe(k, HandlerName, w.handle)
	}
}

// Unregister removes the world handlers.
func (w *World) Unregister(d *events.Dispatcher) {
	for _, k := range handledKinds {
		d.Unsubscribe(k, HandlerName)
	}
}

func (w *World) handle(_ context.Context, ev *events.Event) error {
	w.Apply(ev)
	return nil
}

// Apply folds one event into the world state.
func (w *World) Apply(ev *events.Event) {
	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	switch p := ev.Payload.(type) {
	case *events.NewCharacter:
		w.Players.Put(p.ID, Player{
			ID:        p.ID,
			Name:      p.Name,
			Guild:     p.Guild,
			Alliance:  p.Alliance,
			Faction:   p.Faction,
			Position:  p.Position,
			Speed:     p.Speed,
			Health:    p.Health,
			Equipment: p.Equipment,
		}, at)

	case *events.Move:
		// Mobs move too; whichever store knows the id gets the update.
		if !w.Players.Update(p.ID, at, func(pl *Player) {
			pl.Position = p.NewPosition
			pl.Speed = p.Speed
		}) {
			w.Mobs.Update(p.ID, at, func(m *Mob) { m.Position = p.NewPosition })
		}

	case *events.Leave:
		w.Players.Remove(p.ID)
		w.Mobs.Remove(p.ID)

	case *events.HealthUpdate:
		w.setHealth(p.ID, p.Health, at)

	case *events.RegenerationChanged:
		w.setHealth(p.ID, p.Health, at)

	case *events.Mounted:
		w.Players.Update(p.ID, at, func(pl *Player) { pl.Mounted = p.IsMounted })

	case *events.ChangeFlaggingFinished:
		w.Players.Update(p.ID, at, func(pl *Player) { pl.Faction = p.Faction })

	case *events.CharacterEquipmentChanged:
		w.Players.Update(p.ID, at, func(pl *Player) { pl.Equipment = p.Equipment })

	case *events.MistsPlayerJoined:
		w.Players.Update(p.ID, at, func(pl *Player) {
			if p.Name != "" {
				pl.Name = p.Name
			}
			pl.Guild = p.Guild
			pl.Alliance = p.Alliance
		})

	case *events.NewMob:
		w.Mobs.Put(p.ID, Mob{
			ID:       p.ID,
			TypeID:   p.TypeID,
			Position: p.Position,
			Health:   p.Health,
			Charge:   p.Charge,
			Tier:     p.Tier,
		}, at)

	case *events.MobChangeState:
		w.Mobs.Update(p.ID, at, func(m *Mob) { m.Charge = p.Charge })

	case *events.NewHarvestable:
		w.Harvestables.Put(p.ID, Harvestable{
			ID:       p.ID,
			TypeID:   p.TypeID,
			Tier:     p.Tier,
			Position: p.Position,
			Count:    p.Charges,
		}, at)

	case *events.NewHarvestablesList:
		for _, it := range p.Items {
			w.Harvestables.Put(it.ID, Harvestable{
				ID:       it.ID,
				TypeID:   it.TypeID,
				Tier:     it.Tier,
				Position: it.Position,
				Count:    it.Charges,
			}, at)
		}

	case *events.HarvestableChangeState:
		w.Harvestables.Update(p.ID, at, func(h *Harvestable) {
			h.Count = p.Count
			h.Charge = p.Charge
		})

	case *events.NewLootChest:
		w.Chests.Put(p.ID, LootChest{ID: p.ID, Name: p.Name, Position: p.Position, Tier: p.Tier}, at)

	case *events.NewDungeon:
		w.Dungeons.Put(p.ID, Dungeon{ID: p.ID, Type: p.Type, Position: p.Position, Charges: p.Charges, Tier: p.Tier}, at)

	case *events.NewFishingZone:
		w.FishingZones.Put(p.ID, FishingZone{ID: p.ID, Position: p.Position, Size: p.Size, RespawnCount: p.RespawnCount}, at)

	case *events.NewGatedWisp:
		w.Wisps.Put(p.ID, Wisp{ID: p.ID, Position: p.Position, Collected: p.Collected}, at)

	case *events.WispGateOpened:
		w.Wisps.Update(p.ID, at, func(wi *Wisp) { wi.Collected = p.Collected })

	case *events.ChangeCluster:
		w.enterCluster(p.LocationID, p.Type, at)

	case *events.JoinResponse:
		w.localMu.Lock()
		w.local = LocalPlayer{
			ID:       p.ID,
			Name:     p.Name,
			Guild:    p.Guild,
			Alliance: p.Alliance,
			Position: p.Position,
			Known:    true,
		}
		w.localMu.Unlock()
		if p.LocationID != "" {
			w.enterCluster(p.LocationID, "", at)
		}

	case *events.MoveRequest:
		w.localMu.Lock()
		w.local.Position = p.NewPosition
		w.local.Known = true
		w.localMu.Unlock()
	}
}

func (w *World) setHealth(id int64, h events.Health, at time.Time) {
	if !w.Players.Update(id, at, func(pl *Player) { pl.Health = h }) {
		w.Mobs.Update(id, at, func(m *Mob) { m.Health = h })
	}
}

// enterCluster records the new cluster and forgets every entity of the
// previous one.
func (w *World) enterCluster(locationID, typ string, at time.Time) {
	w.clusterMu.Lock()
	prev := w.cluster.LocationID
	w.cluster = Cluster{LocationID: locationID, Type: typ, EnteredAt: at}
	w.clusterMu.Unlock()

	w.clearEntities()
	w.logger.Info().
		Str("from", prev).
		Str("to", locationID).
		Msg("cluster changed")
}

func (w *World) clearEntities() {
	w.Players.Clear()
	w.Mobs.Clear()
	w.Harvestables.Clear()
	w.Chests.Clear()
	w.Dungeons.Clear()
	w.FishingZones.Clear()
	w.Wisps.Clear()
}

// Cluster returns the current cluster.
func (w *World) Cluster() Cluster {
	w.clusterMu.RLock()
	defer w.clusterMu.RUnlock()
	return w.cluster
}

// Local returns the local player record.
func (w *World) Local() LocalPlayer {
	w.localMu.RLock()
	defer w.localMu.RUnlock()
	return w.local
}

// LocalPosition reports the local player position once it is known.
func (w *World) LocalPosition() (events.Vector2, bool) {
	w.localMu.RLock()
	defer w.localMu.RUnlock()
	return w.local.Position, w.local.Known
}

// Counts returns the number of tracked entities per store.
func (w *World) Counts() map[string]int {
	return map[string]int{
		"players":       w.Players.Len(),
		"mobs":          w.Mobs.Len(),
		"harvestables":  w.Harvestables.Len(),
		"chests":        w.Chests.Len(),
		"dungeons":      w.Dungeons.Len(),
		"fishing_zones": w.FishingZones.Len(),
		"wisps":         w.Wisps.Len(),
	}
}

// Snapshot is a consistent-per-store copy of the world.
type Snapshot struct {
	Cluster      Cluster        `json:"cluster"`
	Local        LocalPlayer    `json:"local"`
	Players      []Player       `json:"players"`
	Mobs         []Mob          `json:"mobs"`
	Harvestables []Harvestable  `json:"harvestables"`
	Chests       []LootChest    `json:"chests"`
	Dungeons     []Dungeon      `json:"dungeons"`
	FishingZones []FishingZone  `json:"fishingZones"`
	Wisps        []Wisp         `json:"wisps"`
	Counts       map[string]int `json:"counts"`
}

// Snapshot copies every store.
func (w *World) Snapshot() Snapshot {
	return Snapshot{
		Cluster:      w.Cluster(),
		Local:        w.Local(),
		Players:      w.Players.List(),
		Mobs:         w.Mobs.List(),
		Harvestables: w.Harvestables.List(),
		Chests:       w.Chests.List(),
		Dungeons:     w.Dungeons.List(),
		FishingZones: w.FishingZones.List(),
		Wisps:        w.Wisps.List(),
		Counts:       w.Counts(),
	}
}

// Evict drops entities not updated within olderThan and refreshes the
// entity gauges. The local player is never evicted.
func (w *World) Evict(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	n := w.Players.Evict(cutoff) +
		w.Mobs.Evict(cutoff) +
		w.Harvestables.Evict(cutoff) +
		w.Chests.Evict(cutoff) +
		w.Dungeons.Evict(cutoff) +
		w.FishingZones.Evict(cutoff) +
		w.Wisps.Evict(cutoff)

	for store, count := range w.Counts() {
		metrics.WorldEntities.WithLabelValues(store).Set(float64(count))
	}
	if n > 0 {
		w.logger.Debug().Int("evicted", n).Msg("stale entities evicted")
	}
	return n
}
