// Package events defines the decoded game event model and the dispatcher that
// fans events out to in-process consumers.
package events

import (
	"math"
	"time"
)

// Kind identifies the game event or operation an Event was decoded from.
type Kind string

const (
	// Player events
	KindNewCharacter              Kind = "NewCharacter"
	KindMove                      Kind = "Move"
	KindMounted                   Kind = "Mounted"
	KindChangeFlaggingFinished    Kind = "ChangeFlaggingFinished"
	KindCharacterEquipmentChanged Kind = "CharacterEquipmentChanged"
	KindMistsPlayerJoined         Kind = "MistsPlayerJoined"

	// Mob events
	KindNewMob         Kind = "NewMob"
	KindMobChangeState Kind = "MobChangeState"

	// Resource events
	KindNewHarvestable         Kind = "NewHarvestable"
	KindNewHarvestablesList    Kind = "NewHarvestablesList"
	KindHarvestableChangeState Kind = "HarvestableChangeState"

	// Points of interest
	KindNewLootChest   Kind = "NewLootChest"
	KindNewDungeon     Kind = "NewDungeon"
	KindNewFishingZone Kind = "NewFishingZone"
	KindNewGatedWisp   Kind = "NewGatedWisp"
	KindWispGateOpened Kind = "WispGateOpened"

	// World and session events
	KindKeySync             Kind = "KeySync"
	KindLeave               Kind = "Leave"
	KindHealthUpdate        Kind = "HealthUpdate"
	KindRegenerationChanged Kind = "RegenerationChanged"
	KindChangeCluster       Kind = "ChangeCluster"
	KindLoadClusterObjects  Kind = "LoadClusterObjects"

	// Operations (client requests and server responses)
	KindMoveRequest  Kind = "MoveRequest"
	KindJoinResponse Kind = "JoinResponse"
)

// Category groups kinds for profile feature toggles.
type Category string

const (
	CategoryPlayer   Category = "player"
	CategoryMob      Category = "mob"
	CategoryResource Category = "resource"
	CategoryChest    Category = "chest"
	CategoryDungeon  Category = "dungeon"
	CategoryFishing  Category = "fishing"
	CategoryWisp     Category = "wisp"
	CategoryWorld    Category = "world"
)

var kindCategories = map[Kind]Category{
	KindNewCharacter:              CategoryPlayer,
	KindMove:                      CategoryPlayer,
	KindMounted:                   CategoryPlayer,
	KindChangeFlaggingFinished:    CategoryPlayer,
	KindCharacterEquipmentChanged: CategoryPlayer,
	KindMistsPlayerJoined:         CategoryPlayer,
	KindNewMob:                    CategoryMob,
	KindMobChangeState:            CategoryMob,
	KindNewHarvestable:            CategoryResource,
	KindNewHarvestablesList:       CategoryResource,
	KindHarvestableChangeState:    CategoryResource,
	KindNewLootChest:              CategoryChest,
	KindNewDungeon:                CategoryDungeon,
	KindNewFishingZone:            CategoryFishing,
	KindNewGatedWisp:              CategoryWisp,
	KindWispGateOpened:            CategoryWisp,
	KindKeySync:                   CategoryWorld,
	KindLeave:                     CategoryWorld,
	KindHealthUpdate:              CategoryWorld,
	KindRegenerationChanged:       CategoryWorld,
	KindChangeCluster:             CategoryWorld,
	KindLoadClusterObjects:        CategoryWorld,
	KindMoveRequest:               CategoryWorld,
	KindJoinResponse:              CategoryWorld,
}

// schemaNames maps kinds to their key in the offsets/indexes tables where the
// two differ.
var schemaNames = map[Kind]string{
	KindNewMob:              "NewMobEvent",
	KindHealthUpdate:        "HealthUpdateEvent",
	KindRegenerationChanged: "RegenerationHealthChangedEvent",
	KindNewHarvestable:      "NewHarvestableObject",
	KindNewFishingZone:      "NewFishingZoneObject",
	KindNewGatedWisp:        "NewWispGate",
	KindMistsPlayerJoined:   "MistsPlayerJoinedInfo",
}

// Category returns the toggle group of the kind. Unknown kinds are world
// events.
func (k Kind) Category() Category {
	if c, ok := kindCategories[k]; ok {
		return c
	}
	return CategoryWorld
}

// SchemaName returns the packet name used to look the kind up in the schema
// tables.
func (k Kind) SchemaName() string {
	if name, ok := schemaNames[k]; ok {
		return name
	}
	return string(k)
}

// AllKinds returns every known kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindNewCharacter, KindMove, KindMoveRequest, KindKeySync, KindLeave,
		KindHealthUpdate, KindRegenerationChanged, KindMounted, KindChangeCluster,
		KindChangeFlaggingFinished, KindCharacterEquipmentChanged, KindNewMob,
		KindMobChangeState, KindNewHarvestable, KindNewHarvestablesList,
		KindHarvestableChangeState, KindNewLootChest, KindNewDungeon,
		KindNewFishingZone, KindNewGatedWisp, KindWispGateOpened,
		KindLoadClusterObjects, KindMistsPlayerJoined, KindJoinResponse,
	}
}

// Vector2 is a position on the cluster plane.
type Vector2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// DistanceTo returns the euclidean distance between two points.
func (v Vector2) DistanceTo(o Vector2) float32 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	return float32(math.Sqrt(dx*dx + dy*dy))
}

// IsZero reports whether v is the origin.
func (v Vector2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Health is a current/maximum pair.
type Health struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

// Annotations carry enrichment results. They are never read by the decoder.
type Annotations struct {
	TierColor      string  `json:"tierColor,omitempty"`
	HighlightColor string  `json:"highlightColor,omitempty"`
	Highlighted    bool    `json:"highlighted,omitempty"`
	ProximityAlert bool    `json:"proximityAlert,omitempty"`
	AlertLevel     string  `json:"alertLevel,omitempty"`
	Distance       float32 `json:"distance,omitempty"`
}

// Payload is implemented by every per-kind event struct.
type Payload interface {
	EventKind() Kind
}

// HasTier is implemented by payloads that report an item or entity tier.
// A tier of 0 means unknown.
type HasTier interface {
	TierLevel() int
}

// HasPosition is implemented by payloads that carry a world position.
type HasPosition interface {
	Location() Vector2
}

// Event represents a single decoded game event.
type Event struct {
	Kind        Kind
	Timestamp   time.Time
	Payload     Payload
	Annotations Annotations
}

// New wraps a payload into an event stamped with ts.
func New(p Payload, ts time.Time) *Event {
	return &Event{
		Kind:      p.EventKind(),
		Timestamp: ts,
		Payload:   p,
	}
}

// Clone returns a shallow copy. Payloads are treated as immutable, so only
// the envelope is copied.
func (e *Event) Clone() *Event {
	cp := *e
	return &cp
}

// Tier returns the payload tier when the payload reports a known one.
func (e *Event) Tier() (int, bool) {
	t, ok := e.Payload.(HasTier)
	if !ok {
		return 0, false
	}
	lvl := t.TierLevel()
	return lvl, lvl > 0
}

// Position returns the payload position when it carries one.
func (e *Event) Position() (Vector2, bool) {
	p, ok := e.Payload.(HasPosition)
	if !ok {
		return Vector2{}, false
	}
	return p.Location(), true
}
