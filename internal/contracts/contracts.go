// Package contracts defines the versioned records published to external
// consumers and the transformers that derive them from decoded events.
package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/albionradar/sniffer/internal/events"
)

// Contract is a published record.
type Contract interface {
	ContractName() string
	Meta() Envelope
}

// Envelope holds the fields every contract carries.
type Envelope struct {
	EventID      string          `json:"eventId"`
	ObservedAt   time.Time       `json:"observedAt"`
	Presentation *PresentationV1 `json:"presentation,omitempty"`
}

// Meta returns the envelope.
func (e Envelope) Meta() Envelope { return e }

// PresentationV1 carries enrichment annotations.
type PresentationV1 struct {
	TierColor      string  `json:"tierColor,omitempty"`
	HighlightColor string  `json:"highlightColor,omitempty"`
	Highlighted    bool    `json:"highlighted,omitempty"`
	ProximityAlert bool    `json:"proximityAlert,omitempty"`
	AlertLevel     string  `json:"alertLevel,omitempty"`
	Distance       float32 `json:"distance,omitempty"`
}

func newEnvelope(ev *events.Event) Envelope {
	env := Envelope{
		EventID:    uuid.NewString(),
		ObservedAt: ev.Timestamp.UTC(),
	}
	if a := ev.Annotations; a != (events.Annotations{}) {
		env.Presentation = &PresentationV1{
			TierColor:      a.TierColor,
			HighlightColor: a.HighlightColor,
			Highlighted:    a.Highlighted,
			ProximityAlert: a.ProximityAlert,
			AlertLevel:     a.AlertLevel,
			Distance:       a.Distance,
		}
	}
	return env
}

type PlayerSpottedV1 struct {
	Envelope
	PlayerID     int64   `json:"playerId"`
	PlayerName   string  `json:"playerName,omitempty"`
	GuildName    string  `json:"guildName,omitempty"`
	AllianceName string  `json:"allianceName,omitempty"`
	X            float32 `json:"x"`
	Y            float32 `json:"y"`
	Speed        float32 `json:"speed,omitempty"`
	Tier         int     `json:"tier"`
}

func (PlayerSpottedV1) ContractName() string { return "PlayerSpottedV1" }

type PlayerMoveRequestV1 struct {
	Envelope
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	NewX  float32 `json:"newX"`
	NewY  float32 `json:"newY"`
	Speed float32 `json:"speed"`
}

func (PlayerMoveRequestV1) ContractName() string { return "PlayerMoveRequestV1" }

type KeySyncV1 struct {
	Envelope
	Key []byte `json:"key"`
}

func (KeySyncV1) ContractName() string { return "KeySyncV1" }

type EntityLeftV1 struct {
	Envelope
	EntityID int64 `json:"entityId"`
}

func (EntityLeftV1) ContractName() string { return "EntityLeftV1" }

type HealthUpdatedV1 struct {
	Envelope
	EntityID  int64 `json:"entityId"`
	Health    int   `json:"health"`
	MaxHealth int   `json:"maxHealth"`
}

func (HealthUpdatedV1) ContractName() string { return "HealthUpdatedV1" }

type RegenerationChangedV1 struct {
	Envelope
	EntityID     int64   `json:"entityId"`
	Regenerating bool    `json:"regenerating"`
	Health       int     `json:"health"`
	MaxHealth    int     `json:"maxHealth"`
	Rate         float32 `json:"rate"`
}

func (RegenerationChangedV1) ContractName() string { return "RegenerationChangedV1" }

type MountedStateChangedV1 struct {
	Envelope
	EntityID  int64 `json:"entityId"`
	IsMounted bool  `json:"isMounted"`
}

func (MountedStateChangedV1) ContractName() string { return "MountedStateChangedV1" }

type ClusterChangedV1 struct {
	Envelope
	LocationID string `json:"locationId"`
	Type       string `json:"type,omitempty"`
}

func (ClusterChangedV1) ContractName() string { return "ClusterChangedV1" }

type FlaggingFinishedV1 struct {
	Envelope
	EntityID int64 `json:"entityId"`
	Faction  int   `json:"faction"`
}

func (FlaggingFinishedV1) ContractName() string { return "FlaggingFinishedV1" }

type EquipmentChangedV1 struct {
	Envelope
	EntityID  int64 `json:"entityId"`
	Equipment []int `json:"equipment"`
}

func (EquipmentChangedV1) ContractName() string { return "EquipmentChangedV1" }

type MobSpawnedV1 struct {
	Envelope
	MobID     int64   `json:"mobId"`
	TypeID    int     `json:"typeId"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"maxHealth"`
	Charge    int     `json:"charge"`
	Tier      int     `json:"tier"`
}

func (MobSpawnedV1) ContractName() string { return "MobSpawnedV1" }

type MobStateChangedV1 struct {
	Envelope
	MobID  int64 `json:"mobId"`
	Charge int   `json:"charge"`
}

func (MobStateChangedV1) ContractName() string { return "MobStateChangedV1" }

type HarvestableFoundV1 struct {
	Envelope
	HarvestableID int64   `json:"harvestableId"`
	TypeID        int     `json:"typeId"`
	X             float32 `json:"x"`
	Y             float32 `json:"y"`
	Tier          int     `json:"tier"`
	Charges       int     `json:"charges"`
}

func (HarvestableFoundV1) ContractName() string { return "HarvestableFoundV1" }

// HarvestableItemV1 is one entry of HarvestablesListFoundV1.
type HarvestableItemV1 struct {
	HarvestableID int64   `json:"harvestableId"`
	TypeID        int     `json:"typeId"`
	X             float32 `json:"x"`
	Y             float32 `json:"y"`
	Tier          int     `json:"tier"`
	Charges       int     `json:"charges"`
}

type HarvestablesListFoundV1 struct {
	Envelope
	Items []HarvestableItemV1 `json:"items"`
}

func (HarvestablesListFoundV1) ContractName() string { return "HarvestablesListFoundV1" }

type HarvestableStateChangedV1 struct {
	Envelope
	HarvestableID int64 `json:"harvestableId"`
	Count         int   `json:"count"`
	Charge        int   `json:"charge"`
}

func (HarvestableStateChangedV1) ContractName() string { return "HarvestableStateChangedV1" }

type LootChestFoundV1 struct {
	Envelope
	ChestID int64   `json:"chestId"`
	Name    string  `json:"name,omitempty"`
	X       float32 `json:"x"`
	Y       float32 `json:"y"`
	Tier    int     `json:"tier"`
}

func (LootChestFoundV1) ContractName() string { return "LootChestFoundV1" }

type DungeonFoundV1 struct {
	Envelope
	DungeonID int64   `json:"dungeonId"`
	Type      string  `json:"type,omitempty"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Charges   int     `json:"charges"`
	Tier      int     `json:"tier"`
}

func (DungeonFoundV1) ContractName() string { return "DungeonFoundV1" }

type FishingZoneFoundV1 struct {
	Envelope
	ZoneID       int64   `json:"zoneId"`
	X            float32 `json:"x"`
	Y            float32 `json:"y"`
	Size         int     `json:"size"`
	RespawnCount int     `json:"respawnCount"`
}

func (FishingZoneFoundV1) ContractName() string { return "FishingZoneFoundV1" }

type GatedWispFoundV1 struct {
	Envelope
	WispID    int64   `json:"wispId"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Collected bool    `json:"collected"`
}

func (GatedWispFoundV1) ContractName() string { return "GatedWispFoundV1" }

type WispGateOpenedV1 struct {
	Envelope
	WispID    int64 `json:"wispId"`
	Collected bool  `json:"collected"`
}

func (WispGateOpenedV1) ContractName() string { return "WispGateOpenedV1" }

type ClusterObjectsLoadedV1 struct {
	Envelope
	ObjectIDs []int `json:"objectIds"`
}

func (ClusterObjectsLoadedV1) ContractName() string { return "ClusterObjectsLoadedV1" }

type MistsPlayerJoinedV1 struct {
	Envelope
	PlayerID     int64  `json:"playerId"`
	PlayerName   string `json:"playerName,omitempty"`
	GuildName    string `json:"guildName,omitempty"`
	AllianceName string `json:"allianceName,omitempty"`
}

func (MistsPlayerJoinedV1) ContractName() string { return "MistsPlayerJoinedV1" }
