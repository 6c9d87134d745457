package contracts

import (
	"github.com/albionradar/sniffer/internal/events"
)

// Transformer turns a decoded event into a published contract.
type Transformer interface {
	Name() string
	Kinds() []events.Kind
	CanTransform(ev *events.Event) bool
	Transform(ev *events.Event) (topic string, contract Contract, ok bool)
}

// FuncTransformer adapts a conversion function to Transformer. The function
// reports false when the payload does not have the expected type.
type FuncTransformer struct {
	name  string
	kinds []events.Kind
	fn    func(ev *events.Event) (Contract, bool)
}

// NewTransformer builds a transformer claiming kinds.
func NewTransformer(name string, fn func(ev *events.Event) (Contract, bool), kinds ...events.Kind) *FuncTransformer {
	return &FuncTransformer{name: name, kinds: kinds, fn: fn}
}

func (t *FuncTransformer) Name() string { return t.name }

func (t *FuncTransformer) Kinds() []events.Kind {
	out := make([]events.Kind, len(t.kinds))
	copy(out, t.kinds)
	return out
}

func (t *FuncTransformer) CanTransform(ev *events.Event) bool {
	if ev == nil || ev.Payload == nil {
		return false
	}
	for _, k := range t.kinds {
		if ev.Kind == k {
			return true
		}
	}
	return false
}

func (t *FuncTransformer) Transform(ev *events.Event) (string, Contract, bool) {
	if !t.CanTransform(ev) {
		return "", nil, false
	}
	c, ok := t.fn(ev)
	if !ok || c == nil {
		return "", nil, false
	}
	return TopicFor(c.ContractName()), c, true
}

// Defaults returns one transformer per distributed kind. JoinResponse stays
// internal and has none.
func Defaults() []Transformer {
	return []Transformer{
		NewTransformer("NewCharacterToPlayerSpottedV1", newCharacterToPlayerSpotted, events.KindNewCharacter),
		NewTransformer("MoveToPlayerSpottedV1", moveToPlayerSpotted, events.KindMove),
		NewTransformer("MoveRequestToPlayerMoveRequestV1", moveRequestToV1, events.KindMoveRequest),
		NewTransformer("KeySyncToKeySyncV1", keySyncToV1, events.KindKeySync),
		NewTransformer("LeaveToEntityLeftV1", leaveToV1, events.KindLeave),
		NewTransformer("HealthUpdateToHealthUpdatedV1", healthUpdateToV1, events.KindHealthUpdate),
		NewTransformer("RegenerationChangedToRegenerationChangedV1", regenerationToV1, events.KindRegenerationChanged),
		NewTransformer("MountedToMountedStateChangedV1", mountedToV1, events.KindMounted),
		NewTransformer("ChangeClusterToClusterChangedV1", changeClusterToV1, events.KindChangeCluster),
		NewTransformer("ChangeFlaggingFinishedToFlaggingFinishedV1", flaggingToV1, events.KindChangeFlaggingFinished),
		NewTransformer("CharacterEquipmentChangedToEquipmentChangedV1", equipmentToV1, events.KindCharacterEquipmentChanged),
		NewTransformer("NewMobToMobSpawnedV1", newMobToV1, events.KindNewMob),
		NewTransformer("MobChangeStateToMobStateChangedV1", mobStateToV1, events.KindMobChangeState),
		NewTransformer("NewHarvestableToHarvestableFoundV1", harvestableToV1, events.KindNewHarvestable),
		NewTransformer("NewHarvestablesListToHarvestablesListFoundV1", harvestablesListToV1, events.KindNewHarvestablesList),
		NewTransformer("HarvestableChangeStateToHarvestableStateChangedV1", harvestableStateToV1, events.KindHarvestableChangeState),
		NewTransformer("NewLootChestToLootChestFoundV1", lootChestToV1, events.KindNewLootChest),
		NewTransformer("NewDungeonToDungeonFoundV1", dungeonToV1, events.KindNewDungeon),
		NewTransformer("NewFishingZoneToFishingZoneFoundV1", fishingZoneToV1, events.KindNewFishingZone),
		NewTransformer("NewGatedWispToGatedWispFoundV1", gatedWispToV1, events.KindNewGatedWisp),
		NewTransformer("WispGateOpenedToWispGateOpenedV1", wispOpenedToV1, events.KindWispGateOpened),
		NewTransformer("LoadClusterObjectsToClusterObjectsLoadedV1", clusterObjectsToV1, events.KindLoadClusterObjects),
		NewTransformer("MistsPlayerJoinedToMistsPlayerJoinedV1", mistsJoinedToV1, events.KindMistsPlayerJoined),
	}
}

func newCharacterToPlayerSpotted(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewCharacter)
	if !ok {
		return nil, false
	}
	return PlayerSpottedV1{
		Envelope:     newEnvelope(ev),
		PlayerID:     p.ID,
		PlayerName:   p.Name,
		GuildName:    p.Guild,
		AllianceName: p.Alliance,
		X:            p.Position.X,
		Y:            p.Position.Y,
		Speed:        p.Speed,
	}, true
}

// Movement only knows the entity id; names come from an earlier NewCharacter.
func moveToPlayerSpotted(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.Move)
	if !ok {
		return nil, false
	}
	return PlayerSpottedV1{
		Envelope: newEnvelope(ev),
		PlayerID: p.ID,
		X:        p.NewPosition.X,
		Y:        p.NewPosition.Y,
		Speed:    p.Speed,
	}, true
}

func moveRequestToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.MoveRequest)
	if !ok {
		return nil, false
	}
	return PlayerMoveRequestV1{
		Envelope: newEnvelope(ev),
		X:        p.Position.X,
		Y:        p.Position.Y,
		NewX:     p.NewPosition.X,
		NewY:     p.NewPosition.Y,
		Speed:    p.Speed,
	}, true
}

func keySyncToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.KeySync)
	if !ok {
		return nil, false
	}
	key := make([]byte, len(p.Key))
	copy(key, p.Key)
	return KeySyncV1{Envelope: newEnvelope(ev), Key: key}, true
}

func leaveToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.Leave)
	if !ok {
		return nil, false
	}
	return EntityLeftV1{Envelope: newEnvelope(ev), EntityID: p.ID}, true
}

func healthUpdateToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.HealthUpdate)
	if !ok {
		return nil, false
	}
	return HealthUpdatedV1{
		Envelope:  newEnvelope(ev),
		EntityID:  p.ID,
		Health:    p.Health.Value,
		MaxHealth: p.Health.Max,
	}, true
}

func regenerationToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.RegenerationChanged)
	if !ok {
		return nil, false
	}
	return RegenerationChangedV1{
		Envelope:     newEnvelope(ev),
		EntityID:     p.ID,
		Regenerating: p.Regenerating,
		Health:       p.Health.Value,
		MaxHealth:    p.Health.Max,
		Rate:         p.Rate,
	}, true
}

func mountedToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.Mounted)
	if !ok {
		return nil, false
	}
	return MountedStateChangedV1{Envelope: newEnvelope(ev), EntityID: p.ID, IsMounted: p.IsMounted}, true
}

func changeClusterToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.ChangeCluster)
	if !ok {
		return nil, false
	}
	return ClusterChangedV1{Envelope: newEnvelope(ev), LocationID: p.LocationID, Type: p.Type}, true
}

func flaggingToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.ChangeFlaggingFinished)
	if !ok {
		return nil, false
	}
	return FlaggingFinishedV1{Envelope: newEnvelope(ev), EntityID: p.ID, Faction: p.Faction}, true
}

func equipmentToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.CharacterEquipmentChanged)
	if !ok {
		return nil, false
	}
	return EquipmentChangedV1{
		Envelope:  newEnvelope(ev),
		EntityID:  p.ID,
		Equipment: append([]int(nil), p.Equipment...),
	}, true
}

func newMobToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewMob)
	if !ok {
		return nil, false
	}
	return MobSpawnedV1{
		Envelope:  newEnvelope(ev),
		MobID:     p.ID,
		TypeID:    p.TypeID,
		X:         p.Position.X,
		Y:         p.Position.Y,
		Health:    p.Health.Value,
		MaxHealth: p.Health.Max,
		Charge:    p.Charge,
		Tier:      p.Tier,
	}, true
}

func mobStateToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.MobChangeState)
	if !ok {
		return nil, false
	}
	return MobStateChangedV1{Envelope: newEnvelope(ev), MobID: p.ID, Charge: p.Charge}, true
}

func harvestableToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewHarvestable)
	if !ok {
		return nil, false
	}
	return HarvestableFoundV1{
		Envelope:      newEnvelope(ev),
		HarvestableID: p.ID,
		TypeID:        p.TypeID,
		X:             p.Position.X,
		Y:             p.Position.Y,
		Tier:          p.Tier,
		Charges:       p.Charges,
	}, true
}

func harvestablesListToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewHarvestablesList)
	if !ok {
		return nil, false
	}
	items := make([]HarvestableItemV1, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, HarvestableItemV1{
			HarvestableID: it.ID,
			TypeID:        it.TypeID,
			X:             it.Position.X,
			Y:             it.Position.Y,
			Tier:          it.Tier,
			Charges:       it.Charges,
		})
	}
	return HarvestablesListFoundV1{Envelope: newEnvelope(ev), Items: items}, true
}

func harvestableStateToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.HarvestableChangeState)
	if !ok {
		return nil, false
	}
	return HarvestableStateChangedV1{
		Envelope:      newEnvelope(ev),
		HarvestableID: p.ID,
		Count:         p.Count,
		Charge:        p.Charge,
	}, true
}

func lootChestToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewLootChest)
	if !ok {
		return nil, false
	}
	return LootChestFoundV1{
		Envelope: newEnvelope(ev),
		ChestID:  p.ID,
		Name:     p.Name,
		X:        p.Position.X,
		Y:        p.Position.Y,
		Tier:     p.Tier,
	}, true
}

func dungeonToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewDungeon)
	if !ok {
		return nil, false
	}
	return DungeonFoundV1{
		Envelope:  newEnvelope(ev),
		DungeonID: p.ID,
		Type:      p.Type,
		X:         p.Position.X,
		Y:         p.Position.Y,
		Charges:   p.Charges,
		Tier:      p.Tier,
	}, true
}

func fishingZoneToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewFishingZone)
	if !ok {
		return nil, false
	}
	return FishingZoneFoundV1{
		Envelope:     newEnvelope(ev),
		ZoneID:       p.ID,
		X:            p.Position.X,
		Y:            p.Position.Y,
		Size:         p.Size,
		RespawnCount: p.RespawnCount,
	}, true
}

func gatedWispToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.NewGatedWisp)
	if !ok {
		return nil, false
	}
	return GatedWispFoundV1{
		Envelope:  newEnvelope(ev),
		WispID:    p.ID,
		X:         p.Position.X,
		Y:         p.Position.Y,
		Collected: p.Collected,
	}, true
}

func wispOpenedToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.WispGateOpened)
	if !ok {
		return nil, false
	}
	return WispGateOpenedV1{Envelope: newEnvelope(ev), WispID: p.ID, Collected: p.Collected}, true
}

func clusterObjectsToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.LoadClusterObjects)
	if !ok {
		return nil, false
	}
	return ClusterObjectsLoadedV1{
		Envelope:  newEnvelope(ev),
		ObjectIDs: append([]int(nil), p.ObjectIDs...),
	}, true
}

func mistsJoinedToV1(ev *events.Event) (Contract, bool) {
	p, ok := ev.Payload.(*events.MistsPlayerJoined)
	if !ok {
		return nil, false
	}
	return MistsPlayerJoinedV1{
		Envelope:     newEnvelope(ev),
		PlayerID:     p.ID,
		PlayerName:   p.Name,
		GuildName:    p.Guild,
		AllianceName: p.Alliance,
	}, true
}
