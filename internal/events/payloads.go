package events

// NewCharacter announces another player entering view.
type NewCharacter struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Guild     string  `json:"guild"`
	Alliance  string  `json:"alliance"`
	Faction   int     `json:"faction"`
	Position  Vector2 `json:"position"`
	Speed     float32 `json:"speed"`
	Health    Health  `json:"health"`
	Equipment []int   `json:"equipment"`
	Spells    []int   `json:"spells"`
}

func (*NewCharacter) EventKind() Kind      { return KindNewCharacter }
func (p *NewCharacter) Location() Vector2 { return p.Position }

// Move reports an entity's position update.
type Move struct {
	ID          int64   `json:"id"`
	Flags       byte    `json:"flags"`
	Position    Vector2 `json:"position"`
	NewPosition Vector2 `json:"newPosition"`
	Speed       float32 `json:"speed"`
}

func (*Move) EventKind() Kind      { return KindMove }
func (p *Move) Location() Vector2 { return p.NewPosition }

// MoveRequest is the local player's own movement request.
type MoveRequest struct {
	Position    Vector2 `json:"position"`
	NewPosition Vector2 `json:"newPosition"`
	Speed       float32 `json:"speed"`
}

func (*MoveRequest) EventKind() Kind      { return KindMoveRequest }
func (p *MoveRequest) Location() Vector2 { return p.NewPosition }

// KeySync delivers the position obfuscation key.
type KeySync struct {
	Key []byte `json:"key"`
}

func (*KeySync) EventKind() Kind { return KindKeySync }

// Leave reports an entity leaving view.
type Leave struct {
	ID int64 `json:"id"`
}

func (*Leave) EventKind() Kind { return KindLeave }

// HealthUpdate reports an entity's new health.
type HealthUpdate struct {
	ID     int64  `json:"id"`
	Health Health `json:"health"`
}

func (*HealthUpdate) EventKind() Kind { return KindHealthUpdate }

// RegenerationChanged reports a change of an entity's regeneration state.
type RegenerationChanged struct {
	ID           int64   `json:"id"`
	Regenerating bool    `json:"regenerating"`
	Health       Health  `json:"health"`
	Rate         float32 `json:"rate"`
}

func (*RegenerationChanged) EventKind() Kind { return KindRegenerationChanged }

// Mounted reports a player mounting or dismounting.
type Mounted struct {
	ID        int64 `json:"id"`
	IsMounted bool  `json:"isMounted"`
}

func (*Mounted) EventKind() Kind { return KindMounted }

// ChangeCluster reports the local player moving to another map.
type ChangeCluster struct {
	LocationID string `json:"locationId"`
	Type       string `json:"type"`
}

func (*ChangeCluster) EventKind() Kind { return KindChangeCluster }

// ChangeFlaggingFinished reports a player's new faction flag.
type ChangeFlaggingFinished struct {
	ID      int64 `json:"id"`
	Faction int   `json:"faction"`
}

func (*ChangeFlaggingFinished) EventKind() Kind { return KindChangeFlaggingFinished }

// CharacterEquipmentChanged reports a player's new equipment set.
type CharacterEquipmentChanged struct {
	ID        int64 `json:"id"`
	Equipment []int `json:"equipment"`
}

func (*CharacterEquipmentChanged) EventKind() Kind { return KindCharacterEquipmentChanged }

// NewMob announces a mob entering view.
type NewMob struct {
	ID       int64   `json:"id"`
	TypeID   int     `json:"typeId"`
	Position Vector2 `json:"position"`
	Health   Health  `json:"health"`
	Charge   int     `json:"charge"`
	Tier     int     `json:"tier"`
}

func (*NewMob) EventKind() Kind      { return KindNewMob }
func (p *NewMob) Location() Vector2 { return p.Position }
func (p *NewMob) TierLevel() int    { return p.Tier }

// MobChangeState reports a mob's enchantment charge change.
type MobChangeState struct {
	ID     int64 `json:"id"`
	Charge int   `json:"charge"`
}

func (*MobChangeState) EventKind() Kind { return KindMobChangeState }

// NewHarvestable announces a single resource node.
type NewHarvestable struct {
	ID       int64   `json:"id"`
	TypeID   int     `json:"typeId"`
	Position Vector2 `json:"position"`
	Tier     int     `json:"tier"`
	Charges  int     `json:"charges"`
}

func (*NewHarvestable) EventKind() Kind      { return KindNewHarvestable }
func (p *NewHarvestable) Location() Vector2 { return p.Position }
func (p *NewHarvestable) TierLevel() int    { return p.Tier }

// HarvestableEntry is one node of a NewHarvestablesList batch.
type HarvestableEntry struct {
	ID       int64   `json:"id"`
	TypeID   int     `json:"typeId"`
	Tier     int     `json:"tier"`
	Position Vector2 `json:"position"`
	Charges  int     `json:"charges"`
}

// NewHarvestablesList announces a batch of resource nodes.
type NewHarvestablesList struct {
	Items []HarvestableEntry `json:"items"`
}

func (*NewHarvestablesList) EventKind() Kind { return KindNewHarvestablesList }

// HarvestableChangeState reports a resource node's remaining count.
type HarvestableChangeState struct {
	ID     int64 `json:"id"`
	Count  int   `json:"count"`
	Charge int   `json:"charge"`
}

func (*HarvestableChangeState) EventKind() Kind { return KindHarvestableChangeState }

// NewLootChest announces a loot chest.
type NewLootChest struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Position Vector2 `json:"position"`
	Tier     int     `json:"tier"`
}

func (*NewLootChest) EventKind() Kind      { return KindNewLootChest }
func (p *NewLootChest) Location() Vector2 { return p.Position }
func (p *NewLootChest) TierLevel() int    { return p.Tier }

// NewDungeon announces a dungeon entrance.
type NewDungeon struct {
	ID       int64   `json:"id"`
	Type     string  `json:"type"`
	Position Vector2 `json:"position"`
	Charges  int     `json:"charges"`
	Tier     int     `json:"tier"`
}

func (*NewDungeon) EventKind() Kind      { return KindNewDungeon }
func (p *NewDungeon) Location() Vector2 { return p.Position }
func (p *NewDungeon) TierLevel() int    { return p.Tier }

// NewFishingZone announces a fishing spot.
type NewFishingZone struct {
	ID           int64   `json:"id"`
	Position     Vector2 `json:"position"`
	Size         int     `json:"size"`
	RespawnCount int     `json:"respawnCount"`
}

func (*NewFishingZone) EventKind() Kind      { return KindNewFishingZone }
func (p *NewFishingZone) Location() Vector2 { return p.Position }

// NewGatedWisp announces a mists wisp gate.
type NewGatedWisp struct {
	ID        int64   `json:"id"`
	Position  Vector2 `json:"position"`
	Collected bool    `json:"collected"`
}

func (*NewGatedWisp) EventKind() Kind      { return KindNewGatedWisp }
func (p *NewGatedWisp) Location() Vector2 { return p.Position }

// WispGateOpened reports a wisp gate being opened or collected.
type WispGateOpened struct {
	ID        int64 `json:"id"`
	Collected bool  `json:"collected"`
}

func (*WispGateOpened) EventKind() Kind { return KindWispGateOpened }

// LoadClusterObjects reports the objectives of the current cluster.
type LoadClusterObjects struct {
	ObjectIDs []int `json:"objectIds"`
}

func (*LoadClusterObjects) EventKind() Kind { return KindLoadClusterObjects }

// MistsPlayerJoined reports a player joining a mists instance.
type MistsPlayerJoined struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Guild    string `json:"guild"`
	Alliance string `json:"alliance"`
}

func (*MistsPlayerJoined) EventKind() Kind { return KindMistsPlayerJoined }

// JoinResponse is the server's answer to the local player's join. It carries
// the local identity and spawn position.
type JoinResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Guild      string  `json:"guild"`
	Alliance   string  `json:"alliance"`
	LocationID string  `json:"locationId"`
	Position   Vector2 `json:"position"`
}

func (*JoinResponse) EventKind() Kind      { return KindJoinResponse }
func (p *JoinResponse) Location() Vector2 { return p.Position }
