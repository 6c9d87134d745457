package protocol

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/codec"
	"github.com/albionradar/sniffer/internal/events"
	"github.com/albionradar/sniffer/internal/schema"
)

// Decoder converts framed packets into events using the schema registry for
// field positions and the position codec for obfuscated coordinates.
type Decoder struct {
	registry *schema.Registry
	codec    *codec.PositionCodec
	now      func() time.Time

	warned sync.Map

	logger zerolog.Logger
}

// NewDecoder creates a decoder bound to a registry and codec.
func NewDecoder(registry *schema.Registry, c *codec.PositionCodec, logger zerolog.Logger) *Decoder {
	return &Decoder{
		registry: registry,
		codec:    c,
		now:      time.Now,
		logger:   logger,
	}
}

// Decode resolves the type code and decodes the packet. Unknown codes, and
// known codes without a decoder, return (nil, nil).
func (d *Decoder) Decode(code int, raw RawFields) (*events.Event, error) {
	s, ok := d.registry.Lookup(code)
	if !ok {
		return nil, nil
	}

	spec, ok := packetSpecs[s.Name]
	if !ok {
		d.logger.Trace().Int("code", code).Str("packet", s.Name).Msg("no decoder for packet")
		return nil, nil
	}
	return d.decode(s, spec, raw)
}

// DecodeKind decodes a field map as the given kind, bypassing the type code
// lookup.
func (d *Decoder) DecodeKind(kind events.Kind, raw RawFields) (*events.Event, error) {
	name := kind.SchemaName()
	spec, ok := packetSpecs[name]
	if !ok {
		return nil, nil
	}
	return d.decode(d.registry.GetSchema(name), spec, raw)
}

// Supports reports whether a packet name has a decoder.
func Supports(packetName string) bool {
	_, ok := packetSpecs[packetName]
	return ok
}

// Layout returns the semantic field order of a packet, the order its
// offsets are declared in.
func Layout(kind events.Kind) []string {
	spec, ok := packetSpecs[kind.SchemaName()]
	if !ok {
		return nil
	}
	out := make([]string, len(spec.layout))
	copy(out, spec.layout)
	return out
}

func (d *Decoder) decode(s schema.FieldSchema, spec *packetSpec, raw RawFields) (ev *events.Event, err error) {
	offsets := s.Offsets
	if s.IsZero() {
		if _, seen := d.warned.LoadOrStore(s.Name, struct{}{}); !seen {
			d.logger.Warn().
				Str("packet", s.Name).
				Msg("no offsets for packet, decoding with default positions")
		}
		offsets = identityOffsets(len(spec.layout))
	}

	defer func() {
		if r := recover(); r != nil {
			ev = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrMalformedPacket, s.Name, r)
		}
	}()

	f := newFields(offsets, spec.index, raw, d.codec)
	payload, err := spec.decode(f)
	if err != nil {
		if errors.Is(err, ErrMalformedPacket) {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPacket, s.Name, err)
	}

	return events.New(payload, d.now()), nil
}

func identityOffsets(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

type decodeFunc func(f *Fields) (events.Payload, error)

type packetSpec struct {
	kind   events.Kind
	layout []string
	index  map[string]int
	decode decodeFunc
}

var packetSpecs = map[string]*packetSpec{}

func register(kind events.Kind, layout []string, fn decodeFunc) {
	idx := make(map[string]int, len(layout))
	for i, name := range layout {
		idx[name] = i
	}
	packetSpecs[kind.SchemaName()] = &packetSpec{kind: kind, layout: layout, index: idx, decode: fn}
}

func init() {
	register(events.KindNewCharacter,
		[]string{"Id", "Name", "Guild", "Alliance", "Faction", "Position", "Speed", "Health", "MaxHealth", "Equipment", "Spells"},
		decodeNewCharacter)
	register(events.KindMove, []string{"Id", "Data"}, decodeMove)
	register(events.KindMoveRequest, []string{"Position", "NewPosition", "Speed"}, decodeMoveRequest)
	register(events.KindKeySync, []string{"Key"}, decodeKeySync)
	register(events.KindLeave, []string{"Id"}, func(f *Fields) (events.Payload, error) {
		return &events.Leave{ID: f.Int("Id")}, nil
	})
	register(events.KindHealthUpdate, []string{"Id", "Health", "MaxHealth"}, func(f *Fields) (events.Payload, error) {
		return &events.HealthUpdate{ID: f.Int("Id"), Health: f.Health("Health", "MaxHealth")}, nil
	})
	register(events.KindRegenerationChanged,
		[]string{"Id", "Regenerating", "Health", "MaxHealth", "Rate"},
		func(f *Fields) (events.Payload, error) {
			p := &events.RegenerationChanged{
				ID:           f.Int("Id"),
				Regenerating: f.Has("Regenerating"),
				Health:       events.Health{Value: int(f.Int("Health")), Max: int(f.Int("MaxHealth"))},
			}
			if p.Regenerating {
				p.Rate = f.Float("Rate")
			}
			return p, nil
		})
	register(events.KindMounted, []string{"Id", "IsMounted"}, func(f *Fields) (events.Payload, error) {
		return &events.Mounted{ID: f.Int("Id"), IsMounted: f.Bool("IsMounted")}, nil
	})
	register(events.KindChangeCluster, []string{"LocationId", "Type"}, func(f *Fields) (events.Payload, error) {
		return &events.ChangeCluster{LocationID: f.String("LocationId"), Type: f.String("Type")}, nil
	})
	register(events.KindChangeFlaggingFinished, []string{"Id", "Faction"}, func(f *Fields) (events.Payload, error) {
		return &events.ChangeFlaggingFinished{ID: f.Int("Id"), Faction: int(f.Int("Faction"))}, nil
	})
	register(events.KindCharacterEquipmentChanged, []string{"Id", "Equipment"}, func(f *Fields) (events.Payload, error) {
		return &events.CharacterEquipmentChanged{ID: f.Int("Id"), Equipment: f.IntArray("Equipment")}, nil
	})
	register(events.KindNewMob,
		[]string{"Id", "TypeId", "Position", "Health", "MaxHealth", "Charge", "Tier"},
		decodeNewMob)
	register(events.KindMobChangeState, []string{"Id", "Charge"}, func(f *Fields) (events.Payload, error) {
		return &events.MobChangeState{ID: f.Int("Id"), Charge: int(f.Int("Charge"))}, nil
	})
	register(events.KindNewHarvestable, []string{"Id", "TypeId", "Position", "Tier", "Charges"},
		func(f *Fields) (events.Payload, error) {
			return &events.NewHarvestable{
				ID:       f.Int("Id"),
				TypeID:   int(f.Int("TypeId")),
				Position: f.Vector2("Position"),
				Tier:     int(f.Int("Tier")),
				Charges:  int(f.Int("Charges")),
			}, nil
		})
	register(events.KindNewHarvestablesList, []string{"Ids", "Types", "Tiers", "Positions", "Charges"},
		decodeHarvestablesList)
	register(events.KindHarvestableChangeState, []string{"Id", "Count", "Charge"}, func(f *Fields) (events.Payload, error) {
		return &events.HarvestableChangeState{ID: f.Int("Id"), Count: int(f.Int("Count")), Charge: int(f.Int("Charge"))}, nil
	})
	register(events.KindNewLootChest, []string{"Id", "Position", "Name", "Tier"}, func(f *Fields) (events.Payload, error) {
		return &events.NewLootChest{
			ID:       f.Int("Id"),
			Position: f.Vector2("Position"),
			Name:     f.String("Name"),
			Tier:     int(f.Int("Tier")),
		}, nil
	})
	register(events.KindNewDungeon, []string{"Id", "Position", "Type", "Charges", "Tier"}, func(f *Fields) (events.Payload, error) {
		return &events.NewDungeon{
			ID:       f.Int("Id"),
			Position: f.Vector2("Position"),
			Type:     f.String("Type"),
			Charges:  int(f.Int("Charges")),
			Tier:     int(f.Int("Tier")),
		}, nil
	})
	register(events.KindNewFishingZone, []string{"Id", "Position", "Size", "RespawnCount"}, func(f *Fields) (events.Payload, error) {
		return &events.NewFishingZone{
			ID:           f.Int("Id"),
			Position:     f.Vector2("Position"),
			Size:         int(f.Int("Size")),
			RespawnCount: int(f.Int("RespawnCount")),
		}, nil
	})
	register(events.KindNewGatedWisp, []string{"Id", "Position", "State"}, func(f *Fields) (events.Payload, error) {
		return &events.NewGatedWisp{
			ID:        f.Int("Id"),
			Position:  f.Vector2("Position"),
			Collected: f.Int("State") == 2,
		}, nil
	})
	register(events.KindWispGateOpened, []string{"Id", "Collected"}, func(f *Fields) (events.Payload, error) {
		return &events.WispGateOpened{ID: f.Int("Id"), Collected: f.Bool("Collected")}, nil
	})
	register(events.KindLoadClusterObjects, []string{"ObjectIds"}, func(f *Fields) (events.Payload, error) {
		return &events.LoadClusterObjects{ObjectIDs: f.IntArray("ObjectIds")}, nil
	})
	register(events.KindMistsPlayerJoined, []string{"Id", "Name", "Guild", "Alliance"}, func(f *Fields) (events.Payload, error) {
		return &events.MistsPlayerJoined{
			ID:       f.Int("Id"),
			Name:     f.String("Name"),
			Guild:    f.String("Guild"),
			Alliance: f.String("Alliance"),
		}, nil
	})
	register(events.KindJoinResponse,
		[]string{"Id", "Name", "Position", "Guild", "Alliance", "LocationId"},
		func(f *Fields) (events.Payload, error) {
			return &events.JoinResponse{
				ID:         f.Int("Id"),
				Name:       f.String("Name"),
				Position:   f.Vector2("Position"),
				Guild:      f.String("Guild"),
				Alliance:   f.String("Alliance"),
				LocationID: f.String("LocationId"),
			}, nil
		})
}

// defaultSpeed is the base run speed reported when NewCharacter omits it.
const defaultSpeed float32 = 5.5

func decodeNewCharacter(f *Fields) (events.Payload, error) {
	return &events.NewCharacter{
		ID:        f.Int("Id"),
		Name:      f.String("Name"),
		Guild:     f.String("Guild"),
		Alliance:  f.String("Alliance"),
		Faction:   int(f.Int("Faction")),
		Position:  f.Vector2("Position"),
		Speed:     f.FloatOr("Speed", defaultSpeed),
		Health:    f.Health("Health", "MaxHealth"),
		Equipment: f.IntArray("Equipment"),
		Spells:    f.IntArray("Spells"),
	}, nil
}

func decodeNewMob(f *Fields) (events.Payload, error) {
	return &events.NewMob{
		ID:       f.Int("Id"),
		TypeID:   int(f.Int("TypeId")) - mobTypeOffset,
		Position: f.Vector2("Position"),
		Health:   f.Health("Health", "MaxHealth"),
		Charge:   int(f.Int("Charge")),
		Tier:     int(f.Int("Tier")),
	}, nil
}

// mobTypeOffset is subtracted from the wire mob type to get the index into
// the mob catalogue.
const mobTypeOffset = 15

func decodeKeySync(f *Fields) (events.Payload, error) {
	key := f.Bytes("Key")
	if key == nil {
		return &events.KeySync{}, nil
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return &events.KeySync{Key: cp}, nil
}

func decodeMoveRequest(f *Fields) (events.Payload, error) {
	p := &events.MoveRequest{
		Position: f.Vector2("Position"),
		Speed:    f.Float("Speed"),
	}
	if f.Has("NewPosition") {
		p.NewPosition = f.Vector2("NewPosition")
	} else {
		p.NewPosition = p.Position
	}
	return p, nil
}

func decodeHarvestablesList(f *Fields) (events.Payload, error) {
	ids := f.IntArray("Ids")
	types := f.IntArray("Types")
	tiers := f.IntArray("Tiers")
	positions := f.FloatArray("Positions")
	charges := f.IntArray("Charges")

	items := make([]events.HarvestableEntry, len(ids))
	for i, id := range ids {
		items[i] = events.HarvestableEntry{
			ID:      int64(id),
			TypeID:  at(types, i),
			Tier:    at(tiers, i),
			Charges: at(charges, i),
		}
		if 2*i+1 < len(positions) {
			items[i].Position = events.Vector2{X: positions[2*i], Y: positions[2*i+1]}
		}
	}
	return &events.NewHarvestablesList{Items: items}, nil
}

func at(values []int, i int) int {
	if i < len(values) {
		return values[i]
	}
	return 0
}
