package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albionradar/sniffer/internal/contracts"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	database, err := NewDatabase(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	require.NoError(t, err)

	j, err := OpenJournal(context.Background(), database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func left(id string, entity int64) contracts.Contract {
	return contracts.EntityLeftV1{
		Envelope: contracts.Envelope{EventID: id, ObservedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		EntityID: entity,
	}
}

func TestJournal_PublishAndRecent(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Publish(ctx, "albion.event.entity.left.v1", left("a", 1)))
	require.NoError(t, j.Publish(ctx, "albion.event.entity.left.v1", left("b", 2)))
	require.NoError(t, j.Publish(ctx, "albion.event.other.v1", left("c", 3)))
	// Same event id again is ignored.
	require.NoError(t, j.Publish(ctx, "albion.event.entity.left.v1", left("a", 1)))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].EventID)

	only, err := j.Recent(ctx, "albion.event.entity.left.v1", 1)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "b", only[0].EventID)
	assert.Equal(t, "EntityLeftV1", only[0].Contract)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), only[0].ObservedAt)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(only[0].Payload, &payload))
	assert.Equal(t, float64(2), payload["entityId"])
}

func TestJournal_Prune(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }
	require.NoError(t, j.Publish(ctx, "t", left("old", 1)))

	j.now = func() time.Time { return base.Add(2 * time.Hour) }
	require.NoError(t, j.Publish(ctx, "t", left("new", 2)))

	removed, err := j.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rest, err := j.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "new", rest[0].EventID)
}

func TestDatabase_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database, err := NewDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.Migrate(ctx, journalMigrations))
	require.NoError(t, database.Migrate(ctx, journalMigrations))

	v, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestDatabase_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	database, err := NewDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer database.Close()

	err = database.Migrate(ctx, []Migration{
		{Version: 1, Name: "ok", SQL: "CREATE TABLE a (x INTEGER)"},
		{Version: 2, Name: "broken", SQL: "CREATE TABLE"},
	})
	require.Error(t, err)

	v, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
