package lineage

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/drivertest"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/xoptions"
)

func newMockMongo(t *testing.T, cfg MongoConfig, responses ...bson.D) *MongoEmitter {
	t.Helper()
	opts := options.Client()
	require.NoError(t, xoptions.SetInternalClientOptions(opts, "deployment", drivertest.NewMockDeployment(responses...)))
	m, err := connectMongo(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close(context.Background()) })
	return m
}

func TestNewMongoEmitter_RequiresURI(t *testing.T) {
	_, err := NewMongoEmitter(MongoConfig{})
	require.ErrorContains(t, err, "uri is required")
}

func TestMongoEmitter_Defaults(t *testing.T) {
	m := newMockMongo(t, MongoConfig{})
	require.Equal(t, "ballpark", m.coll.Database().Name())
	require.Equal(t, "lineage_events", m.coll.Name())

	m = newMockMongo(t, MongoConfig{Database: "etl", Collection: "events"})
	require.Equal(t, "etl", m.coll.Database().Name())
	require.Equal(t, "events", m.coll.Name())
}

func TestMongoEmitter_Emit(t *testing.T) {
	m := newMockMongo(t, MongoConfig{}, bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}})

	ev := NewEvent("load GAME_SCORES", nil, []Resource{TableResource("sqlite", "", "GAME_SCORES")}, DirectionUpstream)
	require.NoError(t, m.Emit(context.Background(), ev))
}

func TestMongoEmitter_EmitError(t *testing.T) {
	denied := bson.D{{Key: "ok", Value: 0}, {Key: "code", Value: 13}, {Key: "errmsg", Value: "not authorized"}}
	m := newMockMongo(t, MongoConfig{}, denied, denied)

	ev := NewEvent("load GAME_SCORES", nil, nil, DirectionUpstream)
	err := m.Emit(context.Background(), ev)
	require.ErrorContains(t, err, "insert lineage event")

	// Safe logs the failure and carries on.
	var buf bytes.Buffer
	Safe(context.Background(), m, ev, slog.New(slog.NewTextHandler(&buf, nil)))
	require.Contains(t, buf.String(), "lineage emit failed")
}
