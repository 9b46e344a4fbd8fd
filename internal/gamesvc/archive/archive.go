// Package archive keeps a time-limited copy of every game event in MongoDB so
// that clients can replay a game after the fact.
package archive

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/mastermind-services/internal/db"
	"github.com/avvvet/mastermind-services/internal/events"
)

const Collection = "game_events"

type record struct {
	Ref          string `bson:"_id"`
	events.Event `bson:",inline"`
	ExpiresAt    time.Time `bson:"expires_at"`
}

type EventArchive struct {
	coll      *mongo.Collection
	retention time.Duration
	timeout   time.Duration
}

// New prepares the collection and its TTL index.
func New(ctx context.Context, database *mongo.Database, retention time.Duration) (*EventArchive, error) {
	if err := db.CreateTTLIndexForCollection(ctx, database, Collection); err != nil {
		return nil, err
	}
	return &EventArchive{
		coll:      database.Collection(Collection),
		retention: retention,
		timeout:   10 * time.Second,
	}, nil
}

// Emit stores the event. Replays of an already stored event are ignored.
func (a *EventArchive) Emit(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	_, err := a.coll.InsertOne(ctx, newRecord(e, a.retention))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		log.Errorf("Error archiving %s event of game %d: %s", e.Type, e.GameID, err)
	}
}

func newRecord(e events.Event, retention time.Duration) record {
	return record{Ref: e.Ref(), Event: e, ExpiresAt: e.At.Add(retention)}
}

// ByGame returns the archived events of a game in emission order.
func (a *EventArchive) ByGame(ctx context.Context, gameID uint64) ([]events.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}, {Key: "seq", Value: 1}})
	cur, err := a.coll.Find(ctx, bson.M{"game_id": gameID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find events of game %d: %w", gameID, err)
	}
	defer cur.Close(ctx)

	var out []events.Event
	for cur.Next(ctx) {
		var r record
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, r.Event)
	}
	return out, cur.Err()
}
