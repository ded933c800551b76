package interaction

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "interacoes"

// mongoDoc keeps the field names the kiosk dashboard already reads.
type mongoDoc struct {
	ObjectID  primitive.ObjectID `bson:"_id,omitempty"`
	RecordID  string             `bson:"recordId"`
	SessionID string             `bson:"sessionId,omitempty"`
	Nome      string             `bson:"nome"`
	Produto   string             `bson:"produto"`
	DataHora  time.Time          `bson:"dataHora"`
}

func toMongoDoc(rec Record) mongoDoc {
	return mongoDoc{
		RecordID:  rec.ID,
		SessionID: rec.SessionID,
		Nome:      rec.Name,
		Produto:   rec.Product,
		DataHora:  rec.Timestamp,
	}
}

func (d mongoDoc) record() Record {
	id := d.RecordID
	if id == "" {
		id = d.ObjectID.Hex()
	}
	return Record{
		ID:        id,
		SessionID: d.SessionID,
		Name:      d.Nome,
		Product:   d.Produto,
		Timestamp: d.DataHora.UTC(),
	}
}

type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: MONGODB_URI is empty", ErrNotConfigured)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &MongoStore{client: client, coll: client.Database(database).Collection(mongoCollection)}, nil
}

func (m *MongoStore) Save(ctx context.Context, rec *Record) error {
	if _, err := m.coll.InsertOne(ctx, toMongoDoc(*rec)); err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (m *MongoStore) List(ctx context.Context, limit int) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dataHora", Value: -1}}).SetLimit(int64(limit))
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find interactions: %w", err)
	}
	defer cur.Close(ctx)
	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode interactions: %w", err)
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
