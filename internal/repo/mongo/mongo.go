// Package mongo stores vehicles and transactions in MongoDB. Documents keep
// the same field names as the JSON API so exports and backups stay readable.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flota/internal/core"
	"flota/internal/repo"
)

const (
	vehiclesCollection     = "vehicles"
	transactionsCollection = "transactions"
)

// Ensure interface conformance
var (
	_ repo.Repository         = (*Store)(nil)
	_ repo.TransactionDeleter = (*Store)(nil)
	_ repo.TransactionGetter  = (*Store)(nil)
)

type Store struct {
	client   *mongo.Client
	vehicles *mongo.Collection
	txs      *mongo.Collection
}

// Connect dials uri, verifies the connection and prepares indexes.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := NewStore(client.Database(dbName))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	slog.InfoContext(ctx, "Connected to MongoDB", "database", dbName)
	return s, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		vehicles: db.Collection(vehiclesCollection),
		txs:      db.Collection(transactionsCollection),
	}
}

// EnsureIndexes creates the unique plate index and the per-vehicle lookup index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.vehicles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "plate", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create plate index: %w", err)
	}
	_, err = s.txs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "vehicleId", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create transaction index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("mongo client not initialized")
	}
	return s.client.Ping(ctx, nil)
}

func (s *Store) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	cur, err := s.vehicles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "plate", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find vehicles: %w", err)
	}
	var out []core.Vehicle
	if err := decodeAll(ctx, cur, &out); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return out, nil
}

func (s *Store) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	var v core.Vehicle
	err := decodeOne(s.vehicles.FindOne(ctx, bson.M{"_id": id}), &v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Vehicle{}, repo.ErrNotFound
	}
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return v, nil
}

func (s *Store) SaveVehicle(ctx context.Context, v core.Vehicle) error {
	doc, err := toDocument(v.ID, v)
	if err != nil {
		return err
	}
	_, err = s.vehicles.ReplaceOne(ctx, bson.M{"_id": v.ID}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", repo.ErrDuplicatePlate, v.Plate)
	}
	if err != nil {
		return fmt.Errorf("save vehicle: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.findTransactions(ctx, bson.M{})
}

func (s *Store) ListTransactionsByVehicle(ctx context.Context, vehicleID string) ([]core.Transaction, error) {
	return s.findTransactions(ctx, bson.M{"vehicleId": vehicleID})
}

func (s *Store) findTransactions(ctx context.Context, filter bson.M) ([]core.Transaction, error) {
	cur, err := s.txs.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	var out []core.Transaction
	if err := decodeAll(ctx, cur, &out); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var t core.Transaction
	err := decodeOne(s.txs.FindOne(ctx, bson.M{"_id": id}), &t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) SaveTransaction(ctx context.Context, t core.Transaction) error {
	doc, err := toDocument(t.ID, t)
	if err != nil {
		return err
	}
	if _, err := s.txs.ReplaceOne(ctx, bson.M{"_id": t.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.txs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// toDocument converts a value to BSON through its JSON form and keys it by id.
func toDocument(id string, v any) (bson.M, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(b, false, &doc); err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	doc["_id"] = id
	return doc, nil
}

// fromRaw converts a stored document back into a value through JSON.
func fromRaw(raw bson.Raw, out any) error {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func decodeOne(res *mongo.SingleResult, out any) error {
	raw, err := res.Raw()
	if err != nil {
		return err
	}
	return fromRaw(raw, out)
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, out *[]T) error {
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var item T
		if err := fromRaw(cur.Current, &item); err != nil {
			return err
		}
		*out = append(*out, item)
	}
	return cur.Err()
}
