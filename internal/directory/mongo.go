package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
)

const (
	locationsCollection = "delivery_locations"
	settingsCollection  = "settings"
	productsCollection  = "products"
)

// mongoLocation is a delivery.Location plus the folded keys it is indexed on.
type mongoLocation struct {
	Name                  string `bson:"name"`
	State                 string `bson:"state"`
	NameKey               string `bson:"name_key"`
	StateKey              string `bson:"state_key"`
	Charge                int    `bson:"charge"`
	FreeDeliveryThreshold *int   `bson:"free_delivery_threshold,omitempty"`
	Position              int64  `bson:"position"`
}

func toMongoLocation(loc delivery.Location) mongoLocation {
	return mongoLocation{
		Name:                  loc.Name,
		State:                 loc.State,
		NameKey:               delivery.Normalize(loc.Name),
		StateKey:              delivery.Normalize(loc.State),
		Charge:                loc.Charge,
		FreeDeliveryThreshold: loc.FreeDeliveryThreshold,
	}
}

func (m mongoLocation) location() delivery.Location {
	return delivery.Location{
		Name:                  m.Name,
		State:                 m.State,
		Charge:                m.Charge,
		FreeDeliveryThreshold: m.FreeDeliveryThreshold,
	}
}

// MongoStore keeps the directory in MongoDB.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

// NewMongoStore uses db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

// ConnectMongo dials uri, retrying up to attempts times, and returns the
// named database.
func ConnectMongo(ctx context.Context, uri, dbName string, attempts int, log *zap.Logger) (*mongo.Database, error) {
	opts := options.Client().ApplyURI(uri).
		SetMaxPoolSize(100).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetReadPreference(readpref.Primary())

	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; ; i++ {
		var client *mongo.Client
		client, err = dialMongo(ctx, opts)
		if err == nil {
			return client.Database(dbName), nil
		}
		if i == attempts {
			break
		}
		log.Warn("mongo not ready", zap.Int("attempt", i), zap.Int("of", attempts), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect mongo after %d attempts: %w", attempts, err)
}

func dialMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Migrate creates the indexes and seeds the default locations into an
// empty collection. As with PostgresStore, a marker document in settings
// makes seeding happen once.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.db.Collection(locationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state_key", Value: 1}, {Key: "name_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("location_key_idx"),
		},
		{
			Keys:    bson.D{{Key: "position", Value: 1}},
			Options: options.Index().SetName("location_position_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create location indexes: %w", err)
	}
	_, err = s.db.Collection(productsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("product_id_idx"),
	})
	if err != nil {
		return fmt.Errorf("create product index: %w", err)
	}
	settings := s.db.Collection(settingsCollection)
	err = settings.FindOne(ctx, bson.M{"_id": seededKey}).Err()
	if err == nil {
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("check seed marker: %w", err)
	}
	n, err := s.db.Collection(locationsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count locations: %w", err)
	}
	if n == 0 {
		base := s.now().UnixNano()
		for i, loc := range DefaultLocations() {
			if err := s.upsert(ctx, loc, base+int64(i)); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
		}
	}
	_, err = settings.UpdateOne(ctx, bson.M{"_id": seededKey},
		bson.M{"$setOnInsert": bson.M{"seeded_at": s.now()}}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mark seed: %w", err)
	}
	return nil
}

func (s *MongoStore) Locations(ctx context.Context) ([]delivery.Location, error) {
	cur, err := s.db.Collection(locationsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find locations: %w", err)
	}
	var docs []mongoLocation
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	out := make([]delivery.Location, len(docs))
	for i, d := range docs {
		out[i] = d.location()
	}
	return out, nil
}

func (s *MongoStore) FreeDelivery(ctx context.Context) (delivery.FreeDeliverySettings, error) {
	var fd delivery.FreeDeliverySettings
	err := s.db.Collection(settingsCollection).FindOne(ctx, bson.M{"_id": freeDeliveryKey}).Decode(&fd)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DefaultFreeDelivery, nil
	}
	if err != nil {
		return delivery.FreeDeliverySettings{}, fmt.Errorf("find free delivery settings: %w", err)
	}
	return fd, nil
}

func (s *MongoStore) Products(ctx context.Context) ([]catalog.Product, error) {
	cur, err := s.db.Collection(productsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	var out []catalog.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

func (s *MongoStore) UpsertLocation(ctx context.Context, loc delivery.Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	return s.upsert(ctx, loc, s.now().UnixNano())
}

func (s *MongoStore) upsert(ctx context.Context, loc delivery.Location, position int64) error {
	filter, update := locationUpsert(toMongoLocation(loc), position)
	_, err := s.db.Collection(locationsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.Name, err)
	}
	return nil
}

// locationUpsert builds the filter and update for an upsert. Position is
// only set on insert so a replaced city keeps its place in the list.
func locationUpsert(m mongoLocation, position int64) (bson.M, bson.M) {
	filter := bson.M{"state_key": m.StateKey, "name_key": m.NameKey}
	set := bson.M{"name": m.Name, "state": m.State, "charge": m.Charge}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"position": position},
	}
	if m.FreeDeliveryThreshold != nil {
		set["free_delivery_threshold"] = *m.FreeDeliveryThreshold
	} else {
		update["$unset"] = bson.M{"free_delivery_threshold": ""}
	}
	return filter, update
}

func (s *MongoStore) DeleteLocation(ctx context.Context, state, name string) error {
	res, err := s.db.Collection(locationsCollection).DeleteOne(ctx, bson.M{
		"state_key": delivery.Normalize(state),
		"name_key":  delivery.Normalize(name),
	})
	if err != nil {
		return fmt.Errorf("delete location %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("location %s, %s: %w", name, state, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) SetFreeDelivery(ctx context.Context, fd delivery.FreeDeliverySettings) error {
	if err := ValidateSettings(fd); err != nil {
		return err
	}
	_, err := s.db.Collection(settingsCollection).UpdateOne(ctx,
		bson.M{"_id": freeDeliveryKey},
		bson.M{"$set": bson.M{"enabled": fd.Enabled, "threshold": fd.Threshold}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save free delivery settings: %w", err)
	}
	return nil
}

func (s *MongoStore) SetAvailableCities(ctx context.Context, productID string, cities []string) error {
	update := bson.M{"$unset": bson.M{"available_cities": ""}}
	if len(cities) > 0 {
		update = bson.M{"$set": bson.M{"available_cities": cities}}
	}
	res, err := s.db.Collection(productsCollection).UpdateOne(ctx, bson.M{"id": productID}, update)
	if err != nil {
		return fmt.Errorf("update available cities of %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return nil
}
