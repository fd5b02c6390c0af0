package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/water-tracker/backend/internal/models"
)

type waterDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	AccountID string             `bson:"accountId"`
	Amount    int                `bson:"amount"`
	Time      time.Time          `bson:"time"`
	DailyGoal int                `bson:"dailyGoal"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *waterDoc) entry() models.WaterEntry {
	return models.WaterEntry{
		ID:        d.ID.Hex(),
		AccountID: d.AccountID,
		Amount:    d.Amount,
		Time:      d.Time.UTC(),
		DailyGoal: d.DailyGoal,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func rangeQuery(r models.WaterRange) bson.M {
	return bson.M{
		"accountId": r.AccountID,
		"time":      bson.M{"$gte": r.From, "$lt": r.To},
	}
}

func entrySet(u models.WaterEntryUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if u.Amount != nil {
		set["amount"] = *u.Amount
	}
	if u.Time != nil {
		set["time"] = *u.Time
	}
	return set
}

// MongoWaterStore handles water entry documents in MongoDB. Every lookup by
// id is scoped to the owning account.
type MongoWaterStore struct {
	col *mongo.Collection
}

func NewMongoWaterStore(db *mongo.Database) *MongoWaterStore {
	return &MongoWaterStore{col: db.Collection(waterCollection)}
}

func (s *MongoWaterStore) Create(ctx context.Context, entry *models.WaterEntry) error {
	doc := waterDoc{
		AccountID: entry.AccountID,
		Amount:    entry.Amount,
		Time:      entry.Time,
		DailyGoal: entry.DailyGoal,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("mongo insert water entry: %w", err)
	}
	entry.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoWaterStore) FindOneAndUpdate(ctx context.Context, accountID, id string, update models.WaterEntryUpdate) (*models.WaterEntry, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc waterDoc
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "accountId": accountID},
		bson.M{"$set": entrySet(update, time.Now().UTC())},
		opts,
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo update water entry: %w", err)
	}
	e := doc.entry()
	return &e, nil
}

func (s *MongoWaterStore) DeleteOne(ctx context.Context, accountID, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid, "accountId": accountID})
	if err != nil {
		return false, fmt.Errorf("mongo delete water entry: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// Find returns the entries in r ordered by time, oldest first.
func (s *MongoWaterStore) Find(ctx context.Context, r models.WaterRange) ([]models.WaterEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})
	cur, err := s.col.Find(ctx, rangeQuery(r), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find water entries: %w", err)
	}
	defer cur.Close(ctx)

	var docs []waterDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode water entries: %w", err)
	}
	out := make([]models.WaterEntry, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].entry())
	}
	return out, nil
}

func (s *MongoWaterStore) UpdateGoalInRange(ctx context.Context, r models.WaterRange, goal int) (int64, error) {
	res, err := s.col.UpdateMany(ctx, rangeQuery(r), bson.M{"$set": bson.M{"dailyGoal": goal}})
	if err != nil {
		return 0, fmt.Errorf("mongo update water goals: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoWaterStore) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"accountId": accountID})
	if err != nil {
		return 0, fmt.Errorf("mongo delete water entries: %w", err)
	}
	return res.DeletedCount, nil
}
