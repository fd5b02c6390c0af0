package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

type accountDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Name      string             `bson:"name"`
	Gender    string             `bson:"gender"`
	AvatarURL string             `bson:"avatarURL,omitempty"`
	DailyGoal int                `bson:"dailyGoal"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *accountDoc) account() *models.Account {
	return &models.Account{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		Name:         d.Name,
		Gender:       models.Gender(d.Gender),
		AvatarURL:    d.AvatarURL,
		DailyGoal:    d.DailyGoal,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func newAccountDoc(a *models.Account) *accountDoc {
	return &accountDoc{
		Email:     a.Email,
		Password:  a.PasswordHash,
		Name:      a.Name,
		Gender:    string(a.Gender),
		AvatarURL: a.AvatarURL,
		DailyGoal: a.DailyGoal,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// accountQuery translates f into a Mongo filter. It reports false when f
// cannot match any document.
func accountQuery(f models.AccountFilter) (bson.M, bool) {
	if f.Empty() {
		return nil, false
	}
	q := bson.M{}
	if f.ID != "" {
		oid, ok := objectID(f.ID)
		if !ok {
			return nil, false
		}
		q["_id"] = oid
	}
	if f.Email != "" {
		q["email"] = f.Email
	}
	return q, true
}

// accountSet builds the $set document for u.
func accountSet(u models.AccountUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.PasswordHash != nil {
		set["password"] = *u.PasswordHash
	}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Gender != nil {
		set["gender"] = string(*u.Gender)
	}
	if u.AvatarURL != nil {
		set["avatarURL"] = *u.AvatarURL
	}
	if u.DailyGoal != nil {
		set["dailyGoal"] = *u.DailyGoal
	}
	return set
}

// classifyWrite maps a unique index violation onto a conflict.
func classifyWrite(err error, op string) error {
	if mongo.IsDuplicateKeyError(err) {
		return apperror.NewConflict("Email in use")
	}
	return fmt.Errorf("mongo %s: %w", op, err)
}

// MongoAccountStore handles account CRUD in MongoDB.
type MongoAccountStore struct {
	col *mongo.Collection
}

func NewMongoAccountStore(db *mongo.Database) *MongoAccountStore {
	return &MongoAccountStore{col: db.Collection(accountsCollection)}
}

func (s *MongoAccountStore) FindOne(ctx context.Context, filter models.AccountFilter) (*models.Account, error) {
	q, ok := accountQuery(filter)
	if !ok {
		return nil, nil
	}
	var doc accountDoc
	if err := s.col.FindOne(ctx, q).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo find account: %w", err)
	}
	return doc.account(), nil
}

func (s *MongoAccountStore) Create(ctx context.Context, account *models.Account) error {
	res, err := s.col.InsertOne(ctx, newAccountDoc(account))
	if err != nil {
		return classifyWrite(err, "insert account")
	}
	account.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoAccountStore) FindOneAndUpdate(ctx context.Context, filter models.AccountFilter, update models.AccountUpdate) (*models.Account, error) {
	q, ok := accountQuery(filter)
	if !ok {
		return nil, nil
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc accountDoc
	err := s.col.FindOneAndUpdate(ctx, q, bson.M{"$set": accountSet(update, time.Now().UTC())}, opts).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, classifyWrite(err, "update account")
	}
	return doc.account(), nil
}

func (s *MongoAccountStore) DeleteOne(ctx context.Context, filter models.AccountFilter) (bool, error) {
	q, ok := accountQuery(filter)
	if !ok {
		return false, nil
	}
	res, err := s.col.DeleteOne(ctx, q)
	if err != nil {
		return false, fmt.Errorf("mongo delete account: %w", err)
	}
	return res.DeletedCount > 0, nil
}
