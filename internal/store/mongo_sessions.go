package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ayush/water-tracker/backend/internal/models"
)

type sessionDoc struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty"`
	AccountID              string             `bson:"accountId"`
	AccessToken            string             `bson:"accessToken"`
	RefreshToken           string             `bson:"refreshToken"`
	AccessTokenValidUntil  time.Time          `bson:"accessTokenValidUntil"`
	RefreshTokenValidUntil time.Time          `bson:"refreshTokenValidUntil"`
	CreatedAt              time.Time          `bson:"createdAt"`
}

func (d *sessionDoc) session() *models.Session {
	return &models.Session{
		ID:                     d.ID.Hex(),
		AccountID:              d.AccountID,
		AccessToken:            d.AccessToken,
		RefreshToken:           d.RefreshToken,
		AccessTokenValidUntil:  d.AccessTokenValidUntil,
		RefreshTokenValidUntil: d.RefreshTokenValidUntil,
		CreatedAt:              d.CreatedAt,
	}
}

func newSessionDoc(s *models.Session) *sessionDoc {
	return &sessionDoc{
		AccountID:              s.AccountID,
		AccessToken:            s.AccessToken,
		RefreshToken:           s.RefreshToken,
		AccessTokenValidUntil:  s.AccessTokenValidUntil,
		RefreshTokenValidUntil: s.RefreshTokenValidUntil,
		CreatedAt:              s.CreatedAt,
	}
}

// sessionQuery translates f into a Mongo filter. It reports false when f
// cannot match any document.
func sessionQuery(f models.SessionFilter) (bson.M, bool) {
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
	if f.AccountID != "" {
		q["accountId"] = f.AccountID
	}
	if f.AccessToken != "" {
		q["accessToken"] = f.AccessToken
	}
	if f.RefreshToken != "" {
		q["refreshToken"] = f.RefreshToken
	}
	return q, true
}

// MongoSessionStore handles session documents in MongoDB.
type MongoSessionStore struct {
	col *mongo.Collection
}

func NewMongoSessionStore(db *mongo.Database) *MongoSessionStore {
	return &MongoSessionStore{col: db.Collection(sessionsCollection)}
}

func (s *MongoSessionStore) FindOne(ctx context.Context, filter models.SessionFilter) (*models.Session, error) {
	q, ok := sessionQuery(filter)
	if !ok {
		return nil, nil
	}
	var doc sessionDoc
	if err := s.col.FindOne(ctx, q).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo find session: %w", err)
	}
	return doc.session(), nil
}

func (s *MongoSessionStore) Create(ctx context.Context, session *models.Session) error {
	res, err := s.col.InsertOne(ctx, newSessionDoc(session))
	if err != nil {
		return fmt.Errorf("mongo insert session: %w", err)
	}
	session.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoSessionStore) DeleteOne(ctx context.Context, filter models.SessionFilter) (bool, error) {
	q, ok := sessionQuery(filter)
	if !ok {
		return false, nil
	}
	res, err := s.col.DeleteOne(ctx, q)
	if err != nil {
		return false, fmt.Errorf("mongo delete session: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoSessionStore) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"accountId": accountID})
	if err != nil {
		return 0, fmt.Errorf("mongo delete sessions: %w", err)
	}
	return res.DeletedCount, nil
}

// Rotate removes the old session with a single findOneAndDelete that matches
// on both id and refresh token, so only one of two racing callers can win;
// the loser sees no document and stores nothing.
func (s *MongoSessionStore) Rotate(ctx context.Context, id, refreshToken string, next *models.Session) (bool, error) {
	q, ok := sessionQuery(models.SessionFilter{ID: id, RefreshToken: refreshToken})
	if !ok {
		return false, nil
	}
	if err := s.col.FindOneAndDelete(ctx, q).Err(); err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongo rotate session: %w", err)
	}
	if err := s.Create(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}
