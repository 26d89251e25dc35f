// Package mongo stores users and ads as MongoDB documents.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const (
	usersCollection = "users"
	adsCollection   = "ads"
	connectTimeout  = 10 * time.Second
)

// Store is a MongoDB-backed storage.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	users  *mongo.Collection
	ads    *mongo.Collection
}

type userDocument struct {
	ID             string    `bson:"_id"`
	Username       string    `bson:"username"`
	Email          string    `bson:"email"`
	HashedPassword string    `bson:"hashed_password"`
	Role           string    `bson:"role"`
	ProfilePicture *string   `bson:"profile_picture"`
	CreatedAt      time.Time `bson:"created_at"`
}

type adDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Category    string    `bson:"category"`
	Location    string    `bson:"location"`
	Age         *int      `bson:"age"`
	ContactInfo *string   `bson:"contact_info"`
	Images      []string  `bson:"images"`
	UserID      string    `bson:"user_id"`
	CreatedAt   time.Time `bson:"created_at"`
	Approved    bool      `bson:"approved"`
	Views       int       `bson:"views"`
}

// Open connects to uri, selects database and ensures the indexes the store
// relies on, including the unique email index.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		db:     db,
		users:  db.Collection(usersCollection),
		ads:    db.Collection(adsCollection),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	_, err = s.ads.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}, Options: options.Index().SetName("ads_created_at_id")},
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetName("ads_user_id")},
	})
	if err != nil {
		return fmt.Errorf("create ads indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// CreateUser inserts a user document. The unique email index arbitrates
// concurrent registrations.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	doc := userDocument{
		ID:             uuid.NewString(),
		Username:       user.Username,
		Email:          user.Email,
		HashedPassword: user.HashedPassword,
		Role:           user.Role,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      normalizeTime(user.CreatedAt),
	}
	if doc.Role == "" {
		doc.Role = models.RoleUser
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return doc.toModel(), nil
}

// FindByEmail fetches a user by exact email.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel(), nil
}

// CreateAd inserts an ad document.
func (s *Store) CreateAd(ctx context.Context, ad models.Ad) (models.Ad, error) {
	doc := adDocument{
		ID:          uuid.NewString(),
		Title:       ad.Title,
		Description: ad.Description,
		Category:    ad.Category,
		Location:    ad.Location,
		Age:         ad.Age,
		ContactInfo: ad.ContactInfo,
		Images:      ad.Images,
		UserID:      ad.UserID,
		CreatedAt:   normalizeTime(ad.CreatedAt),
		Approved:    ad.Approved,
		Views:       ad.Views,
	}
	if doc.Images == nil {
		doc.Images = []string{}
	}
	if _, err := s.ads.InsertOne(ctx, doc); err != nil {
		return models.Ad{}, fmt.Errorf("create ad: %w", err)
	}
	return doc.toModel(), nil
}

// FindAdByID fetches one ad.
func (s *Store) FindAdByID(ctx context.Context, id string) (models.Ad, error) {
	var doc adDocument
	if err := s.ads.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Ad{}, storage.ErrNotFound
		}
		return models.Ad{}, fmt.Errorf("find ad: %w", err)
	}
	return doc.toModel(), nil
}

// ListAds pages through ads sorted by created_at, then _id.
func (s *Store) ListAds(ctx context.Context, skip, limit int) ([]models.Ad, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cursor, err := s.ads.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	var docs []adDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	ads := make([]models.Ad, 0, len(docs))
	for _, doc := range docs {
		ads = append(ads, doc.toModel())
	}
	return ads, nil
}

// UpdateAd $sets the non-nil patch fields and returns the updated document.
func (s *Store) UpdateAd(ctx context.Context, id string, patch models.AdPatch) (models.Ad, error) {
	set := patchDocument(patch)
	if len(set) == 0 {
		return s.FindAdByID(ctx, id)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc adDocument
	err := s.ads.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Ad{}, storage.ErrNotFound
		}
		return models.Ad{}, fmt.Errorf("update ad: %w", err)
	}
	return doc.toModel(), nil
}

// DeleteAd removes one ad and reports whether it existed.
func (s *Store) DeleteAd(ctx context.Context, id string) (bool, error) {
	res, err := s.ads.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete ad: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func patchDocument(p models.AdPatch) bson.D {
	var set bson.D
	if p.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *p.Title})
	}
	if p.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *p.Description})
	}
	if p.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *p.Category})
	}
	if p.Location != nil {
		set = append(set, bson.E{Key: "location", Value: *p.Location})
	}
	if p.Age != nil {
		set = append(set, bson.E{Key: "age", Value: *p.Age})
	}
	if p.ContactInfo != nil {
		set = append(set, bson.E{Key: "contact_info", Value: *p.ContactInfo})
	}
	if p.Images != nil {
		images := append([]string{}, (*p.Images)...)
		set = append(set, bson.E{Key: "images", Value: images})
	}
	return set
}

// normalizeTime matches BSON datetime precision so returned values equal
// what a later read yields.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return time.UnixMilli(t.UnixMilli()).UTC()
}

func (d userDocument) toModel() models.User {
	return models.User{
		ID:             d.ID,
		Username:       d.Username,
		Email:          d.Email,
		HashedPassword: d.HashedPassword,
		Role:           d.Role,
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

func (d adDocument) toModel() models.Ad {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return models.Ad{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Location:    d.Location,
		Age:         d.Age,
		ContactInfo: d.ContactInfo,
		Images:      images,
		UserID:      d.UserID,
		CreatedAt:   d.CreatedAt.UTC(),
		Approved:    d.Approved,
		Views:       d.Views,
	}
}
