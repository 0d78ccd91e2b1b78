package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tuition-notify/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type notificationDoc struct {
	ID          bson.ObjectID  `bson:"_id"`
	UserID      bson.ObjectID  `bson:"userId"`
	Title       string         `bson:"title"`
	Message     string         `bson:"message"`
	Type        string         `bson:"type"`
	RelatedPost *bson.ObjectID `bson:"relatedPost,omitempty"`
	Read        bool           `bson:"read"`
	CreatedAt   time.Time      `bson:"createdAt"`
}

func toDoc(n *domain.Notification) (notificationDoc, error) {
	uid, err := bson.ObjectIDFromHex(n.RecipientID)
	if err != nil {
		return notificationDoc{}, fmt.Errorf("recipient id %q: %w", n.RecipientID, domain.ErrValidation)
	}
	doc := notificationDoc{
		ID:        bson.NewObjectID(),
		UserID:    uid,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Kind),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.ID != "" {
		if doc.ID, err = bson.ObjectIDFromHex(n.ID); err != nil {
			return notificationDoc{}, fmt.Errorf("notification id %q: %w", n.ID, domain.ErrValidation)
		}
	}
	// A related subject that is not an ObjectID is stored without the reference.
	if rel, err := bson.ObjectIDFromHex(n.RelatedSubjectID); err == nil {
		doc.RelatedPost = &rel
	}
	return doc, nil
}

func (d notificationDoc) toDomain() domain.Notification {
	n := domain.Notification{
		ID:          d.ID.Hex(),
		RecipientID: d.UserID.Hex(),
		Title:       d.Title,
		Message:     d.Message,
		Kind:        domain.Kind(d.Type),
		Read:        d.Read,
		CreatedAt:   d.CreatedAt,
	}
	if d.RelatedPost != nil {
		n.RelatedSubjectID = d.RelatedPost.Hex()
	}
	return n
}

type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(db *mongo.Database) *NotificationStore {
	return &NotificationStore{coll: db.Collection(notificationsCollection)}
}

// EnsureIndexes creates the inbox and unread indexes. It is safe to run repeatedly.
func (s *NotificationStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}},
			Options: options.Index().SetName("userId_read"),
		},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

func (s *NotificationStore) Insert(ctx context.Context, n *domain.Notification) error {
	doc, err := toDoc(n)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	n.ID = doc.ID.Hex()
	return nil
}

// InsertMany writes unordered, so one bad document does not stop the rest.
// The returned count excludes documents the server rejected.
func (s *NotificationStore) InsertMany(ctx context.Context, ns []domain.Notification) (int, error) {
	docs := make([]notificationDoc, 0, len(ns))
	for i := range ns {
		doc, err := toDoc(&ns[i])
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	_, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && bwe.WriteConcernError == nil {
			return len(docs) - len(bwe.WriteErrors), err
		}
		return 0, err
	}
	for i := range ns {
		ns[i].ID = docs[i].ID.Hex()
	}
	return len(docs), nil
}

func (s *NotificationStore) ListByRecipient(ctx context.Context, recipientID string, offset, limit int) ([]domain.Notification, error) {
	uid, ok := objectID(recipientID)
	if !ok {
		return []domain.Notification{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.M{"userId": uid}, opts)
	if err != nil {
		return nil, err
	}
	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *NotificationStore) CountByRecipient(ctx context.Context, recipientID string) (int64, error) {
	uid, ok := objectID(recipientID)
	if !ok {
		return 0, nil
	}
	return s.coll.CountDocuments(ctx, bson.M{"userId": uid})
}

func (s *NotificationStore) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	uid, ok := objectID(recipientID)
	if !ok {
		return 0, nil
	}
	return s.coll.CountDocuments(ctx, bson.M{"userId": uid, "read": false})
}

func (s *NotificationStore) Get(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	filter, ok := ownedBy(notificationID, recipientID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	var doc notificationDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	n := doc.toDomain()
	return &n, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	filter, ok := ownedBy(notificationID, recipientID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	var doc notificationDoc
	err := s.coll.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	n := doc.toDomain()
	return &n, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	uid, ok := objectID(recipientID)
	if !ok {
		return 0, nil
	}
	res, err := s.coll.UpdateMany(ctx, bson.M{"userId": uid, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *NotificationStore) Delete(ctx context.Context, notificationID, recipientID string) error {
	filter, ok := ownedBy(notificationID, recipientID)
	if !ok {
		return domain.ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RepairKinds rewrites every stored type outside the current enumeration to system.
func (s *NotificationStore) RepairKinds(ctx context.Context) (int64, error) {
	kinds := domain.Kinds()
	known := make(bson.A, len(kinds))
	for i, k := range kinds {
		known[i] = string(k)
	}
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"type": bson.M{"$nin": known}},
		bson.M{"$set": bson.M{"type": string(domain.KindSystem)}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func objectID(s string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(s)
	return oid, err == nil
}

// ownedBy builds the filter shared by every single-record operation: the
// record must exist and belong to the recipient.
func ownedBy(notificationID, recipientID string) (bson.M, bool) {
	nid, ok := objectID(notificationID)
	if !ok {
		return nil, false
	}
	uid, ok := objectID(recipientID)
	if !ok {
		return nil, false
	}
	return bson.M{"_id": nid, "userId": uid}, true
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return err
}
