package mongo

import (
	"context"

	"github.com/tuition-notify/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// userDoc mirrors the fields of the shared users collection this service reads.
type userDoc struct {
	ID    bson.ObjectID `bson:"_id"`
	Name  string        `bson:"name"`
	Role  string        `bson:"role"`
	Email string        `bson:"email"`
	Phone string        `bson:"phone,omitempty"`

	TelegramChatID string `bson:"telegramChatId,omitempty"`
	FCMToken       string `bson:"fcmToken,omitempty"`

	EmailNotifications    bool `bson:"emailNotifications"`
	WhatsAppNotifications bool `bson:"whatsappNotifications"`
	TelegramNotifications bool `bson:"telegramNotifications"`
	PushNotifications     bool `bson:"pushNotifications"`
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:                    d.ID.Hex(),
		Name:                  d.Name,
		Role:                  d.Role,
		Email:                 d.Email,
		Phone:                 d.Phone,
		TelegramChatID:        d.TelegramChatID,
		FCMToken:              d.FCMToken,
		EmailNotifications:    d.EmailNotifications,
		WhatsAppNotifications: d.WhatsAppNotifications,
		TelegramNotifications: d.TelegramNotifications,
		PushNotifications:     d.PushNotifications,
	}
}

// userProjection keeps password hashes and profile data off the wire.
var userProjection = bson.M{
	"name": 1, "role": 1, "email": 1, "phone": 1,
	"telegramChatId": 1, "fcmToken": 1,
	"emailNotifications": 1, "whatsappNotifications": 1, "telegramNotifications": 1, "pushNotifications": 1,
}

type Directory struct {
	coll *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{coll: db.Collection(usersCollection)}
}

func (d *Directory) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	oid, ok := objectID(userID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	var doc userDoc
	err := d.coll.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(userProjection)).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	u := doc.toDomain()
	return &u, nil
}

// FindByIDs loads the users among ids in one query. Malformed and unknown ids are skipped.
func (d *Directory) FindByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	oids := make(bson.A, 0, len(ids))
	for _, s := range ids {
		if oid, ok := objectID(s); ok {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []domain.User{}, nil
	}
	return d.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (d *Directory) FindByRole(ctx context.Context, role string) ([]domain.User, error) {
	return d.find(ctx, bson.M{"role": role})
}

func (d *Directory) find(ctx context.Context, filter bson.M) ([]domain.User, error) {
	cur, err := d.coll.Find(ctx, filter, options.Find().SetProjection(userProjection).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.User, len(docs))
	for i, doc := range docs {
		out[i] = doc.toDomain()
	}
	return out, nil
}

func (d *Directory) UpdatePreferences(ctx context.Context, userID string, upd domain.PreferenceUpdate) (*domain.User, error) {
	oid, ok := objectID(userID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	set := preferenceSet(upd)
	if len(set) == 0 {
		return d.FindByID(ctx, userID)
	}
	var doc userDoc
	err := d.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(userProjection),
	).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	u := doc.toDomain()
	return &u, nil
}

func preferenceSet(upd domain.PreferenceUpdate) bson.M {
	set := bson.M{}
	if upd.EmailNotifications != nil {
		set["emailNotifications"] = *upd.EmailNotifications
	}
	if upd.WhatsAppNotifications != nil {
		set["whatsappNotifications"] = *upd.WhatsAppNotifications
	}
	if upd.TelegramNotifications != nil {
		set["telegramNotifications"] = *upd.TelegramNotifications
	}
	if upd.PushNotifications != nil {
		set["pushNotifications"] = *upd.PushNotifications
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.TelegramChatID != nil {
		set["telegramChatId"] = *upd.TelegramChatID
	}
	if upd.FCMToken != nil {
		set["fcmToken"] = *upd.FCMToken
	}
	return set
}
