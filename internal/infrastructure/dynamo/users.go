package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tuition-notify/internal/domain"
)

type userItem struct {
	UserID string `dynamodbav:"user_id"`
	Name   string `dynamodbav:"name"`
	Role   string `dynamodbav:"role"`
	Email  string `dynamodbav:"email"`
	Phone  string `dynamodbav:"phone,omitempty"`

	TelegramChatID string `dynamodbav:"telegram_chat_id,omitempty"`
	FCMToken       string `dynamodbav:"fcm_token,omitempty"`

	EmailNotifications    bool `dynamodbav:"email_notifications"`
	WhatsAppNotifications bool `dynamodbav:"whatsapp_notifications"`
	TelegramNotifications bool `dynamodbav:"telegram_notifications"`
	PushNotifications     bool `dynamodbav:"push_notifications"`
}

func (it userItem) toDomain() domain.User {
	return domain.User{
		ID:                    it.UserID,
		Name:                  it.Name,
		Role:                  it.Role,
		Email:                 it.Email,
		Phone:                 it.Phone,
		TelegramChatID:        it.TelegramChatID,
		FCMToken:              it.FCMToken,
		EmailNotifications:    it.EmailNotifications,
		WhatsAppNotifications: it.WhatsAppNotifications,
		TelegramNotifications: it.TelegramNotifications,
		PushNotifications:     it.PushNotifications,
	}
}

// Directory reads users and their notification preferences from the users table.
type Directory struct {
	client    API
	tableName string
}

func NewDirectory(client API, tableName string) *Directory {
	return &Directory{client: client, tableName: tableName}
}

func (d *Directory) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       strKey(fieldUserID, userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	var it userItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	u := it.toDomain()
	return &u, nil
}

// FindByIDs batch-reads up to 100 keys per request and retries unprocessed keys.
func (d *Directory) FindByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	out := make([]domain.User, 0, len(ids))
	for _, batch := range chunks(ids, maxBatchGet) {
		keys := make([]map[string]types.AttributeValue, len(batch))
		for i, uid := range batch {
			keys[i] = strKey(fieldUserID, uid)
		}
		for attempt := 0; len(keys) > 0; attempt++ {
			if attempt > 0 {
				if attempt > maxBatchRetry {
					return out, fmt.Errorf("%d user keys left unprocessed", len(keys))
				}
				if err := backoff(ctx, attempt); err != nil {
					return out, err
				}
			}
			res, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{d.tableName: {Keys: keys}},
			})
			if err != nil {
				return out, err
			}
			var items []userItem
			if err := attributevalue.UnmarshalListOfMaps(res.Responses[d.tableName], &items); err != nil {
				return out, err
			}
			for _, it := range items {
				out = append(out, it.toDomain())
			}
			keys = res.UnprocessedKeys[d.tableName].Keys
		}
	}
	return out, nil
}

func (d *Directory) FindByRole(ctx context.Context, role string) ([]domain.User, error) {
	p := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(indexRole),
		KeyConditionExpression:    aws.String("#role = :role"),
		ExpressionAttributeNames:  map[string]string{"#role": fieldRole},
		ExpressionAttributeValues: map[string]types.AttributeValue{":role": &types.AttributeValueMemberS{Value: role}},
	})
	var out []domain.User
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []userItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		for _, it := range items {
			out = append(out, it.toDomain())
		}
	}
	return out, nil
}

func (d *Directory) UpdatePreferences(ctx context.Context, userID string, upd domain.PreferenceUpdate) (*domain.User, error) {
	updates := preferenceUpdates(upd)
	if len(updates) == 0 {
		return d.FindByID(ctx, userID)
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldUserID

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, conditionFailed(err)
	}
	var it userItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, err
	}
	u := it.toDomain()
	return &u, nil
}

func preferenceUpdates(upd domain.PreferenceUpdate) map[string]interface{} {
	m := map[string]interface{}{}
	if upd.EmailNotifications != nil {
		m["email_notifications"] = *upd.EmailNotifications
	}
	if upd.WhatsAppNotifications != nil {
		m["whatsapp_notifications"] = *upd.WhatsAppNotifications
	}
	if upd.TelegramNotifications != nil {
		m["telegram_notifications"] = *upd.TelegramNotifications
	}
	if upd.PushNotifications != nil {
		m["push_notifications"] = *upd.PushNotifications
	}
	if upd.Phone != nil {
		m["phone"] = *upd.Phone
	}
	if upd.TelegramChatID != nil {
		m["telegram_chat_id"] = *upd.TelegramChatID
	}
	if upd.FCMToken != nil {
		m["fcm_token"] = *upd.FCMToken
	}
	return m
}
