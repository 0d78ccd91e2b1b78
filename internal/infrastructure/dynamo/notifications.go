package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/pkg/id"
)

// notificationItem is the stored shape. read is a number so it can key the unread index.
type notificationItem struct {
	NotificationID   string `dynamodbav:"notification_id"`
	UserID           string `dynamodbav:"user_id"`
	Title            string `dynamodbav:"title"`
	Message          string `dynamodbav:"message"`
	Type             string `dynamodbav:"type"`
	RelatedSubjectID string `dynamodbav:"related_subject_id,omitempty"`
	Read             int    `dynamodbav:"read"`
	CreatedAt        string `dynamodbav:"created_at"`
}

func toItem(n domain.Notification) notificationItem {
	it := notificationItem{
		NotificationID:   n.ID,
		UserID:           n.RecipientID,
		Title:            n.Title,
		Message:          n.Message,
		Type:             string(n.Kind),
		RelatedSubjectID: n.RelatedSubjectID,
		CreatedAt:        n.CreatedAt.UTC().Format(createdAtLayout),
	}
	if n.Read {
		it.Read = 1
	}
	return it
}

func (it notificationItem) toDomain() domain.Notification {
	created, _ := time.Parse(createdAtLayout, it.CreatedAt)
	return domain.Notification{
		ID:               it.NotificationID,
		RecipientID:      it.UserID,
		Title:            it.Title,
		Message:          it.Message,
		Kind:             domain.Kind(it.Type),
		RelatedSubjectID: it.RelatedSubjectID,
		Read:             it.Read == 1,
		CreatedAt:        created,
	}
}

// NotificationStore provides typed DynamoDB operations for the notifications table.
type NotificationStore struct {
	client    API
	tableName string
}

func NewNotificationStore(client API, tableName string) *NotificationStore {
	return &NotificationStore{client: client, tableName: tableName}
}

func (s *NotificationStore) Insert(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = id.New()
	}
	item, err := attributevalue.MarshalMap(toItem(*n))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

// InsertMany writes in batches of 25 and retries unprocessed items. The count
// covers only items DynamoDB accepted.
func (s *NotificationStore) InsertMany(ctx context.Context, ns []domain.Notification) (int, error) {
	requests := make([]types.WriteRequest, 0, len(ns))
	for i := range ns {
		if ns[i].ID == "" {
			ns[i].ID = id.New()
		}
		item, err := attributevalue.MarshalMap(toItem(ns[i]))
		if err != nil {
			return 0, fmt.Errorf("marshal notification: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	written := 0
	for _, batch := range chunks(requests, maxBatchWrite) {
		pending := batch
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > 0 {
				if attempt > maxBatchRetry {
					return written, fmt.Errorf("%d notifications left unprocessed", len(pending))
				}
				if err := backoff(ctx, attempt); err != nil {
					return written, err
				}
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.tableName: pending},
			})
			if err != nil {
				return written, err
			}
			left := out.UnprocessedItems[s.tableName]
			written += len(pending) - len(left)
			pending = left
		}
	}
	return written, nil
}

// ListByRecipient walks the inbox index newest first until offset+limit items are seen.
func (s *NotificationStore) ListByRecipient(ctx context.Context, recipientID string, offset, limit int) ([]domain.Notification, error) {
	p := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(indexUserCreatedAt),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: recipientID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(min(offset+limit, 1000))),
	})

	want := offset + limit
	var items []notificationItem
	for p.HasMorePages() && len(items) < want {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []notificationItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}

	out := []domain.Notification{}
	if offset >= len(items) {
		return out, nil
	}
	for _, it := range items[offset:min(want, len(items))] {
		out = append(out, it.toDomain())
	}
	return out, nil
}

func (s *NotificationStore) CountByRecipient(ctx context.Context, recipientID string) (int64, error) {
	return s.count(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(indexUserCreatedAt),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: recipientID},
		},
		Select: types.SelectCount,
	})
}

func (s *NotificationStore) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return s.count(ctx, s.unreadQuery(recipientID, types.SelectCount))
}

func (s *NotificationStore) unreadQuery(recipientID string, sel types.Select) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(indexUserRead),
		KeyConditionExpression: aws.String("user_id = :uid AND #r = :zero"),
		ExpressionAttributeNames: map[string]string{
			"#r": fieldRead,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":  &types.AttributeValueMemberS{Value: recipientID},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
		Select: sel,
	}
	if sel == types.SelectSpecificAttributes {
		in.ProjectionExpression = aws.String(fieldNotificationID)
	}
	return in
}

func (s *NotificationStore) count(ctx context.Context, in *dynamodb.QueryInput) (int64, error) {
	var total int64
	p := dynamodb.NewQueryPaginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int64(page.Count)
	}
	return total, nil
}

func (s *NotificationStore) Get(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey(fieldNotificationID, notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	var it notificationItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	if it.UserID != recipientID {
		return nil, domain.ErrNotFound
	}
	n := it.toDomain()
	return &n, nil
}

// MarkRead only updates an item whose user_id matches; a mismatch or a
// missing item both fail the condition and come back as ErrNotFound.
func (s *NotificationStore) MarkRead(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldRead: 1})
	if err != nil {
		return nil, err
	}
	ue.Names["#owner"] = fieldUserID
	ue.Values[":owner"] = &types.AttributeValueMemberS{Value: recipientID}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       strKey(fieldNotificationID, notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#owner = :owner"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, conditionFailed(err)
	}
	var it notificationItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, err
	}
	n := it.toDomain()
	return &n, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	var modified int64
	p := dynamodb.NewQueryPaginator(s.client, s.unreadQuery(recipientID, types.SelectSpecificAttributes))
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return modified, err
		}
		for _, item := range page.Items {
			idAttr, ok := item[fieldNotificationID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, err := s.MarkRead(ctx, idAttr.Value, recipientID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return modified, err
			}
			modified++
		}
	}
	return modified, nil
}

func (s *NotificationStore) Delete(ctx context.Context, notificationID, recipientID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      strKey(fieldNotificationID, notificationID),
		ConditionExpression:      aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{"#owner": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: recipientID},
		},
	})
	return conditionFailed(err)
}

// RepairKinds scans for types outside the current enumeration and rewrites them to system.
func (s *NotificationStore) RepairKinds(ctx context.Context) (int64, error) {
	kinds := domain.Kinds()
	values := map[string]types.AttributeValue{}
	placeholders := make([]string, len(kinds))
	for i, k := range kinds {
		ph := fmt.Sprintf(":k%d", i)
		placeholders[i] = ph
		values[ph] = &types.AttributeValueMemberS{Value: string(k)}
	}

	var fixed int64
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          aws.String(fmt.Sprintf("NOT (#t IN (%s))", strings.Join(placeholders, ", "))),
		ProjectionExpression:      aws.String(fieldNotificationID),
		ExpressionAttributeNames:  map[string]string{"#t": fieldType},
		ExpressionAttributeValues: values,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fixed, err
		}
		for _, item := range page.Items {
			idAttr, ok := item[fieldNotificationID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			ue, err := buildUpdateExpr(map[string]interface{}{fieldType: string(domain.KindSystem)})
			if err != nil {
				return fixed, err
			}
			if _, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName:                 aws.String(s.tableName),
				Key:                       strKey(fieldNotificationID, idAttr.Value),
				UpdateExpression:          aws.String(ue.Expr),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}); err != nil {
				return fixed, err
			}
			fixed++
		}
	}
	return fixed, nil
}
