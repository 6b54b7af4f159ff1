package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"skill-analytics/internal/domain"
)

const (
	pkPrefixSession = "SESSION#"
	skPrefixFailed  = "FAILED#"
	ttlDuration     = 14 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores analytics batches that could not be delivered.
type Client struct {
	api       dynamodbAPI
	tableName string
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

func sessionPK(sessionID string) string {
	return pkPrefixSession + sessionID
}

// failedSK orders failures chronologically within a session and keeps two
// failures in the same instant distinct.
func failedSK(ts time.Time, batchID string) string {
	return skPrefixFailed + ts.UTC().Format(time.RFC3339Nano) + "#" + batchID
}

func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

var newBatchID = func() string {
	return uuid.NewString()
}

// NewFailedBatch builds a FailedBatch with keys and TTL derived from the
// session id and the current time.
func NewFailedBatch(sessionID, userID, payload string, cause error) domain.FailedBatch {
	now := time.Now()
	id := newBatchID()
	rec := domain.FailedBatch{
		PK:        sessionPK(sessionID),
		SK:        failedSK(now, id),
		BatchID:   id,
		SessionID: sessionID,
		UserID:    userID,
		Payload:   payload,
		TTL:       ttlValue(now),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	return rec
}

// SaveFailedBatch writes rec. Existing items are never overwritten.
func (c *Client) SaveFailedBatch(ctx context.Context, rec domain.FailedBatch) error {
	if rec.PK == "" || rec.SK == "" {
		return errors.New("repository: SaveFailedBatch: PK and SK are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                failedBatchItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveFailedBatch: %w", err)
	}
	return nil
}

// failedPayload is the stored form of a batch. The API key is left out.
type failedPayload struct {
	Platform string           `json:"platform"`
	Version  string           `json:"version"`
	Messages []domain.Message `json:"messages"`
}

// RecordFailure stores an undelivered message set under the session of its
// first message.
func (c *Client) RecordFailure(ctx context.Context, set domain.MessageSet, cause error) error {
	var sessionID, userID string
	if len(set.Messages) > 0 {
		sessionID = set.Messages[0].SessionID
		userID = set.Messages[0].UserID
	}
	payload, err := json.Marshal(failedPayload{
		Platform: set.Platform,
		Version:  set.Version,
		Messages: set.Messages,
	})
	if err != nil {
		return fmt.Errorf("repository: RecordFailure marshal: %w", err)
	}
	return c.SaveFailedBatch(ctx, NewFailedBatch(sessionID, userID, string(payload), cause))
}

// ListFailedBatches returns the failures recorded for a session, oldest first.
func (c *Client) ListFailedBatches(ctx context.Context, sessionID string, limit int) ([]domain.FailedBatch, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixFailed},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListFailedBatches query: %w", err)
	}

	recs := make([]domain.FailedBatch, 0, len(out.Items))
	for _, item := range out.Items {
		rec, err := itemToFailedBatch(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListFailedBatches unmarshal: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func failedBatchItem(rec domain.FailedBatch) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: rec.PK},
		"SK":        &types.AttributeValueMemberS{Value: rec.SK},
		"batchId":   &types.AttributeValueMemberS{Value: rec.BatchID},
		"sessionId": &types.AttributeValueMemberS{Value: rec.SessionID},
		"userId":    &types.AttributeValueMemberS{Value: rec.UserID},
		"payload":   &types.AttributeValueMemberS{Value: rec.Payload},
		"error":     &types.AttributeValueMemberS{Value: rec.Error},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.TTL)},
	}
}

func itemToFailedBatch(item map[string]types.AttributeValue) (domain.FailedBatch, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.FailedBatch{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.FailedBatch{}, err
	}
	payload, err := strAttr(item, "payload")
	if err != nil {
		return domain.FailedBatch{}, err
	}
	batchID, _ := strAttr(item, "batchId")
	sessionID, _ := strAttr(item, "sessionId")
	userID, _ := strAttr(item, "userId")
	cause, _ := strAttr(item, "error")

	return domain.FailedBatch{
		PK:        pk,
		SK:        sk,
		BatchID:   batchID,
		SessionID: sessionID,
		UserID:    userID,
		Payload:   payload,
		Error:     cause,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
