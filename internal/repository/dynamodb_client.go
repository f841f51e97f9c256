package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/krish7x/store-agent/internal/domain"
)

const (
	skHistory   = "HISTORY#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client wraps a DynamoDB table holding one compacted history item per
// session. Saves replace the whole item, so the last writer wins.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// GetHistory loads and expands the stored history for a session. A missing
// item means a fresh session and returns an empty history.
func (c *Client) GetHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skHistory},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	payload, err := strAttr(out.Item, "messages")
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory: %w", err)
	}
	messages, err := decodeMessages(payload)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory: %w", err)
	}
	return messages, nil
}

// SaveHistory compacts and writes the full history for a session, replacing
// whatever was stored before.
func (c *Client) SaveHistory(ctx context.Context, sessionID string, messages []domain.ChatMessage) error {
	payload, err := encodeMessages(messages)
	if err != nil {
		return fmt.Errorf("repository: SaveHistory: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK":        &types.AttributeValueMemberS{Value: skHistory},
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
			"messages":  &types.AttributeValueMemberS{Value: payload},
			"updatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveHistory: %w", err)
	}
	return nil
}

// ClearHistory removes the stored history item for a session. Deleting a
// session that does not exist is not an error.
func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skHistory},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: ClearHistory: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}
