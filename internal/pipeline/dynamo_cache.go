package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// dynamoEntry wraps CacheEntry with the numeric TTL attribute DynamoDB expires on.
type dynamoEntry struct {
	ConversationID string     `dynamodbav:"conversationId"`
	Entry          CacheEntry `dynamodbav:"entry"`
	ExpiresAt      int64      `dynamodbav:"expiresAt"`
}

// DynamoCache is a ProcessingCache backed by a DynamoDB table with TTL on
// expiresAt. Expired entries not yet reaped by DynamoDB are filtered on read.
type DynamoCache struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoCache creates a DynamoDB-backed cache.
func NewDynamoCache(client dynamoAPI, tableName string, ttl time.Duration) *DynamoCache {
	if client == nil {
		panic("pipeline: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("pipeline: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DynamoCache{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (c *DynamoCache) Get(ctx context.Context, conversationID string) (*CacheEntry, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: cache get: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrEntryNotFound
	}

	var item dynamoEntry
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("pipeline: decode cache entry: %w", err)
	}
	if item.ExpiresAt > 0 && c.now().UTC().Unix() > item.ExpiresAt {
		return nil, ErrEntryNotFound
	}
	return &item.Entry, nil
}

func (c *DynamoCache) Put(ctx context.Context, entry *CacheEntry) error {
	if entry == nil || entry.ConversationID == "" {
		return ErrEntryNotFound
	}
	stored := *entry
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = c.now().UTC().Add(c.ttl)
	}

	item, err := attributevalue.MarshalMap(dynamoEntry{
		ConversationID: entry.ConversationID,
		Entry:          stored,
		ExpiresAt:      stored.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("pipeline: encode cache entry: %w", err)
	}

	if _, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("pipeline: cache put: %w", err)
	}
	return nil
}

func (c *DynamoCache) Delete(ctx context.Context, conversationID string) error {
	if _, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
	}); err != nil {
		return fmt.Errorf("pipeline: cache delete: %w", err)
	}
	return nil
}

var _ ProcessingCache = (*DynamoCache)(nil)
