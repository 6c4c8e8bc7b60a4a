package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"blv-assistant/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client mirrors committed turns into a DynamoDB table. It never reads back;
// the in-memory conversation store stays the source of truth.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// turnSK zero-pads the turn number so items sort in turn order.
func turnSK(turn int) string {
	return fmt.Sprintf("%s%06d", skPrefixTurn, turn)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// RecordTurn writes the turn item and the refreshed session metadata in one
// transaction. Writing the same turn twice fails the condition check.
func (c *Client) RecordTurn(ctx context.Context, rec domain.TurnRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("repository: RecordTurn: session id is required")
	}
	if rec.Turn <= 0 {
		return errors.New("repository: RecordTurn: turn must be positive")
	}
	if rec.At.IsZero() {
		rec.At = c.now()
	}
	meta := c.newSessionMeta(rec.SessionID, rec.Turn, rec.At)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                c.turnItem(rec),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordTurn: %w", err)
	}
	return nil
}

// EndSession stamps the session metadata with its final turn count.
func (c *Client) EndSession(ctx context.Context, sessionID string, turns int) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: EndSession: session id is required")
	}
	now := c.now()
	item := metaItem(c.newSessionMeta(sessionID, turns, now))
	item["endedAt"] = &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: EndSession: %w", err)
	}
	return nil
}

func (c *Client) newSessionMeta(sessionID string, turns int, at time.Time) domain.SessionMeta {
	return domain.SessionMeta{
		PK:           sessionPK(sessionID),
		SK:           skMeta,
		SessionID:    sessionID,
		LastActivity: at.UTC().Format(time.RFC3339),
		Turns:        turns,
		TTL:          c.ttlValue(),
	}
}

func (c *Client) turnItem(rec domain.TurnRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(rec.SessionID)},
		"SK":        &types.AttributeValueMemberS{Value: turnSK(rec.Turn)},
		"sessionId": &types.AttributeValueMemberS{Value: rec.SessionID},
		"turn":      &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Turn)},
		"user":      &types.AttributeValueMemberS{Value: rec.User},
		"assistant": &types.AttributeValueMemberS{Value: rec.Assistant},
		"recovered": &types.AttributeValueMemberBOOL{Value: rec.Recovered},
		"at":        &types.AttributeValueMemberS{Value: rec.At.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
	}
}

func metaItem(meta domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"sessionId":    &types.AttributeValueMemberS{Value: meta.SessionID},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}
