// Package repository persists chat conversations in DynamoDB.
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

	"mindlog-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// sortableTime is fixed width so sort keys order lexically by time.
	sortableTime = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table for conversation state. Each conversation is
// one partition: turn items under MSG# sort keys and a single META# item.
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

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// msgSK orders turns by timestamp, then by seq within one exchange.
func msgSK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%d", skPrefixMsg, ts.UTC().Format(sortableTime), seq)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// GetRecentTurns returns up to limit of the newest turns, oldest first.
func (c *Client) GetRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ChatTurn, error) {
	if limit <= 0 {
		return []domain.ChatTurn{}, nil
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetRecentTurns query: %w", err)
	}

	turns := make([]domain.ChatTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetRecentTurns unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// GetMeta returns the conversation metadata. A conversation that was never
// written has zero turns and no error.
func (c *Client) GetMeta(ctx context.Context, conversationID string) (domain.ConversationMeta, error) {
	meta := domain.ConversationMeta{ConversationID: conversationID}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return meta, fmt.Errorf("repository: GetMeta get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return meta, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return meta, fmt.Errorf("repository: GetMeta decode turns: %w", err)
	}
	meta.Turns = turns
	if raw, err := strAttr(out.Item, "lastActivity"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			meta.LastActivity = ts
		}
	}
	return meta, nil
}

// AppendExchange writes a user turn and the assistant's reply and bumps the
// conversation metadata in one transaction.
func (c *Client) AppendExchange(ctx context.Context, conversationID string, user, assistant domain.ChatTurn) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: AppendExchange: conversation id is required")
	}
	if user.Role != domain.RoleUser || assistant.Role != domain.RoleAssistant {
		return fmt.Errorf("repository: AppendExchange: want user then assistant turn, got %q then %q", user.Role, assistant.Role)
	}

	ttl := c.ttlValue()
	now := c.now().UTC()
	tx := []types.TransactWriteItem{
		{Put: c.turnPut(conversationID, user, 0, ttl)},
		{Put: c.turnPut(conversationID, assistant, 1, ttl)},
		{
			Update: &types.Update{
				TableName: aws.String(c.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
					"SK": &types.AttributeValueMemberS{Value: skMeta},
				},
				UpdateExpression:         aws.String("SET conversationId = :cid, lastActivity = :now, #ttl = :ttl ADD turns :n"),
				ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":cid": &types.AttributeValueMemberS{Value: conversationID},
					":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
					":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
					":n":   &types.AttributeValueMemberN{Value: "2"},
				},
			},
		},
	}

	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx}); err != nil {
		return fmt.Errorf("repository: AppendExchange: %w", err)
	}
	return nil
}

func (c *Client) turnPut(conversationID string, turn domain.ChatTurn, seq int, ttl int64) *types.Put {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	return &types.Put{
		TableName:           aws.String(c.tableName),
		Item:                turnItem(conversationID, turn, ts, seq, ttl),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	}
}

func turnItem(conversationID string, turn domain.ChatTurn, ts time.Time, seq int, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: msgSK(ts, seq)},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"turnId":         &types.AttributeValueMemberS{Value: turn.ID},
		"role":           &types.AttributeValueMemberS{Value: string(turn.Role)},
		"content":        &types.AttributeValueMemberS{Value: turn.Content},
		"timestamp":      &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToTurn converts a DynamoDB attribute map to a ChatTurn.
func itemToTurn(item map[string]types.AttributeValue) (domain.ChatTurn, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	if r := domain.Role(role); r != domain.RoleUser && r != domain.RoleAssistant {
		return domain.ChatTurn{}, fmt.Errorf("repository: unknown role %q", role)
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	id, _ := strAttr(item, "turnId") // allow empty

	var ts time.Time
	if raw, err := strAttr(item, "timestamp"); err == nil {
		ts, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.ChatTurn{}, fmt.Errorf("repository: parse timestamp: %w", err)
		}
	}
	return domain.ChatTurn{ID: id, Role: domain.Role(role), Content: content, Timestamp: ts}, nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
