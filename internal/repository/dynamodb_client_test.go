package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"mindlog-agent/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	queryOut     *dynamodb.QueryOutput
	queryErr     error
	txErr        error
	lastGetInput *dynamodb.GetItemInput
	lastQueryIn  *dynamodb.QueryInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func makeTurnItem(sk, role, content string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK":        &types.AttributeValueMemberS{Value: sk},
		"role":      &types.AttributeValueMemberS{Value: role},
		"content":   &types.AttributeValueMemberS{Value: content},
		"timestamp": &types.AttributeValueMemberS{Value: "2026-02-27T12:00:00Z"},
	}
}

func makeMetaItem(turns int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK":           &types.AttributeValueMemberS{Value: skMeta},
		"turns":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", turns)},
		"lastActivity": &types.AttributeValueMemberS{Value: "2026-02-27T12:00:00Z"},
	}
}

var fixedNow = time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func sAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, err := strAttr(item, key)
	require.NoError(t, err)
	return v
}

// ---------------------------------------------------------------------------
// GetMeta
// ---------------------------------------------------------------------------

func TestGetMeta_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makeMetaItem(6)}}
	c := mustNewClient(t, db)
	meta, err := c.GetMeta(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, 6, meta.Turns)
	require.Equal(t, "abc", meta.ConversationID)
	require.Equal(t, fixedNow, meta.LastActivity)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestGetMeta_Missing(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	meta, err := c.GetMeta(context.Background(), "abc")
	require.NoError(t, err)
	require.Zero(t, meta.Turns)
}

func TestGetMeta_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErr: errors.New("boom")})
	_, err := c.GetMeta(context.Background(), "abc")
	require.ErrorContains(t, err, "GetMeta")

	bad := makeMetaItem(1)
	bad["turns"] = &types.AttributeValueMemberS{Value: "bad"}
	c = mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: bad}})
	_, err = c.GetMeta(context.Background(), "abc")
	require.ErrorContains(t, err, "decode turns")
}

// ---------------------------------------------------------------------------
// GetRecentTurns
// ---------------------------------------------------------------------------

func TestGetRecentTurns_QueryShape(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	turns, err := c.GetRecentTurns(context.Background(), "abc", domain.MaxHistoryTurns)
	require.NoError(t, err)
	require.NotNil(t, turns)
	require.Empty(t, turns)
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.lastQueryIn.KeyConditionExpression)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.EqualValues(t, 10, *db.lastQueryIn.Limit)
	require.Equal(t, "CONV#abc", db.lastQueryIn.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)
}

func TestGetRecentTurns_ReordersDescendingResultsToChronological(t *testing.T) {
	db := &fakeDynamo{
		queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				makeTurnItem("MSG#2026-02-27T12:00:00.000000000Z#1", "assistant", "newer"),
				makeTurnItem("MSG#2026-02-27T12:00:00.000000000Z#0", "user", "older"),
			},
		},
	}
	c := mustNewClient(t, db)
	turns, err := c.GetRecentTurns(context.Background(), "abc", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "older", turns[0].Content)
	require.Equal(t, domain.RoleUser, turns[0].Role)
	require.Equal(t, "newer", turns[1].Content)
	require.Equal(t, fixedNow, turns[1].Timestamp)
}

func TestGetRecentTurns_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")})
	_, err := c.GetRecentTurns(context.Background(), "abc", 10)
	require.ErrorContains(t, err, "GetRecentTurns")

	missing := makeTurnItem("MSG#x#0", "user", "hi")
	delete(missing, "content")
	c = mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{missing}}})
	_, err = c.GetRecentTurns(context.Background(), "abc", 10)
	require.ErrorContains(t, err, "content")

	badRole := makeTurnItem("MSG#x#0", "system", "hi")
	c = mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{badRole}}})
	_, err = c.GetRecentTurns(context.Background(), "abc", 10)
	require.ErrorContains(t, err, "unknown role")
}

func TestGetRecentTurns_NonPositiveLimit(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	turns, err := c.GetRecentTurns(context.Background(), "abc", 0)
	require.NoError(t, err)
	require.Empty(t, turns)
	require.Nil(t, db.lastQueryIn)
}

// ---------------------------------------------------------------------------
// AppendExchange
// ---------------------------------------------------------------------------

func TestAppendExchange_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	ts := time.Date(2026, 2, 27, 11, 59, 0, 0, time.UTC)

	err := c.AppendExchange(context.Background(), "abc",
		domain.ChatTurn{ID: "u1", Role: domain.RoleUser, Content: "How was my week?", Timestamp: ts},
		domain.ChatTurn{ID: "a1", Role: domain.RoleAssistant, Content: "Busy but good."},
	)
	require.NoError(t, err)
	items := db.lastTxInput.TransactItems
	require.Len(t, items, 3)

	user := items[0].Put
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *user.ConditionExpression)
	require.Equal(t, "CONV#abc", sAttr(t, user.Item, "PK"))
	require.Equal(t, "MSG#2026-02-27T11:59:00.000000000Z#0", sAttr(t, user.Item, "SK"))
	require.Equal(t, "user", sAttr(t, user.Item, "role"))
	require.Equal(t, "u1", sAttr(t, user.Item, "turnId"))

	assistant := items[1].Put
	require.Equal(t, "MSG#2026-02-27T12:00:00.000000000Z#1", sAttr(t, assistant.Item, "SK"), "zero timestamp uses now")
	require.Equal(t, "Busy but good.", sAttr(t, assistant.Item, "content"))

	meta := items[2].Update
	require.Equal(t, skMeta, meta.Key["SK"].(*types.AttributeValueMemberS).Value)
	require.Contains(t, *meta.UpdateExpression, "ADD turns :n")
	require.Equal(t, "ttl", meta.ExpressionAttributeNames["#ttl"])
	wantTTL := fmt.Sprintf("%d", fixedNow.Add(ttlDuration).Unix())
	require.Equal(t, wantTTL, meta.ExpressionAttributeValues[":ttl"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, wantTTL, user.Item["ttl"].(*types.AttributeValueMemberN).Value)
}

func TestAppendExchange_Validation(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	u := domain.ChatTurn{Role: domain.RoleUser, Content: "hi"}
	a := domain.ChatTurn{Role: domain.RoleAssistant, Content: "hello"}

	require.ErrorContains(t, c.AppendExchange(context.Background(), " ", u, a), "conversation id")
	require.ErrorContains(t, c.AppendExchange(context.Background(), "abc", a, u), "want user then assistant")
}

func TestAppendExchange_DynamoError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{txErr: errors.New("transaction canceled")})
	err := c.AppendExchange(context.Background(), "abc",
		domain.ChatTurn{Role: domain.RoleUser, Content: "hi"},
		domain.ChatTurn{Role: domain.RoleAssistant, Content: "hello"},
	)
	require.ErrorContains(t, err, "AppendExchange")
	require.ErrorContains(t, err, "transaction canceled")
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

func TestConvPK(t *testing.T) {
	require.Equal(t, "CONV#my-conv", convPK("my-conv"))
}

func TestMsgSK_SortsChronologically(t *testing.T) {
	base := time.Date(2026, 2, 25, 10, 0, 5, 0, time.UTC)
	keys := []string{
		msgSK(base.Add(120*time.Millisecond), 0),
		msgSK(base.Add(100*time.Millisecond), 1),
		msgSK(base.Add(100*time.Millisecond), 0),
		msgSK(base, 0),
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	require.Equal(t, []string{keys[3], keys[2], keys[1], keys[0]}, sorted)
	require.Equal(t, "MSG#2026-02-25T10:00:05.000000000Z#0", keys[3])
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
