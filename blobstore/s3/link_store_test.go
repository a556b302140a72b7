package s3

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/revindex/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func itemKey(item map[string]types.AttributeValue) string {
	return item["base_uri"].(*types.AttributeValueMemberS).Value + ":" +
		item["link_name"].(*types.AttributeValueMemberS).Value
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &dynamodb.GetItemOutput{Item: m.items[itemKey(params.Key)]}, nil
}

func (m *mockDDBClient) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, itemKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query returns one item per page to exercise pagination.
func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uri := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value
	prefix := params.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value

	var keys []string
	for _, item := range m.items {
		name := item["link_name"].(*types.AttributeValueMemberS).Value
		if item["base_uri"].(*types.AttributeValueMemberS).Value == uri && strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)

	if params.ExclusiveStartKey != nil {
		after := params.ExclusiveStartKey["link_name"].(*types.AttributeValueMemberS).Value
		i := sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}
	if len(keys) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}

	item := map[string]types.AttributeValue{
		"base_uri":  &types.AttributeValueMemberS{Value: uri},
		"link_name": &types.AttributeValueMemberS{Value: keys[0]},
	}
	out := &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}
	if len(keys) > 1 {
		out.LastEvaluatedKey = item
	}
	return out, nil
}

func TestLinkStore_RoutesLinks(t *testing.T) {
	ctx := context.Background()
	objects := blobstore.NewMemoryStore()
	ddb := newMockDDBClient()
	store := NewLinkStore(objects, ddb, "revindex-links", "s3://bucket/index/")

	require.NoError(t, store.Put(ctx, "op_links/aa", []byte("link-a")))
	require.NoError(t, store.Put(ctx, "op_links/bb", []byte("link-b")))
	require.NoError(t, store.Put(ctx, "segments/s1", []byte("segment")))

	// Links never reach the object store.
	assert.Equal(t, 1, objects.Len())
	assert.Len(t, ddb.items, 2)

	data, err := blobstore.ReadAll(ctx, store, "op_links/aa")
	require.NoError(t, err)
	assert.Equal(t, []byte("link-a"), data)

	data, err = blobstore.ReadAll(ctx, store, "segments/s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("segment"), data)

	names, err := store.List(ctx, "op_links/")
	require.NoError(t, err)
	assert.Equal(t, []string{"op_links/aa", "op_links/bb"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"op_links/aa", "op_links/bb", "segments/s1"}, names)

	names, err = store.List(ctx, "segments/")
	require.NoError(t, err)
	assert.Equal(t, []string{"segments/s1"}, names)

	require.NoError(t, store.Delete(ctx, "op_links/aa"))
	_, err = store.Open(ctx, "op_links/aa")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestLinkStore_IsolatesBaseURI(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	a := NewLinkStore(blobstore.NewMemoryStore(), ddb, "revindex-links", "s3://bucket/a/")
	b := NewLinkStore(blobstore.NewMemoryStore(), ddb, "revindex-links", "s3://bucket/b/")

	require.NoError(t, a.Put(ctx, "op_links/01", []byte("a")))

	_, err := b.Open(ctx, "op_links/01")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	names, err := b.List(ctx, "op_links/")
	require.NoError(t, err)
	assert.Empty(t, names)
}
