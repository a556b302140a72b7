package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/revindex/blobstore"
)

// DefaultLinkPrefix is the blob-name prefix of operation links in an index directory.
const DefaultLinkPrefix = "op_links/"

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// LinkStore implements blobstore.BlobStore on top of another store, keeping
// blobs under the link prefix in DynamoDB instead.
//
// Table schema:
//   - Partition key: base_uri (string) - identifies the index directory
//   - Sort key: link_name (string) - the blob name, e.g. "op_links/<op>"
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name revindex-links \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=link_name,AttributeType=S \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=link_name,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type LinkStore struct {
	objects    blobstore.BlobStore
	ddbClient  DDBClient
	tableName  string
	baseURI    string
	linkPrefix string
}

// NewLinkStore creates a LinkStore. Blobs outside DefaultLinkPrefix go to objects.
func NewLinkStore(objects blobstore.BlobStore, ddbClient DDBClient, tableName, baseURI string) *LinkStore {
	return &LinkStore{
		objects:    objects,
		ddbClient:  ddbClient,
		tableName:  tableName,
		baseURI:    baseURI,
		linkPrefix: DefaultLinkPrefix,
	}
}

func (s *LinkStore) isLink(name string) bool {
	return strings.HasPrefix(name, s.linkPrefix)
}

func (s *LinkStore) itemKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"base_uri":  &types.AttributeValueMemberS{Value: s.baseURI},
		"link_name": &types.AttributeValueMemberS{Value: name},
	}
}

// Open opens a blob for reading. Links are read with strong consistency.
func (s *LinkStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if !s.isLink(name) {
		return s.objects.Open(ctx, name)
	}

	resp, err := s.ddbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get link %q from DynamoDB: %w", name, err)
	}
	if len(resp.Item) == 0 {
		return nil, blobstore.ErrNotFound
	}
	data, ok := resp.Item["data"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, errors.New("invalid data attribute in DynamoDB")
	}
	return &linkBlob{content: data.Value}, nil
}

// Put writes a blob. Links are written with a single PutItem, which is atomic.
func (s *LinkStore) Put(ctx context.Context, name string, data []byte) error {
	if !s.isLink(name) {
		return s.objects.Put(ctx, name, data)
	}

	item := s.itemKey(name)
	item["data"] = &types.AttributeValueMemberB{Value: data}
	if _, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to put link %q to DynamoDB: %w", name, err)
	}
	return nil
}

// Delete removes a blob.
func (s *LinkStore) Delete(ctx context.Context, name string) error {
	if !s.isLink(name) {
		return s.objects.Delete(ctx, name)
	}
	if _, err := s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.itemKey(name),
	}); err != nil {
		return fmt.Errorf("failed to delete link %q from DynamoDB: %w", name, err)
	}
	return nil
}

// List returns all blob names with the given prefix from both backends.
func (s *LinkStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	if !s.isLink(prefix) {
		objs, err := s.objects.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		names = append(names, objs...)
	}
	if s.isLink(prefix) || strings.HasPrefix(s.linkPrefix, prefix) {
		links, err := s.queryLinks(ctx, prefix)
		if err != nil {
			return nil, err
		}
		names = append(names, links...)
	}
	sort.Strings(names)
	return names, nil
}

func (s *LinkStore) queryLinks(ctx context.Context, prefix string) ([]string, error) {
	if !s.isLink(prefix) {
		prefix = s.linkPrefix
	}

	var (
		names []string
		start map[string]types.AttributeValue
	)
	for {
		resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("base_uri = :uri AND begins_with(link_name, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uri":    &types.AttributeValueMemberS{Value: s.baseURI},
				":prefix": &types.AttributeValueMemberS{Value: prefix},
			},
			ProjectionExpression: aws.String("link_name"),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
		}
		for _, item := range resp.Items {
			attr, ok := item["link_name"].(*types.AttributeValueMemberS)
			if !ok {
				return nil, errors.New("invalid link_name attribute in DynamoDB")
			}
			names = append(names, attr.Value)
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return names, nil
		}
		start = resp.LastEvaluatedKey
	}
}

// linkBlob is an in-memory blob holding a link fetched from DynamoDB.
type linkBlob struct {
	content []byte
}

func (b *linkBlob) Close() error {
	return nil
}

func (b *linkBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *linkBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *linkBlob) Bytes() ([]byte, error) {
	return b.content, nil
}
