package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix = "JOB#"
	skMeta   = "META"
)

// DynamoAPI is the subset of the DynamoDB client the job store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps one item per job with a TTL attribute.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func jobKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + id},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

func (s *DynamoStore) Put(ctx context.Context, job *Job) error {
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	for k, v := range jobKey(job.ID) {
		item[k] = v
	}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Add(TTL).Unix(), 10)}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("PutItem job %s: %w", job.ID, err)
	}
	log.Debug().Str("jobId", job.ID).Str("status", string(job.Status)).Msg("Job persisted")
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*Job, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       jobKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem job %s: %w", id, err)
	}
	if result.Item == nil {
		log.Debug().Str("jobId", id).Bool("found", false).Msg("Job not found")
		return nil, nil
	}
	var job Job
	if err := attributevalue.UnmarshalMap(result.Item, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	job.ID = id
	return &job, nil
}
