package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix = "RESULT#"
	skResult = "RESPONSE"
)

// DynamoAPI is the subset of the DynamoDB client the cache uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// item is one cached response. Payload is zstd-compressed JSON; the table's
// TTL attribute expiresAt removes stale items eventually, and Get checks it
// so an item past expiry is never served.
type item struct {
	Payload   []byte `dynamodbav:"payload"`
	CreatedAt int64  `dynamodbav:"createdAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// Dynamo stores responses in a DynamoDB table keyed by PK/SK.
type Dynamo struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	now       func() time.Time
}

var _ Cache = (*Dynamo)(nil)

func NewDynamo(client DynamoAPI, tableName string, ttl time.Duration) (*Dynamo, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Dynamo{client: client, tableName: tableName, ttl: ttl, encoder: enc, decoder: dec, now: time.Now}, nil
}

func key(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + k},
		"SK": &types.AttributeValueMemberS{Value: skResult},
	}
}

func (d *Dynamo) Get(ctx context.Context, k string, out any) (bool, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &d.tableName,
		Key:       key(k),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem %s: %w", k, err)
	}
	if result.Item == nil {
		return false, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(result.Item, &it); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", k, err)
	}
	if d.now().Unix() >= it.ExpiresAt {
		log.Debug().Str("key", k).Msg("Cached result expired")
		return false, nil
	}
	raw, err := d.decoder.DecodeAll(it.Payload, nil)
	if err != nil {
		return false, fmt.Errorf("decompress %s: %w", k, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", k, err)
	}
	return true, nil
}

func (d *Dynamo) Put(ctx context.Context, k string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	now := d.now()
	av, err := attributevalue.MarshalMap(item{
		Payload:   d.encoder.EncodeAll(raw, nil),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(d.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	for name, v := range key(k) {
		av[name] = v
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &d.tableName,
		Item:      av,
	}); err != nil {
		return fmt.Errorf("PutItem %s: %w", k, err)
	}
	log.Debug().
		Str("key", k).
		Int("bytes", len(raw)).
		Str("expiresAt", strconv.FormatInt(now.Add(d.ttl).Unix(), 10)).
		Msg("Result cached")
	return nil
}
