package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/factwise/schema-mapper/internal/config"
	"github.com/factwise/schema-mapper/internal/domain"
)

// Partition keys of the single DynamoDB table. The sort key is the record
// ID within each partition.
const (
	pkSession  = "SESSION"
	pkTemplate = "TEMPLATE"
)

// AWSStorage provides AWS-backed storage using DynamoDB and S3.
type AWSStorage struct {
	dynamoDB  *dynamodb.Client
	s3Client  *s3.Client
	presigner *s3.PresignClient
	tableName string
}

// DynamoDBItem represents an item stored in DynamoDB.
type DynamoDBItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// NewAWSStorage creates a new AWS storage instance.
func NewAWSStorage(ctx context.Context, cfg config.StorageConfig) (*AWSStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		))
	} else if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &AWSStorage{
		dynamoDB:  dynamodb.NewFromConfig(awsCfg),
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		tableName: cfg.DynamoDBTable,
	}, nil
}

// ==================== S3 ====================

// PutObject uploads raw bytes to S3.
func (s *AWSStorage) PutObject(ctx context.Context, bucket, key string, content []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentTypeFor(key)),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}
	return nil
}

// GetObject downloads an object's bytes from S3.
func (s *AWSStorage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	return data, nil
}

// PresignGet returns a presigned GET URL valid for expiry.
func (s *AWSStorage) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning S3 object: %w", err)
	}
	return req.URL, nil
}

func contentTypeFor(key string) string {
	switch filepath.Ext(key) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// ==================== DynamoDB ====================

func (s *AWSStorage) putItem(ctx context.Context, pk, sk string, record interface{}, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	item := DynamoDBItem{
		PK:        pk,
		SK:        sk,
		Data:      string(data),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if ttl > 0 {
		item.TTL = time.Now().Add(ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}

	_, err = s.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

func (s *AWSStorage) getItem(ctx context.Context, pk, sk string, target interface{}) error {
	result, err := s.dynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return fmt.Errorf("getting item from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return ErrNotFound
	}

	var item DynamoDBItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return fmt.Errorf("unmarshaling item: %w", err)
	}
	if err := json.Unmarshal([]byte(item.Data), target); err != nil {
		return fmt.Errorf("unmarshaling record: %w", err)
	}
	return nil
}

func (s *AWSStorage) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := s.dynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting item from DynamoDB: %w", err)
	}
	return nil
}

// PutSession stores a session with the configured TTL. DynamoDB expires
// the item on its own once the TTL passes.
func (s *AWSStorage) PutSession(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	return s.putItem(ctx, pkSession, session.ID, session, ttl)
}

// GetSession loads a session by ID.
func (s *AWSStorage) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	if err := s.getItem(ctx, pkSession, id, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session by ID.
func (s *AWSStorage) DeleteSession(ctx context.Context, id string) error {
	return s.deleteItem(ctx, pkSession, id)
}

// PutTemplate stores a mapping template. Templates do not expire.
func (s *AWSStorage) PutTemplate(ctx context.Context, tpl *domain.MappingTemplate) error {
	return s.putItem(ctx, pkTemplate, tpl.ID, tpl, 0)
}

// GetTemplate loads a template by ID.
func (s *AWSStorage) GetTemplate(ctx context.Context, id string) (*domain.MappingTemplate, error) {
	var tpl domain.MappingTemplate
	if err := s.getItem(ctx, pkTemplate, id, &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ListTemplates queries the template partition and returns every record.
func (s *AWSStorage) ListTemplates(ctx context.Context) ([]*domain.MappingTemplate, error) {
	var templates []*domain.MappingTemplate
	var startKey map[string]types.AttributeValue

	for {
		result, err := s.dynamoDB.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pkTemplate},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("querying DynamoDB: %w", err)
		}

		for _, raw := range result.Items {
			var item DynamoDBItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				continue
			}
			var tpl domain.MappingTemplate
			if err := json.Unmarshal([]byte(item.Data), &tpl); err != nil {
				continue
			}
			templates = append(templates, &tpl)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	return templates, nil
}

// DeleteTemplate removes a template by ID.
func (s *AWSStorage) DeleteTemplate(ctx context.Context, id string) error {
	return s.deleteItem(ctx, pkTemplate, id)
}
