// Package dynamodb stores analysis records in a DynamoDB table keyed by image_id.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
)

const keyAttr = "image_id"

// layouts accepted when reading upload_time; items written without a zone are UTC.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type object struct {
	Name       string  `dynamodbav:"name"`
	Confidence float64 `dynamodbav:"confidence"`
}

type moderation struct {
	IsSafe bool     `dynamodbav:"is_safe"`
	Flags  []string `dynamodbav:"flags"`
}

type item struct {
	ImageID           string     `dynamodbav:"image_id"`
	Filename          string     `dynamodbav:"filename"`
	BucketName        string     `dynamodbav:"bucket_name,omitempty"`
	UploadTime        string     `dynamodbav:"upload_time"`
	ProcessingStatus  string     `dynamodbav:"processing_status"`
	ObjectsDetected   []object   `dynamodbav:"objects_detected"`
	ContentModeration moderation `dynamodbav:"content_moderation"`
}

type ImageRepository struct {
	api   API
	table string
}

func NewImageRepository(api API, table string) *ImageRepository {
	return &ImageRepository{api: api, table: table}
}

// NewFromConfig builds the repository on an SDK client. endpoint overrides the
// service URL for local DynamoDB.
func NewFromConfig(cfg aws.Config, table, endpoint string) *ImageRepository {
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewImageRepository(client, table)
}

// Insert writes the record under the condition that image_id is unused.
func (r *ImageRepository) Insert(ctx context.Context, rec *images.AnalysisRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.Normalize()

	av, err := attributevalue.MarshalMap(toItem(rec))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(keyAttr))).
		Build()
	if err != nil {
		return err
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.table),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return images.ErrAlreadyExists
		}
		return fmt.Errorf("put item %s: %w", rec.ImageID, err)
	}
	return nil
}

func (r *ImageRepository) Get(ctx context.Context, id images.ImageID) (*images.AnalysisRecord, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       key(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, images.ErrNotFound
	}
	return decode(out.Item)
}

// List scans in table order. Scan pages are accumulated until f.Limit records
// pass the status filter or the table is exhausted.
func (r *ImageRepository) List(ctx context.Context, f images.ListFilter) (images.Page, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(r.table)}
	if f.Status != "" {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name("processing_status").Equal(expression.Value(string(f.Status)))).
			Build()
		if err != nil {
			return images.Page{}, err
		}
		in.FilterExpression = expr.Filter()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}
	if f.StartAfter != "" {
		in.ExclusiveStartKey = key(f.StartAfter)
	}

	page := images.Page{Records: []*images.AnalysisRecord{}}
	for {
		if f.Limit > 0 {
			in.Limit = aws.Int32(int32(f.Limit - len(page.Records)))
		}
		out, err := r.api.Scan(ctx, in)
		if err != nil {
			return images.Page{}, fmt.Errorf("scan %s: %w", r.table, err)
		}
		for _, av := range out.Items {
			rec, err := decode(av)
			if err != nil {
				return images.Page{}, err
			}
			page.Records = append(page.Records, rec)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return page, nil
		}
		if f.Limit > 0 && len(page.Records) >= f.Limit {
			page.NextKey = page.Records[len(page.Records)-1].ImageID
			return page, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Check confirms the table exists.
func (r *ImageRepository) Check(ctx context.Context) error {
	_, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	return err
}

func key(id images.ImageID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{keyAttr: &types.AttributeValueMemberS{Value: string(id)}}
}

func toItem(rec *images.AnalysisRecord) item {
	it := item{
		ImageID:          string(rec.ImageID),
		Filename:         rec.Filename,
		BucketName:       rec.BucketName,
		UploadTime:       rec.UploadTime.UTC().Format(time.RFC3339Nano),
		ProcessingStatus: string(rec.ProcessingStatus),
		ObjectsDetected:  make([]object, 0, len(rec.ObjectsDetected)),
		ContentModeration: moderation{
			IsSafe: rec.ContentModeration.IsSafe,
			Flags:  rec.ContentModeration.Flags,
		},
	}
	for _, o := range rec.ObjectsDetected {
		it.ObjectsDetected = append(it.ObjectsDetected, object{Name: o.Name, Confidence: o.Confidence})
	}
	return it
}

func decode(av map[string]types.AttributeValue) (*images.AnalysisRecord, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("%w: %v", images.ErrInvalidRecord, err)
	}

	rec := &images.AnalysisRecord{
		ImageID:          images.ImageID(it.ImageID),
		Filename:         it.Filename,
		BucketName:       it.BucketName,
		ProcessingStatus: images.Status(it.ProcessingStatus),
		ContentModeration: images.ContentModeration{
			IsSafe: it.ContentModeration.IsSafe,
			Flags:  it.ContentModeration.Flags,
		},
	}
	if it.UploadTime != "" {
		t, err := parseTime(it.UploadTime)
		if err != nil {
			return nil, fmt.Errorf("%w: upload_time %q", images.ErrInvalidRecord, it.UploadTime)
		}
		rec.UploadTime = t
	}
	for _, o := range it.ObjectsDetected {
		rec.ObjectsDetected = append(rec.ObjectsDetected, images.DetectedObject{Name: o.Name, Confidence: o.Confidence})
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	rec.Normalize()
	return rec, nil
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
