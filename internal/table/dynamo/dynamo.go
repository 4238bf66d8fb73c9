// Package dynamo implements table.Table on Amazon DynamoDB, the production
// store. The table uses pk/sk as its primary key and two global secondary
// indexes that share published_at as their range key.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"inkpress/internal/table"
)

// Attribute names as stored in DynamoDB.
const (
	attrPK       = "pk"
	attrSK       = "sk"
	attrStatus   = "status"
	attrCategory = "category"
	attrOrder    = "published_at"
	attrVersion  = "version"
)

// record is the DynamoDB item shape. Index key attributes are omitted when
// empty, which keeps the item out of that sparse index.
type record struct {
	PK       string `dynamodbav:"pk"`
	SK       string `dynamodbav:"sk"`
	Status   string `dynamodbav:"status,omitempty"`
	Category string `dynamodbav:"category,omitempty"`
	OrderKey string `dynamodbav:"published_at,omitempty"`
	Version  int64  `dynamodbav:"version"`
	Data     []byte `dynamodbav:"data"`
}

// Options configures the DynamoDB client.
type Options struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. DynamoDB Local.
	Endpoint string
	// AccessKey and SecretKey force static credentials. When Endpoint is set
	// and no key is given, dummy credentials are used.
	AccessKey string
	SecretKey string
}

// Connect builds a DynamoDB client from the default AWS credential chain,
// adjusted by opts.
func Connect(ctx context.Context, opts Options) (*dynamodb.Client, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}

	accessKey, secretKey := opts.AccessKey, opts.SecretKey
	if opts.Endpoint != "" && accessKey == "" {
		accessKey, secretKey = "local", "local"
	}
	if accessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	slog.Info("dynamodb client configured", "region", opts.Region, "endpoint", opts.Endpoint)
	return client, nil
}

// Table is a DynamoDB-backed table.Table.
type Table struct {
	client *dynamodb.Client
	name   string
}

// New returns a Table that reads and writes the named DynamoDB table.
func New(client *dynamodb.Client, name string) *Table {
	return &Table{client: client, name: name}
}

// EnsureTable creates the table and its indexes if it does not exist yet
// and waits until it is active. Intended for local development.
func (t *Table) EnsureTable(ctx context.Context) error {
	_, err := t.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", t.name, err)
	}

	str := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	keys := func(hash, rng string) []types.KeySchemaElement {
		return []types.KeySchemaElement{
			{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(rng), KeyType: types.KeyTypeRange},
		}
	}
	all := &types.Projection{ProjectionType: types.ProjectionTypeAll}

	_, err = t.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(t.name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			str(attrPK), str(attrSK), str(attrStatus), str(attrCategory), str(attrOrder),
		},
		KeySchema: keys(attrPK, attrSK),
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{IndexName: aws.String(table.IndexStatus), KeySchema: keys(attrStatus, attrOrder), Projection: all},
			{IndexName: aws.String(table.IndexCategory), KeySchema: keys(attrCategory, attrOrder), Projection: all},
		},
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(t.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", t.name, err)
	}
	slog.Info("dynamodb table created", "table", t.name)
	return nil
}

// DropTable deletes the table. Used by integration tests.
func (t *Table) DropTable(ctx context.Context) error {
	_, err := t.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(t.name)})
	if err != nil {
		return fmt.Errorf("delete table %s: %w", t.name, err)
	}
	return nil
}

func primaryKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// conditionExpr translates a table.Condition into a DynamoDB condition
// expression. A nil expression means the write is unconditional.
func conditionExpr(cond table.Condition) (*string, map[string]string, map[string]types.AttributeValue) {
	switch cond.Kind() {
	case table.CondAbsent:
		return aws.String("attribute_not_exists(#pk)"), map[string]string{"#pk": attrPK}, nil
	case table.CondExists:
		return aws.String("attribute_exists(#pk)"), map[string]string{"#pk": attrPK}, nil
	case table.CondVersion:
		return aws.String("#v = :v"),
			map[string]string{"#v": attrVersion},
			map[string]types.AttributeValue{":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(cond.Version(), 10)}}
	default:
		return nil, nil, nil
	}
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func toItem(r record) table.Item {
	return table.Item{
		PK: r.PK, SK: r.SK,
		Status: r.Status, Category: r.Category, OrderKey: r.OrderKey,
		Version: r.Version, Data: r.Data,
	}
}

func (t *Table) Get(ctx context.Context, pk, sk string) (*table.Item, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            primaryKey(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get %s/%s: %w", pk, sk, err)
	}
	if len(out.Item) == 0 {
		return nil, table.ErrNotFound
	}
	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal item %s/%s: %w", pk, sk, err)
	}
	it := toItem(r)
	return &it, nil
}

func (t *Table) Put(ctx context.Context, item table.Item, cond table.Condition) error {
	av, err := attributevalue.MarshalMap(record{
		PK: item.PK, SK: item.SK,
		Status: item.Status, Category: item.Category, OrderKey: item.OrderKey,
		Version: item.Version, Data: item.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal item %s/%s: %w", item.PK, item.SK, err)
	}

	expr, names, values := conditionExpr(cond)
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(t.name),
		Item:                      av,
		ConditionExpression:       expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if isConditionFailure(err) {
		return table.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("dynamodb put %s/%s: %w", item.PK, item.SK, err)
	}
	return nil
}

func (t *Table) Delete(ctx context.Context, pk, sk string, cond table.Condition) error {
	expr, names, values := conditionExpr(cond)
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(t.name),
		Key:                       primaryKey(pk, sk),
		ConditionExpression:       expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if isConditionFailure(err) {
		return table.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("dynamodb delete %s/%s: %w", pk, sk, err)
	}
	return nil
}

func (t *Table) Query(ctx context.Context, q table.Query) ([]table.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	hashAttr := attrStatus
	if q.Index == table.IndexCategory {
		hashAttr = attrCategory
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(t.name),
		IndexName:                 aws.String(q.Index),
		KeyConditionExpression:    aws.String("#h = :h"),
		ExpressionAttributeNames:  map[string]string{"#h": hashAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":h": &types.AttributeValueMemberS{Value: q.Key}},
		ScanIndexForward:          aws.Bool(q.Ascending),
	}
	if q.Status != "" {
		// DynamoDB applies Limit before the filter, so the page size is left
		// unset and pages are drained until enough items pass.
		in.FilterExpression = aws.String("#s = :s")
		in.ExpressionAttributeNames["#s"] = attrStatus
		in.ExpressionAttributeValues[":s"] = &types.AttributeValueMemberS{Value: q.Status}
	} else if q.Limit > 0 {
		in.Limit = aws.Int32(int32(q.Limit))
	}

	var out []table.Item
	paginator := dynamodb.NewQueryPaginator(t.client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb query %s: %w", q.Index, err)
		}
		var recs []record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal query page: %w", err)
		}
		for _, r := range recs {
			out = append(out, toItem(r))
			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (t *Table) Scan(ctx context.Context, pkPrefix string) ([]table.Item, error) {
	in := &dynamodb.ScanInput{
		TableName:                 aws.String(t.name),
		FilterExpression:          aws.String("begins_with(#pk, :p)"),
		ExpressionAttributeNames:  map[string]string{"#pk": attrPK},
		ExpressionAttributeValues: map[string]types.AttributeValue{":p": &types.AttributeValueMemberS{Value: pkPrefix}},
		ConsistentRead:            aws.Bool(true),
	}

	var out []table.Item
	paginator := dynamodb.NewScanPaginator(t.client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan %s: %w", pkPrefix, err)
		}
		var recs []record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal scan page: %w", err)
		}
		for _, r := range recs {
			out = append(out, toItem(r))
		}
	}
	return out, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (t *Table) Close() error { return nil }
