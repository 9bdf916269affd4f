package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ submission.Store = (*Store)(nil)
	_ deletion.Store   = (*Store)(nil)
	_ API              = (*dynamodb.Client)(nil)
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Default table names.
const (
	DefaultItemsTable    = "timesheet_submission_items"
	DefaultRequestsTable = "timesheet_deletion_requests"
)

// Store is a DynamoDB implementation of store.Store.
type Store struct {
	db            API
	itemsTable    string
	requestsTable string
	logger        *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTables overrides the table names.
func WithTables(items, requests string) Option {
	return func(s *Store) {
		s.itemsTable = items
		s.requestsTable = requests
	}
}

// New creates a store on an existing client.
func New(db API, opts ...Option) *Store {
	s := &Store{
		db:            db,
		itemsTable:    DefaultItemsTable,
		requestsTable: DefaultRequestsTable,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a DynamoDB client from cfg. A non-empty endpoint
// points the client at DynamoDB Local or LocalStack.
func NewFromConfig(cfg aws.Config, endpoint string, opts ...Option) *Store {
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, opts...)
}

// Migrate creates both tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, table := range []string{s.itemsTable, s.requestsTable} {
		_, err := s.db.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(table),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		if err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return fmt.Errorf("timesheet/dynamo: create table %s: %w", table, err)
		}
		s.logger.Info("created table", slog.String("table", table))
	}
	return nil
}

// Ping describes the items table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.itemsTable),
	})
	if err != nil {
		return fmt.Errorf("timesheet/dynamo: ping: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connections that need closing.
func (s *Store) Close() error { return nil }

// ── helpers ──────────────────────────────────────────────────────

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func numberAV(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func stringAV(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

// isConditionFailed reports whether a single-item write lost its
// condition.
func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}

// cancelledAt reports whether a transaction was cancelled because the
// condition on the action at index i failed.
func cancelledAt(err error, i int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || i >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[i].Code) == "ConditionalCheckFailed"
}

// scanAll runs a paginated Scan and returns every matching row.
func (s *Store) scanAll(ctx context.Context, in *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var rows []map[string]types.AttributeValue
	p := dynamodb.NewScanPaginator(s.db, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Items...)
	}
	return rows, nil
}

// countAll runs a paginated COUNT Scan.
func (s *Store) countAll(ctx context.Context, in *dynamodb.ScanInput) (int64, error) {
	in.Select = types.SelectCount
	var n int64
	p := dynamodb.NewScanPaginator(s.db, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		n += int64(page.Count)
	}
	return n, nil
}

// filter accumulates a FilterExpression with its names and values.
type filter struct {
	clauses []string
	names   map[string]string
	values  map[string]types.AttributeValue
}

func newFilter() *filter {
	return &filter{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}
}

func (f *filter) add(clause string) *filter {
	f.clauses = append(f.clauses, clause)
	return f
}

func (f *filter) name(placeholder, attr string) *filter {
	f.names[placeholder] = attr
	return f
}

func (f *filter) value(placeholder string, v types.AttributeValue) *filter {
	f.values[placeholder] = v
	return f
}

// apply sets the filter on in.
func (f *filter) apply(in *dynamodb.ScanInput) *dynamodb.ScanInput {
	if len(f.clauses) == 0 {
		return in
	}
	expr := f.clauses[0]
	for _, c := range f.clauses[1:] {
		expr += " AND " + c
	}
	in.FilterExpression = aws.String(expr)
	if len(f.names) > 0 {
		in.ExpressionAttributeNames = f.names
	}
	if len(f.values) > 0 {
		in.ExpressionAttributeValues = f.values
	}
	return in
}
