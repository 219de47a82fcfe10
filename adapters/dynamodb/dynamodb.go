// Package dynamodb provides the DynamoDB ride store used in production.
package dynamodb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names on the wire.
const (
	attrIMEI         = "imei"
	attrRideStart    = "ride_start"
	attrRideType     = "ride_type"
	attrRideStats    = "ride_stats"
	attrRideDistance = "ride_distance"
	attrDate         = "date"
	attrMaxRange     = "max_range"
)

// API is the subset of the DynamoDB client used by the store.
type API interface {
	dynamodb.QueryAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Tables names the tables the store reads and writes.
type Tables struct {
	Rides   string
	Monthly string
	Yearly  string
}

// Options configures the client built by New.
type Options struct {
	Region   string
	Endpoint string // optional, for DynamoDB Local
	Tables   Tables
}

// RideStore implements ports.RideStore and ports.YearlyRangeWriter on DynamoDB.
type RideStore struct {
	client API
	tables Tables
}

// New loads the default AWS configuration for the region and creates a store.
func New(ctx context.Context, opts Options) (*RideStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewWithClient(client, opts.Tables), nil
}

// NewWithClient creates a store over an existing client.
func NewWithClient(client API, tables Tables) *RideStore {
	return &RideStore{client: client, tables: tables}
}

// FetchRides queries every item for the device, following pagination.
// DynamoDB returns items in sort key (ride_start) order.
func (s *RideStore) FetchRides(ctx context.Context, deviceID string) ([]ranges.Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Rides),
		KeyConditionExpression: aws.String("#imei = :imei"),
		ExpressionAttributeNames: map[string]string{
			"#imei": attrIMEI,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":imei": &types.AttributeValueMemberS{Value: deviceID},
		},
		ProjectionExpression: aws.String("ride_start, ride_stats, ride_type"),
	}

	var recs []ranges.Record
	p := dynamodb.NewQueryPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.tables.Rides, err)
		}
		for _, item := range page.Items {
			recs = append(recs, recordFromItem(item))
		}
	}
	return recs, nil
}

// recordFromItem projects an item. Missing, mistyped or unparsable
// attributes are left nil so that decoding reports the record as malformed.
func recordFromItem(item map[string]types.AttributeValue) ranges.Record {
	var rec ranges.Record

	if v, ok := item[attrRideType].(*types.AttributeValueMemberS); ok {
		s := v.Value
		rec.RideType = &s
	}

	if v, ok := item[attrRideStart].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			rec.RideStart = &n
		}
	}

	if stats, ok := item[attrRideStats].(*types.AttributeValueMemberM); ok {
		if v, ok := stats.Value[attrRideDistance].(*types.AttributeValueMemberS); ok {
			s := v.Value
			rec.RideDistance = &s
		}
	}

	return rec
}

// WriteMonthly puts {imei, date, max_range}, replacing any existing item.
func (s *RideStore) WriteMonthly(ctx context.Context, agg ranges.MonthlyAggregate) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Monthly),
		Item: map[string]types.AttributeValue{
			attrIMEI:     &types.AttributeValueMemberS{Value: agg.DeviceID},
			attrDate:     &types.AttributeValueMemberS{Value: agg.Month.String()},
			attrMaxRange: &types.AttributeValueMemberN{Value: FormatNumber(agg.MaxDistance)},
		},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", s.tables.Monthly, err)
	}
	return nil
}

// WriteYearly puts {imei, max_range}, replacing any existing item.
func (s *RideStore) WriteYearly(ctx context.Context, agg ranges.YearlyAggregate) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Yearly),
		Item: map[string]types.AttributeValue{
			attrIMEI:     &types.AttributeValueMemberS{Value: agg.DeviceID},
			attrMaxRange: &types.AttributeValueMemberN{Value: FormatNumber(agg.MaxDistance)},
		},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", s.tables.Yearly, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connections that need release.
func (s *RideStore) Close() error {
	return nil
}

// FormatNumber renders a float in the shortest form that round-trips.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Ensure interface compliance.
var (
	_ ports.RideStore         = (*RideStore)(nil)
	_ ports.YearlyRangeWriter = (*RideStore)(nil)
)
