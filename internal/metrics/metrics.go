// Package metrics records delivery outcomes. The CloudWatch implementation
// is optional at runtime; the default is a no-op.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"modrelay/internal/types"
)

// Metric and dimension names.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryLatency"

	DimDestination = "Destination"
	DimResult      = "Result"
)

// Result is the outcome dimension of a delivery attempt.
type Result string

const (
	ResultSuccess     Result = "success"
	ResultFailure     Result = "failure"
	ResultRateLimited Result = "rate_limited"
)

// DeliveryMetrics records webhook delivery outcomes per logical destination.
type DeliveryMetrics interface {
	RecordDelivery(ctx context.Context, destination string, result Result)
	RecordLatency(ctx context.Context, destination string, duration time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertions.
var (
	_ DeliveryMetrics = (*CloudWatchMetrics)(nil)
	_ DeliveryMetrics = (*NoopMetrics)(nil)
)

// CloudWatchMetrics publishes delivery metrics to a CloudWatch namespace.
// Publish failures are logged and swallowed; telemetry must never fail a
// delivery.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publisher.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count with Destination and Result
// dimensions.
func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, destination string, result Result) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricDeliveryAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimDestination),
						Value: aws.String(destination),
					},
					{
						Name:  aws.String(DimResult),
						Value: aws.String(string(result)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record delivery metric",
			"error", err.Error(),
			"destination", destination,
			"result", string(result),
		)
	}
}

// RecordLatency emits the delivery duration in milliseconds with the
// Destination dimension.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, destination string, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricDeliveryLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimDestination),
						Value: aws.String(destination),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record latency metric",
			"error", err.Error(),
			"destination", destination,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// NoopMetrics discards everything. Used when metrics are disabled.
type NoopMetrics struct{}

// NewNoopMetrics creates a NoopMetrics.
func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (*NoopMetrics) RecordDelivery(context.Context, string, Result)        {}
func (*NoopMetrics) RecordLatency(context.Context, string, time.Duration) {}

// ResultFor maps a delivery outcome to its metric dimension value.
func ResultFor(success, rateLimited bool) Result {
	switch {
	case success:
		return ResultSuccess
	case rateLimited:
		return ResultRateLimited
	default:
		return ResultFailure
	}
}
