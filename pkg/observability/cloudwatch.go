package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// PutMetricData accepts at most this many datums per call
const maxDatumsPerPut = 1000

// CloudWatchAPI is the subset of the CloudWatch client the sink needs
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchSink buffers business metrics and ships them in one go.
// In Lambda mode Flush runs after every invocation.
type CloudWatchSink struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger

	mu     sync.Mutex
	buffer []types.MetricDatum
	now    func() time.Time
}

// NewCloudWatchSink creates a sink. A nil client turns every call into a no-op.
func NewCloudWatchSink(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchSink {
	return &CloudWatchSink{
		namespace: namespace,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordCommand buffers the duration and count of one command execution
func (s *CloudWatchSink) RecordCommand(commandName string, duration time.Duration, err error) {
	dims := []types.Dimension{
		{Name: aws.String("CommandName"), Value: aws.String(commandName)},
		{Name: aws.String("Status"), Value: aws.String(statusLabel(err))},
	}
	s.add("CommandExecution", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims)
	s.add("CommandCount", 1, types.StandardUnitCount, dims)
}

// EventPublished buffers one published domain event
func (s *CloudWatchSink) EventPublished(eventType string) {
	s.add("DomainEvents", 1, types.StandardUnitCount, []types.Dimension{
		{Name: aws.String("EventType"), Value: aws.String(eventType)},
	})
}

func (s *CloudWatchSink) add(name string, value float64, unit types.StandardUnit, dims []types.Dimension) {
	if s == nil || s.client == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(s.now()),
	})
}

// Pending returns the number of buffered datums
func (s *CloudWatchSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Flush sends the buffered datums. Failures are logged, not returned, so
// metrics never fail a request.
func (s *CloudWatchSink) Flush(ctx context.Context) {
	if s == nil || s.client == nil {
		return
	}

	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	for start := 0; start < len(batch); start += maxDatumsPerPut {
		end := start + maxDatumsPerPut
		if end > len(batch) {
			end = len(batch)
		}
		_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(s.namespace),
			MetricData: batch[start:end],
		})
		if err != nil {
			s.logger.Warn("Failed to send metrics", zap.Int("datums", end-start), zap.Error(err))
		}
	}
}
