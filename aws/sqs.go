package aws

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/imishinist/go-streamflow"
	"github.com/imishinist/go-streamflow/flow"
	ssync "github.com/imishinist/go-streamflow/sync"
)

var (
	receivedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamflow_sqs_received_total",
		Help: "The number of messages received from queue",
	}, []string{"queue"})

	deletedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamflow_sqs_deleted_total",
		Help: "The number of messages deleted from queue",
	}, []string{"queue"})
)

// Client is the part of the SQS API used by this package. *sqs.Client
// satisfies it.
type Client interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// QueueMessage is a received message. ReceiptHandle is nil when the body
// could not be decoded, so that the message is left on the queue.
type QueueMessage[T any] struct {
	MessageID     string
	ReceiptHandle *string
	Body          *T
}

type SQSSourceConfig[T any] struct {
	QueueURL string

	MaxNumberOfMessages int
	WaitTimeSeconds     int

	Parallelism uint

	BodyHandler func(*string) (*T, error)
	Logger      *zerolog.Logger
}

func (c *SQSSourceConfig[T]) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}

// SQSSource polls a queue and emits QueueMessage[T] values until its context
// is done or a receive call fails.
type SQSSource[T any] struct {
	client   Client
	mu       sync.Mutex
	config   *SQSSourceConfig[T]
	reloaded chan struct{}
	logger   zerolog.Logger

	out     chan any
	errs    chan error
	stopped chan struct{}
}

var _ streamflow.Source = (*SQSSource[string])(nil)

func NewSQSSource[T any](ctx context.Context, client Client, config *SQSSourceConfig[T]) *SQSSource[T] {
	sqsSource := &SQSSource[T]{
		client:   client,
		config:   config,
		reloaded: make(chan struct{}),
		logger:   config.logger().With().Str("component", "sqs_source").Str("queue", config.QueueURL).Logger(),
		out:      make(chan any),
		errs:     make(chan error, 1),
		stopped:  make(chan struct{}),
	}
	go sqsSource.receive(ctx)
	return sqsSource
}

func (s *SQSSource[T]) currentConfig() *SQSSourceConfig[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *SQSSource[T]) receive(ctx context.Context) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(s.stopped)
		close(s.out)
		close(s.errs)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failOnce sync.Once
	fail := func(err error) {
		failOnce.Do(func() {
			s.logger.Error().Err(err).Msg("receive failed, stopping")
			s.errs <- err
		})
		cancel()
	}

	sem := ssync.NewDynamicSemaphore(s.currentConfig().Parallelism)
	go func() {
		for {
			select {
			case <-s.reloaded:
				sem.Set(s.currentConfig().Parallelism)
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if err := sem.AcquireContext(ctx); err != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer sem.Release()
			defer wg.Done()

			config := s.currentConfig()
			result, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &config.QueueURL,
				MaxNumberOfMessages: int32(config.MaxNumberOfMessages),
				WaitTimeSeconds:     int32(config.WaitTimeSeconds),
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fail(err)
				return
			}
			receivedCounter.WithLabelValues(config.QueueURL).Add(float64(len(result.Messages)))

			for _, message := range result.Messages {
				var receiptHandle *string
				body, err := config.BodyHandler(message.Body)
				if err == nil {
					receiptHandle = message.ReceiptHandle
				} else {
					s.logger.Warn().Err(err).Msg("cannot decode message body, leaving it on the queue")
				}
				m := QueueMessage[T]{
					ReceiptHandle: receiptHandle,
					Body:          body,
				}
				if message.MessageId != nil {
					m.MessageID = *message.MessageId
				}
				select {
				case s.out <- m:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

func (s *SQSSource[T]) Out() <-chan any {
	return s.out
}

// Errors yields the receive error that stopped the source, if any. It is
// closed together with Out.
func (s *SQSSource[T]) Errors() <-chan error {
	return s.errs
}

func (s *SQSSource[T]) Via(operator streamflow.Flow) streamflow.Flow {
	flow.DoStream(s, operator)
	return operator
}

func (s *SQSSource[T]) ReloadConfig(config *SQSSourceConfig[T]) {
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	go func() {
		select {
		case s.reloaded <- struct{}{}:
		case <-s.stopped:
		}
	}()
}

// SQSDeleteSink acknowledges processed messages by deleting them from the
// queue. Messages without a receipt handle are skipped.
type SQSDeleteSink[T any] struct {
	client   Client
	queueURL string
	logger   zerolog.Logger

	in   chan any
	errs chan error
	done chan struct{}
}

var _ streamflow.Sink = (*SQSDeleteSink[string])(nil)

func NewSQSDeleteSink[T any](ctx context.Context, client Client, queueURL string, logger zerolog.Logger) *SQSDeleteSink[T] {
	sink := &SQSDeleteSink[T]{
		client:   client,
		queueURL: queueURL,
		logger:   logger.With().Str("component", "sqs_delete_sink").Str("queue", queueURL).Logger(),
		in:       make(chan any),
		errs:     make(chan error, 16),
		done:     make(chan struct{}),
	}
	go sink.consume(ctx)
	return sink
}

func (s *SQSDeleteSink[T]) consume(ctx context.Context) {
	defer func() {
		close(s.errs)
		close(s.done)
	}()

	for elem := range s.in {
		var m QueueMessage[T]
		switch v := elem.(type) {
		case QueueMessage[T]:
			m = v
		case *QueueMessage[T]:
			m = *v
		default:
			s.logger.Warn().Type("element", elem).Msg("unexpected element, skipped")
			continue
		}
		if m.ReceiptHandle == nil {
			continue
		}

		_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &s.queueURL,
			ReceiptHandle: m.ReceiptHandle,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("message_id", m.MessageID).Msg("delete failed")
			select {
			case s.errs <- err:
			default:
			}
			continue
		}
		deletedCounter.WithLabelValues(s.queueURL).Inc()
	}
}

func (s *SQSDeleteSink[T]) In() chan<- any {
	return s.in
}

// Errors yields delete failures. Failures beyond its buffer are only logged.
func (s *SQSDeleteSink[T]) Errors() <-chan error {
	return s.errs
}

// Done is closed once the input is closed and every delete has returned.
func (s *SQSDeleteSink[T]) Done() <-chan struct{} {
	return s.done
}
