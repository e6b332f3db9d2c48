package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/metrics"
	"github.com/baselume-ledger/internal/service"
)

// Message outcomes, used as a metrics label
const (
	OutcomeRecorded    = "recorded"
	OutcomeRejected    = "rejected"
	OutcomeDecodeError = "decode_error"
	OutcomeFailed      = "failed"
)

// ErrNotRecorded ends a claim whose message could not be recorded
var ErrNotRecorded = errors.New("kafka: submission not recorded")

// ScoreHandler processes score submissions
type ScoreHandler interface {
	SubmitScore(ctx context.Context, caller domain.Address, sub domain.ScoreSubmission, source string) (domain.ScoreEntry, error)
}

// Consumer consumes score messages from Kafka and records them as the
// configured submitter
type Consumer struct {
	config        *config.KafkaConfig
	handler       ScoreHandler
	submitter     domain.Address
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ScoreHandler, logger *slog.Logger) (*Consumer, error) {
	submitter, err := domain.ParseAddress(cfg.Submitter)
	if err != nil {
		return nil, err
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		submitter:     submitter,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
		"submitter", c.submitter,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// Process decodes one message and records it, retrying only failures that
// were not caused by the submission itself. It returns the message outcome.
func (c *Consumer) Process(ctx context.Context, value []byte) string {
	var submission domain.ScoreSubmission
	if err := json.Unmarshal(value, &submission); err != nil {
		c.logger.Warn("failed to unmarshal message", "error", err)
		return OutcomeDecodeError
	}

	attempts := c.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		_, err = c.handler.SubmitScore(ctx, c.submitter, submission, service.SourceKafka)
		if err == nil {
			return OutcomeRecorded
		}
		if metrics.Reason(err) != "internal" {
			c.logger.Info("score submission rejected",
				"player", submission.Player,
				"game_id", submission.GameID,
				"reason", metrics.Reason(err),
			)
			return OutcomeRejected
		}
		if i+1 < attempts {
			select {
			case <-ctx.Done():
				return OutcomeFailed
			case <-time.After(c.config.RetryDelay):
			}
		}
	}
	c.logger.Error("failed to record score",
		"player", submission.Player,
		"game_id", submission.GameID,
		"attempts", attempts,
		"error", err,
	)
	return OutcomeFailed
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition. A message is marked
// only after it is recorded or rejected for good. When one fails, it and the
// rest of the claim stay unmarked and the claim ends, so the next session
// redelivers them; the ledger rejects the already recorded ones as duplicates.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]*sarama.ConsumerMessage, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		defer func() { batch = batch[:0] }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		counts := make(map[string]int)
		for _, message := range batch {
			outcome := h.consumer.Process(ctx, message.Value)
			metrics.KafkaMessages.WithLabelValues(outcome).Inc()
			counts[outcome]++
			if outcome == OutcomeFailed {
				h.consumer.logger.Warn("leaving offset uncommitted for redelivery",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
				)
				return fmt.Errorf("%w: %s/%d at offset %d", ErrNotRecorded, message.Topic, message.Partition, message.Offset)
			}
			session.MarkMessage(message, "")
		}
		h.consumer.logger.Debug("processed batch",
			"batch_size", len(batch),
			"recorded", counts[OutcomeRecorded],
			"rejected", counts[OutcomeRejected],
			"undecodable", counts[OutcomeDecodeError],
		)
		return nil
	}

	for {
		select {
		case <-session.Context().Done():
			return processBatch()

		case <-batchTimer.C:
			if err := processBatch(); err != nil {
				return err
			}
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				return processBatch()
			}

			batch = append(batch, message)

			if len(batch) >= cfg.BatchSize {
				if err := processBatch(); err != nil {
					return err
				}
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
