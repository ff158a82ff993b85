package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
)

// Replies for errors classified as internal carry a fixed message; the
// details stay in the log.
const (
	internalErrorCode    = "internal_error"
	internalErrorMessage = "internal server error"
)

// HandlerFunc answers one request. The returned value is JSON-encoded into
// the reply.
type HandlerFunc func(ctx context.Context, payload []byte) (any, error)

// ServerOptions configures a RequestServer.
type ServerOptions struct {
	Group         string
	Consumer      string
	BatchSize     int64
	BlockDuration time.Duration
	ReplyTTL      time.Duration
	// ClaimIdle is how long a message may stay unacked before another
	// consumer takes it over. Zero disables reclaiming.
	ClaimIdle time.Duration
	// ErrorCode maps handler errors to the reply's code field.
	ErrorCode func(error) string
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// RequestServer serves request/response topics over Redis Streams. A
// request carries payload, reply_to and correlation_id fields; the reply is
// appended to the reply_to stream with the same correlation_id and either a
// payload or an error and code. Requests are acked once the reply is written.
type RequestServer struct {
	client   *redis.Client
	writer   streamWriter
	opts     ServerOptions
	handlers map[string]HandlerFunc
}

func NewRequestServer(client *redis.Client, opts ServerOptions) *RequestServer {
	return newRequestServer(client, client, opts)
}

func newRequestServer(client *redis.Client, writer streamWriter, opts ServerOptions) *RequestServer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BlockDuration <= 0 {
		opts.BlockDuration = 5 * time.Second
	}
	if opts.ErrorCode == nil {
		opts.ErrorCode = func(error) string { return internalErrorCode }
	}
	return &RequestServer{
		client:   client,
		writer:   writer,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers h for topic. It must be called before Run.
func (s *RequestServer) Handle(topic string, h HandlerFunc) {
	s.handlers[topic] = h
}

// Run consumes every registered topic until ctx is cancelled.
func (s *RequestServer) Run(ctx context.Context) error {
	if len(s.handlers) == 0 {
		return fmt.Errorf("%w: no topics registered", domainErrors.ErrUnknownHandler)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for topic := range s.handlers {
		consumer := NewStreamConsumer(s.client, topic, s.opts.Group, s.opts.Consumer, s.opts.BatchSize, s.opts.BlockDuration)
		if err := consumer.CreateGroup(ctx); err != nil {
			return err
		}
		s.opts.Logger.Info().
			Str("stream", topic).
			Str("group", s.opts.Group).
			Str("consumer", s.opts.Consumer).
			Msg("serving requests")

		g.Go(func() error {
			return s.serve(gCtx, consumer)
		})
	}
	return g.Wait()
}

func (s *RequestServer) serve(ctx context.Context, consumer *StreamConsumer) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.opts.Logger.Error().Err(err).Str("stream", consumer.Stream()).Msg("read failed")
			sleep(ctx, time.Second)
			continue
		}

		if len(msgs) == 0 && s.opts.ClaimIdle > 0 {
			msgs, err = consumer.ClaimStale(ctx, s.opts.ClaimIdle)
			if err != nil {
				s.opts.Logger.Warn().Err(err).Str("stream", consumer.Stream()).Msg("claim failed")
			}
		}

		for _, msg := range msgs {
			if err := s.process(ctx, consumer.Stream(), msg); err != nil {
				s.opts.Logger.Error().Err(err).Str("stream", consumer.Stream()).Str("message_id", msg.ID).Msg("reply not written, leaving message pending")
				continue
			}
			if err := consumer.Ack(ctx, msg.ID); err != nil {
				s.opts.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
			}
		}
	}
}

// process runs the handler for one message and writes the reply. An error
// means the reply could not be written.
func (s *RequestServer) process(ctx context.Context, topic string, msg redis.XMessage) error {
	start := time.Now()
	reply, status := s.reply(ctx, topic, msg.Values)
	s.observe(topic, status, start)

	replyTo, _ := msg.Values[FieldReplyTo].(string)
	if replyTo == "" {
		s.opts.Logger.Warn().Str("stream", topic).Str("message_id", msg.ID).Msg("request without reply_to, reply dropped")
		return nil
	}

	if err := s.writer.XAdd(ctx, &redis.XAddArgs{Stream: replyTo, Values: reply}).Err(); err != nil {
		return fmt.Errorf("write reply to %s: %w", replyTo, err)
	}
	if s.opts.ReplyTTL > 0 {
		if err := s.writer.Expire(ctx, replyTo, s.opts.ReplyTTL).Err(); err != nil {
			s.opts.Logger.Warn().Err(err).Str("reply_to", replyTo).Msg("set reply ttl failed")
		}
	}
	return nil
}

// reply builds the reply fields for a request and reports success or failure.
func (s *RequestServer) reply(ctx context.Context, topic string, values map[string]any) (map[string]any, string) {
	correlationID, _ := values[FieldCorrelationID].(string)
	reply := map[string]any{
		FieldCorrelationID: correlationID,
		FieldTimestamp:     time.Now().Unix(),
	}

	fail := func(err error) (map[string]any, string) {
		code := s.opts.ErrorCode(err)
		reply[FieldError] = err.Error()
		reply[FieldCode] = code
		if code == internalErrorCode {
			s.opts.Logger.Error().Err(err).Str("stream", topic).Str("correlation_id", correlationID).Msg("request failed")
			reply[FieldError] = internalErrorMessage
		}
		return reply, "failed"
	}

	handler, ok := s.handlers[topic]
	if !ok {
		return fail(fmt.Errorf("%w: %s", domainErrors.ErrUnknownHandler, topic))
	}

	payload, _ := values[FieldPayload].(string)
	if payload == "" {
		return fail(domainErrors.NewValidationError(FieldPayload, "missing"))
	}

	result, err := handler(ctx, []byte(payload))
	if err != nil {
		return fail(err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fail(fmt.Errorf("encode reply: %w", err))
	}
	reply[FieldPayload] = string(data)
	return reply, "success"
}

func (s *RequestServer) observe(topic, status string, start time.Time) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.WorkerMessagesProcessed.WithLabelValues(topic, status).Inc()
	s.opts.Metrics.WorkerProcessingDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
