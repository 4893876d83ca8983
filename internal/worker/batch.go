package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis

	redisBackoff   = 3 * time.Second
	requeueBackoff = 2 * time.Second
	shutdownFlush  = 5 * time.Second
)

// Queue is the Redis list side of a worker.
type Queue interface {
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	Requeue(ctx context.Context, queue string, items [][]byte) error
}

// batchLoop drains one queue into batches of T and hands each batch to
// flush, which returns the items that could not be stored. Those go back
// to the queue.
type batchLoop[T any] struct {
	queue   Queue
	key     string
	flush   func(ctx context.Context, batch []T) []T
	log     zerolog.Logger
	size    int
	timeout time.Duration
	poll    time.Duration
	sleep   func(ctx context.Context, d time.Duration)
}

func newBatchLoop[T any](queue Queue, key string, flush func(context.Context, []T) []T, log zerolog.Logger) *batchLoop[T] {
	return &batchLoop[T]{
		queue:   queue,
		key:     key,
		flush:   flush,
		log:     log,
		size:    BatchSize,
		timeout: BatchTimeout,
		poll:    PollTimeout,
		sleep:   sleepCtx,
	}
}

func (b *batchLoop[T]) run(ctx context.Context) {
	buffer := make([]T, 0, b.size)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= b.size || time.Since(lastFlush) >= b.timeout) {
			b.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			b.shutdown(buffer)
			return
		default:
		}

		raw, err := b.queue.Pop(ctx, b.key, b.poll)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			b.log.Error().Err(err).Msg("Redis connection error, backing off")
			b.sleep(ctx, redisBackoff)
			continue
		}

		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			// Malformed payloads can never succeed; drop them.
			b.log.Error().Err(err).Str("data", string(raw)).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (b *batchLoop[T]) flushSafe(ctx context.Context, batch []T) {
	failed := b.flush(ctx, batch)
	if len(failed) == 0 {
		return
	}

	items := make([][]byte, 0, len(failed))
	for _, f := range failed {
		data, err := json.Marshal(f)
		if err != nil {
			continue
		}
		items = append(items, data)
	}

	// Requeue must survive a cancelled worker context during shutdown.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlush)
	defer cancel()
	if err := b.queue.Requeue(rctx, b.key, items); err != nil {
		b.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	b.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing while the database is down.
	b.sleep(ctx, requeueBackoff)
}

func (b *batchLoop[T]) shutdown(buffer []T) {
	b.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")
	if len(buffer) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlush)
	defer cancel()
	b.flushSafe(ctx, buffer)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
