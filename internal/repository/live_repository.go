package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/proctor-backend/internal/config"
)

// releaseScript deletes the participant lock only if it still belongs to the session.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LiveRepository keeps the Redis side of running sessions: participant
// locks, state snapshots, the monitor channel and the persistence queues.
type LiveRepository struct {
	rdb *redis.Client
}

// NewLiveRepository creates a new LiveRepository.
func NewLiveRepository(rdb *redis.Client) *LiveRepository {
	return &LiveRepository{rdb: rdb}
}

// AcquireParticipant claims the participant's single active-quiz slot for
// sessionID. It reports false if another session holds it.
func (r *LiveRepository) AcquireParticipant(ctx context.Context, participant, sessionID string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, config.CacheKey.ParticipantActiveQuizKey(participant), sessionID, ttl).Result()
}

// ReleaseParticipant frees the slot if sessionID still holds it.
func (r *LiveRepository) ReleaseParticipant(ctx context.Context, participant, sessionID string) error {
	return releaseScript.Run(ctx, r.rdb, []string{config.CacheKey.ParticipantActiveQuizKey(participant)}, sessionID).Err()
}

// SaveState stores the latest encoded snapshot of a session.
func (r *LiveRepository) SaveState(ctx context.Context, sessionID string, state []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, config.CacheKey.QuizSessionStateKey(sessionID), state, ttl).Err()
}

// LoadState returns the stored snapshot of a session, or redis.Nil.
func (r *LiveRepository) LoadState(ctx context.Context, sessionID string) ([]byte, error) {
	return r.rdb.Get(ctx, config.CacheKey.QuizSessionStateKey(sessionID)).Bytes()
}

// Publish sends a live event to the monitor channel.
func (r *LiveRepository) Publish(ctx context.Context, payload []byte) error {
	return r.rdb.Publish(ctx, config.CacheKey.QuizMonitorChannel(), payload).Err()
}

// Subscribe attaches to the monitor channel. The returned func detaches.
func (r *LiveRepository) Subscribe(ctx context.Context) (<-chan *redis.Message, func() error) {
	pubsub := r.rdb.Subscribe(ctx, config.CacheKey.QuizMonitorChannel())
	return pubsub.Channel(), pubsub.Close
}

// Enqueue appends payload to a persistence queue.
func (r *LiveRepository) Enqueue(ctx context.Context, queue string, payload []byte) error {
	return r.rdb.RPush(ctx, queue, payload).Err()
}

// Pop blocks up to timeout for the head of queue. It returns redis.Nil when
// the queue stayed empty.
func (r *LiveRepository) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := r.rdb.BLPop(ctx, timeout, queue).Result()
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, redis.Nil
	}
	return []byte(res[1]), nil
}

// Requeue pushes items back onto the tail of queue in one round trip.
func (r *LiveRepository) Requeue(ctx context.Context, queue string, items [][]byte) error {
	pipe := r.rdb.Pipeline()
	for _, item := range items {
		pipe.RPush(ctx, queue, item)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// QueueDepths returns the length of each persistence queue.
func (r *LiveRepository) QueueDepths(ctx context.Context) (map[string]int64, error) {
	queues := []string{config.WorkerKey.PersistViolationsQueue, config.WorkerKey.PersistOutcomesQueue}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(queues))
	for i, q := range queues {
		cmds[i] = pipe.LLen(ctx, q)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	depths := make(map[string]int64, len(queues))
	for i, q := range queues {
		depths[q] = cmds[i].Val()
	}
	return depths, nil
}
