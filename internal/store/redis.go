package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/biodoia/roundtable/pkg/config"
	"github.com/biodoia/roundtable/pkg/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
)

// RedisStore persiste le sessioni su Redis.
//
// Layout delle chiavi:
//
//	{prefix}:session:{id}  hash con i metadati della sessione
//	{prefix}:turns:{id}    lista JSON dei turni, in ordine
//	{prefix}:runs:{id}     lista JSON degli scambi degli agenti
//	{prefix}:sessions      sorted set degli id per ultimo aggiornamento
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore crea lo store e verifica la connessione
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Host,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreWithClient usa un client esistente
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "roundtable"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) sessionKey(id string) string { return r.prefix + ":session:" + id }
func (r *RedisStore) turnsKey(id string) string   { return r.prefix + ":turns:" + id }
func (r *RedisStore) runsKey(id string) string    { return r.prefix + ":runs:" + id }
func (r *RedisStore) indexKey() string            { return r.prefix + ":sessions" }

// EnsureSession scrive l'hash della sessione e la aggiunge all'indice ordinato
func (r *RedisStore) EnsureSession(ctx context.Context, info SessionInfo) error {
	participants, err := json.Marshal(info.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	key := r.sessionKey(info.ID)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "created_at", stamp)
		pipe.HSetNX(ctx, key, "user_id", info.UserID)
		pipe.HSetNX(ctx, key, "mode", string(info.Mode))
		pipe.HSet(ctx, key,
			"topic", info.Topic,
			"participants", string(participants),
			"updated_at", stamp,
		)
		pipe.HIncrBy(ctx, key, "runs", 1)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: info.ID})
		r.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", info.ID, err)
	}
	return nil
}

// AppendTurn accoda il turno alla lista JSON della sessione
func (r *RedisStore) AppendTurn(ctx context.Context, turn *models.Turn) error {
	if err := validateTurn(turn); err != nil {
		return err
	}

	seq, err := r.client.HIncrBy(ctx, r.sessionKey(turn.SessionID), "turn_count", 1).Result()
	if err != nil {
		return fmt.Errorf("failed to compute turn sequence: %w", err)
	}

	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.Seq = int(seq)

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}

	key := r.turnsKey(turn.SessionID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		r.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// AppendRun accoda lo scambio alla lista JSON della sessione
func (r *RedisStore) AppendRun(ctx context.Context, run *models.AgentRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode agent run: %w", err)
	}

	key := r.runsKey(run.SessionID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		r.expire(ctx, pipe, key)
		return nil
	})
	return err
}

// Session legge l'hash di una sessione
func (r *RedisStore) Session(ctx context.Context, id string) (*models.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	session := &models.Session{
		ID:           id,
		Topic:        fields["topic"],
		UserID:       fields["user_id"],
		Mode:         models.SessionMode(fields["mode"]),
		Participants: datatypes.JSON(fields["participants"]),
	}
	session.Runs, _ = strconv.Atoi(fields["runs"])
	session.TurnCount, _ = strconv.Atoi(fields["turn_count"])
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	session.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return session, nil
}

// Transcript legge la lista dei turni di una sessione
func (r *RedisStore) Transcript(ctx context.Context, sessionID string) ([]models.Turn, error) {
	n, err := r.client.Exists(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	items, err := r.client.LRange(ctx, r.turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	turns := make([]models.Turn, 0, len(items))
	for _, item := range items {
		var t models.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Runs legge gli scambi di una sessione, filtrati per agente se indicato
func (r *RedisStore) Runs(ctx context.Context, sessionID, agent string) ([]models.AgentRun, error) {
	items, err := r.client.LRange(ctx, r.runsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var runs []models.AgentRun
	for _, item := range items {
		var run models.AgentRun
		if err := json.Unmarshal([]byte(item), &run); err != nil {
			return nil, fmt.Errorf("failed to decode agent run: %w", err)
		}
		if agent == "" || run.Agent == agent {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// Sessions restituisce le sessioni più recenti dall'indice ordinato
func (r *RedisStore) Sessions(ctx context.Context, limit int) ([]models.Session, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(ids))
	for _, id := range ids {
		session, err := r.Session(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			// sessione scaduta: l'indice viene ripulito
			r.client.ZRem(ctx, r.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// Ping verifica la connessione a Redis
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close chiude il client Redis
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
}
