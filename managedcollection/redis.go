package managedcollection

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
	"github.com/ironbee-oss/rulecore/vars"
)

// RedisKeyPrefix is the name prefix a collection name must carry for the
// Redis handler to accept it, e.g. "redis:blocklist".
const RedisKeyPrefix = "redis:"

// RedisConfig configures a Redis-backed handler instance.
type RedisConfig struct {
	TTL time.Duration // 0 disables expiry
}

// RedisHandler persists a managed collection as a Redis LIST, one element
// per list-field child, keyed on the collection name with its "redis:"
// prefix stripped.
type RedisHandler struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedisHandler wraps an already-connected Redis client.
func NewRedisHandler(client redis.UniversalClient, cfg RedisConfig) *RedisHandler {
	return &RedisHandler{client: client, cfg: cfg}
}

type redisHandlerData struct {
	key string
}

// Register installs this handler on engine under name.
func (h *RedisHandler) Register(engine *Engine, name string) (*Handler, error) {
	return engine.Register(name, h.selection, h.populate, h.persist)
}

func (h *RedisHandler) selection(name, params string) (bool, any, error) {
	if !strings.HasPrefix(name, RedisKeyPrefix) {
		return false, nil, nil
	}
	key := strings.TrimPrefix(name, RedisKeyPrefix)
	if key == "" {
		return false, nil, rerrors.EINVAL("RedisHandler.selection", "empty key after prefix: "+name)
	}
	return true, &redisHandlerData{key: key}, nil
}

func (h *RedisHandler) populate(ctx context.Context, ar *arena.Arena, handlerData any, name, params string, store *vars.Store, target *field.Field) error {
	data := handlerData.(*redisHandlerData)
	values, err := h.client.LRange(ctx, data.key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "RedisHandler.populate", "LRANGE "+data.key, err)
	}
	for _, v := range values {
		target.Append(field.NewByteString("", v))
	}
	return nil
}

func (h *RedisHandler) persist(ctx context.Context, ar *arena.Arena, handlerData any, name string, store *vars.Store, target *field.Field) error {
	data := handlerData.(*redisHandlerData)
	children, _ := target.List()

	pipe := h.client.TxPipeline()
	pipe.Del(ctx, data.key)
	if len(children) > 0 {
		values := make([]any, 0, len(children))
		for _, c := range children {
			v, _ := c.String()
			values = append(values, v)
		}
		pipe.RPush(ctx, data.key, values...)
	}
	if h.cfg.TTL > 0 {
		pipe.Expire(ctx, data.key, h.cfg.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "RedisHandler.persist", "pipeline exec for "+data.key, err)
	}
	return nil
}
