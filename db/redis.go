// api/db/redis.go
package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/policy"
)

var (
	RedisClient   *redis.Client
	encryptionKey []byte
)

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	encryptionKey = []byte(viper.GetString("redis.encryptionKey"))
	if len(encryptionKey) != 32 {
		return fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// CacheRuleSet stores an encrypted snapshot of the active rule set so a
// restarted instance can come up with the last activated version before the
// administrative channel re-pushes one.
func CacheRuleSet(ctx context.Context, rs *policy.RuleSet) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to marshal rule set: %w", err)
	}

	encrypted, err := encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt rule set: %w", err)
	}

	err = RedisClient.Set(ctx, "ruleset:active", base64.StdEncoding.EncodeToString(encrypted), 0).Err()
	if err != nil {
		return fmt.Errorf("failed to cache rule set: %w", err)
	}

	logger.Debug("Rule set snapshot cached", zap.String("version", rs.Version))
	return nil
}

// GetCachedRuleSet retrieves the encrypted rule-set snapshot, or (nil, nil)
// when no snapshot exists.
func GetCachedRuleSet(ctx context.Context) (*policy.RuleSet, error) {
	encoded, err := RedisClient.Get(ctx, "ruleset:active").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get rule set from cache: %w", err)
	}

	encrypted, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}

	data, err := decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt rule set: %w", err)
	}

	var rs policy.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule set: %w", err)
	}
	return &rs, nil
}

// EnqueueFallback appends a payload to a durable local queue. Used by the
// audit recorder when every write retry has failed.
func EnqueueFallback(ctx context.Context, key string, payload []byte) error {
	if err := RedisClient.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue fallback payload: %w", err)
	}
	return nil
}

// DequeueFallback pops the oldest fallback payload, or (nil, nil) when the
// queue is empty.
func DequeueFallback(ctx context.Context, key string) ([]byte, error) {
	payload, err := RedisClient.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to dequeue fallback payload: %w", err)
	}
	return payload, nil
}

// FallbackDepth reports how many payloads await replay.
func FallbackDepth(ctx context.Context, key string) (int64, error) {
	n, err := RedisClient.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read fallback queue depth: %w", err)
	}
	return n, nil
}

// RateLimit implements a sliding-window limiter keyed by caller identity.
func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
