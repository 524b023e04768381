package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DesignComment is the cached shape of one comment for fast replay to
// joining clients, mirroring the REST response.
type DesignComment struct {
	ID         int64           `json:"id"`
	DesignID   int64           `json:"designId"`
	AuthorID   int64           `json:"authorId"`
	AuthorName string          `json:"authorName"`
	Message    string          `json:"message"`
	Mentions   []int64         `json:"mentions"`
	Position   json.RawMessage `json:"position,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// RedisClient wraps the Redis client for per-design comment caching.
// Comments are append-only, so a simple RPUSH list per design stays
// consistent with the store.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &RedisClient{client: client}, nil
}

func commentKey(designID int64) string {
	return fmt.Sprintf("design:%d:comments", designID)
}

// AddComment appends a comment to the design's list
func (r *RedisClient) AddComment(ctx context.Context, c *DesignComment) error {
	key := commentKey(c.DesignID)

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		log.Printf("[Redis] Failed to cache comment: %v", err)
		return err
	}

	// Set TTL on every write (24 hours); the DB is the source of truth.
	r.client.Expire(ctx, key, 24*time.Hour)

	return nil
}

// GetRecentComments retrieves the last N cached comments for a design
func (r *RedisClient) GetRecentComments(ctx context.Context, designID int64, count int64) ([]DesignComment, error) {
	results, err := r.client.LRange(ctx, commentKey(designID), -count, -1).Result()
	if err != nil {
		return nil, err
	}

	comments := make([]DesignComment, 0, len(results))
	for _, data := range results {
		var c DesignComment
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}
		comments = append(comments, c)
	}

	return comments, nil
}

// CommentCount returns the number of cached comments for a design
func (r *RedisClient) CommentCount(ctx context.Context, designID int64) (int64, error) {
	return r.client.LLen(ctx, commentKey(designID)).Result()
}

// DeleteDesign removes the cached comments for a design
func (r *RedisClient) DeleteDesign(ctx context.Context, designID int64) error {
	return r.client.Del(ctx, commentKey(designID)).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Health checks if Redis is healthy
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
