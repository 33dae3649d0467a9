package repository

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/immutable/seaport/internal/config"
	"github.com/immutable/seaport/internal/model"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// RedisOrderStore persists order statuses as hashes and offerer counters as
// plain integers. Status updates for one settlement go through a single
// transactional pipeline.
type RedisOrderStore struct {
	client *RedisClient
	prefix string
}

func NewRedisOrderStore(client *RedisClient) *RedisOrderStore {
	return &RedisOrderStore{
		client: client,
		prefix: "seaport",
	}
}

func (s *RedisOrderStore) GetStatus(ctx context.Context, orderHash common.Hash) (model.OrderStatus, error) {
	fields, err := s.client.Client.HGetAll(ctx, s.statusKey(orderHash)).Result()
	if err != nil {
		return model.OrderStatus{}, err
	}
	if len(fields) == 0 {
		return model.NewOrderStatus(), nil
	}
	return statusFromFields(fields)
}

func (s *RedisOrderStore) ApplyUpdates(ctx context.Context, updates []model.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	_, err := s.client.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range updates {
			pipe.HSet(ctx, s.statusKey(u.OrderHash),
				"validated", boolField(u.Status.IsValidated),
				"cancelled", boolField(u.Status.IsCancelled),
				"filled", bigField(u.Status.TotalFilled),
				"size", bigField(u.Status.TotalSize),
			)
		}
		return nil
	})
	return err
}

func (s *RedisOrderStore) GetCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	val, err := s.client.Client.Get(ctx, s.counterKey(offerer)).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (s *RedisOrderStore) IncrementCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	val, err := s.client.Client.Incr(ctx, s.counterKey(offerer)).Result()
	if err != nil {
		return 0, err
	}
	return uint64(val), nil
}

func (s *RedisOrderStore) statusKey(orderHash common.Hash) string {
	return fmt.Sprintf("%s:status:%s", s.prefix, orderHash.Hex())
}

func (s *RedisOrderStore) counterKey(offerer common.Address) string {
	return fmt.Sprintf("%s:counter:%s", s.prefix, offerer.Hex())
}

func statusFromFields(fields map[string]string) (model.OrderStatus, error) {
	status := model.NewOrderStatus()
	status.IsValidated = fields["validated"] == "1"
	status.IsCancelled = fields["cancelled"] == "1"
	if raw := fields["filled"]; raw != "" {
		if _, ok := status.TotalFilled.SetString(raw, 10); !ok {
			return model.OrderStatus{}, fmt.Errorf("corrupt filled value %q", raw)
		}
	}
	if raw := fields["size"]; raw != "" {
		if _, ok := status.TotalSize.SetString(raw, 10); !ok {
			return model.OrderStatus{}, fmt.Errorf("corrupt size value %q", raw)
		}
	}
	return status, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func bigField(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
