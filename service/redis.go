package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/model"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
)

// JobCache stores finished job results by content hash.
type JobCache interface {
	GetJobResult(ctx context.Context, md5 string) (*model.JobResult, error)
	SetJobResult(ctx context.Context, md5 string, result *model.JobResult) error
}

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetJobResult 从缓存获取任务结果，未命中时返回 nil, nil
func (s *RedisService) GetJobResult(ctx context.Context, md5 string) (*model.JobResult, error) {
	key := "job:" + md5
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result model.JobResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal job result",
			zap.String("md5", md5), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetJobResult 设置任务结果到缓存
func (s *RedisService) SetJobResult(ctx context.Context, md5 string, result *model.JobResult) error {
	key := "job:" + md5
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
