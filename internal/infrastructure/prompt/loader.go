// Package prompt 提供带 Redis 读穿缓存的提示词加载
package prompt

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	"genai-chat-api/internal/infrastructure/persistence/redis"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
)

const cacheTTL = 10 * time.Minute

// CachedLoader 提示词加载器：Redis 读穿缓存 + singleflight 防击穿
// 指定编码缺失时回退默认提示词
type CachedLoader struct {
	repo  repository.PromptRepository
	cache *redis.Cache
}

// NewCachedLoader 创建提示词加载器，cache 可为 nil（直连数据库）
func NewCachedLoader(repo repository.PromptRepository, cache *redis.Cache) *CachedLoader {
	return &CachedLoader{repo: repo, cache: cache}
}

// Load 按编码加载提示词
func (l *CachedLoader) Load(ctx context.Context, code string) (*entity.Prompt, error) {
	p, err := l.load(ctx, code)
	if err == nil {
		return p, nil
	}
	if code == entity.DefaultPromptCode || !stderrors.Is(err, errors.ErrPromptNotFound) {
		return nil, err
	}

	// 指定编码不存在时回退默认提示词，避免一轮问答因配置缺失直接失败
	logger.Warn(ctx, "prompt not found, falling back to default", "code", code)
	return l.load(ctx, entity.DefaultPromptCode)
}

func (l *CachedLoader) load(ctx context.Context, code string) (*entity.Prompt, error) {
	if l.cache == nil {
		return l.repo.GetByCode(ctx, code)
	}

	data, err := l.cache.GetOrLoadSafe(ctx, redis.PromptKey(code), cacheTTL, func() (interface{}, error) {
		return l.repo.GetByCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}

	var p entity.Prompt
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "decode cached prompt failed")
	}
	return &p, nil
}

// Save 写库并使缓存失效
func (l *CachedLoader) Save(ctx context.Context, p *entity.Prompt) error {
	if err := l.repo.Upsert(ctx, p); err != nil {
		return err
	}
	if l.cache != nil {
		if err := l.cache.InvalidatePrompt(ctx, p.Code); err != nil {
			logger.Warn(ctx, "failed to invalidate prompt cache", "code", p.Code)
		}
	}
	return nil
}
