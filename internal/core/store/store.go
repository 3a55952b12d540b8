// Package store persists normalized posts per profile.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redisv8 "github.com/go-redis/redis/v8"

	"profilescraper/internal/core/model"
	"profilescraper/internal/logger"
	rds "profilescraper/internal/platform/redis"
)

const profilesKey = "posts:profiles"

type Store struct {
	redis *rds.Service
	log   *logger.Logger
}

func New(redis *rds.Service) *Store {
	return &Store{redis: redis, log: logger.New("PostStore")}
}

func key(profile string) string { return "posts:" + profile }

// Save replaces the stored posts of doc.Profile.
func (s *Store) Save(ctx context.Context, doc model.ProfilePosts) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return model.NewError(model.ErrStorage, "encoding posts", err)
	}
	_, err = s.redis.Client().TxPipelined(ctx, func(p redisv8.Pipeliner) error {
		p.Set(ctx, key(doc.Profile), b, 0)
		p.SAdd(ctx, profilesKey, doc.Profile)
		return nil
	})
	if err != nil {
		return model.NewError(model.ErrStorage, "saving posts for "+doc.Profile, err)
	}
	s.log.LogDebugf("stored %d posts for %s", len(doc.Posts), doc.Profile)
	return nil
}

// Get returns the stored posts of profile, or model.ErrNoData when nothing
// (or an empty result) has been stored yet.
func (s *Store) Get(ctx context.Context, profile string) (*model.ProfilePosts, error) {
	var doc model.ProfilePosts
	err := s.redis.CacheGet(ctx, key(profile), &doc)
	if errors.Is(err, rds.ErrMiss) {
		return nil, model.NewError(model.ErrNoData, profile, nil)
	}
	if err != nil {
		return nil, model.NewError(model.ErrStorage, "reading posts for "+profile, err)
	}
	if len(doc.Posts) == 0 {
		return nil, model.NewError(model.ErrNoData, profile, nil)
	}
	return &doc, nil
}

// All returns every stored document ordered by profile.
func (s *Store) All(ctx context.Context) ([]model.ProfilePosts, error) {
	profiles, err := s.redis.Client().SMembers(ctx, profilesKey).Result()
	if err != nil {
		return nil, model.NewError(model.ErrStorage, "listing profiles", err)
	}
	sort.Strings(profiles)

	docs := make([]model.ProfilePosts, 0, len(profiles))
	if len(profiles) > 0 {
		keys := make([]string, len(profiles))
		for i, p := range profiles {
			keys[i] = key(p)
		}
		vals, err := s.redis.Client().MGet(ctx, keys...).Result()
		if err != nil {
			return nil, model.NewError(model.ErrStorage, "reading posts", err)
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var doc model.ProfilePosts
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return nil, model.NewError(model.ErrStorage, fmt.Sprintf("decoding posts for %s", profiles[i]), err)
			}
			if len(doc.Posts) > 0 {
				docs = append(docs, doc)
			}
		}
	}
	if len(docs) == 0 {
		return nil, model.NewError(model.ErrNoData, "store is empty", nil)
	}
	return docs, nil
}
