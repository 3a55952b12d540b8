// Package job keeps the latest job state per profile so background scrapes
// can be inspected while they run.
package job

import (
	"context"
	"errors"
	"time"

	"profilescraper/internal/core/model"
	rds "profilescraper/internal/platform/redis"
)

type Service struct {
	redis *rds.Service
	now   func() time.Time
}

func NewService(redis *rds.Service) *Service {
	return &Service{redis: redis, now: time.Now}
}

// Record stores j as the current job of its profile and announces the change
// on the job's channel.
func (s *Service) Record(ctx context.Context, j *model.Job) error {
	j.UpdatedAt = s.now().UTC()
	if err := s.redis.CacheSet(ctx, Key(j.Profile), j, ttl(j.State)); err != nil {
		return model.NewError(model.ErrStorage, "recording job "+j.Profile, err)
	}
	_ = s.redis.Client().Publish(ctx, Key(j.Profile), string(j.State)).Err()
	return nil
}

func (s *Service) Get(ctx context.Context, profile string) (*model.Job, error) {
	var j model.Job
	err := s.redis.CacheGet(ctx, Key(profile), &j)
	if errors.Is(err, rds.ErrMiss) {
		return nil, model.NewError(model.ErrNoData, "no job for "+profile, nil)
	}
	if err != nil {
		return nil, model.NewError(model.ErrStorage, "reading job "+profile, err)
	}
	return &j, nil
}

// Key is both the storage key and the pub/sub channel of a profile's job.
func Key(profile string) string { return "job:" + profile }

func ttl(s model.State) time.Duration {
	if s.Terminal() {
		return time.Hour
	}
	return 10 * time.Minute
}
