package service

import (
	"context"
	"math"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/logger"
	"forum_go/internal/core/metrics"
	"forum_go/internal/repository"
)

// HotScore (views + posts*3 + likes*2) / (ageHours + 2)^1.2
func HotScore(views, posts, likes int64, age time.Duration) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}
	return float64(views+posts*3+likes*2) / math.Pow(hours+2, 1.2)
}

// HotScoreJob 周期性重算近期活跃主题的热度，读路径只按存储值排序
type HotScoreJob struct {
	repo     repository.ThreadRepository
	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

// NewHotScoreJob 创建重算任务
func NewHotScoreJob(repo repository.ThreadRepository, cfg *config.HotScoreConfig) *HotScoreJob {
	return &HotScoreJob{
		repo:     repo,
		interval: cfg.IntervalDuration(),
		window:   time.Duration(cfg.WindowHours) * time.Hour,
		now:      time.Now,
	}
}

// RunOnce 执行一次重算
func (j *HotScoreJob) RunOnce(ctx context.Context) (int64, error) {
	since := j.now().UTC().Add(-j.window)
	n, err := j.repo.RecalculateHotScores(ctx, since)
	if err != nil {
		return 0, err
	}
	metrics.HotScoreRecalculated.Add(float64(n))
	return n, nil
}

// Run 阻塞直到 ctx 取消；interval <= 0 时直接返回
func (j *HotScoreJob) Run(ctx context.Context) {
	if j.interval <= 0 {
		logger.Info("hot score job disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			n, err := j.RunOnce(ctx)
			if err != nil {
				logger.Warn("hot score recalculation failed", logger.ErrorField(err))
				continue
			}
			logger.Info("hot score recalculated",
				logger.Int64("rows", n),
				logger.Duration("duration", time.Since(start)))
		}
	}
}
