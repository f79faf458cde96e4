package pool

import (
	"context"
	"errors"
	"time"
)

// Tiered L1 (进程内) + L2 (Redis)
type Tiered struct {
	l1    Store
	l2    Store
	l1TTL time.Duration // L2 回填 L1 时使用
}

// NewTiered l2 可为 nil（单机模式）
func NewTiered(l1, l2 Store, l1TTL time.Duration) *Tiered {
	return &Tiered{l1: l1, l2: l2, l1TTL: l1TTL}
}

// Get L1 -> L2，L2 命中回填 L1
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	if t.l2 == nil {
		return nil, false, nil
	}

	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.l1.Set(ctx, key, v, t.l1TTL)
	return v, true, nil
}

// Set 写两级，L1 TTL 不超过 l1TTL
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := ttl
	if t.l1TTL > 0 && (l1TTL <= 0 || l1TTL > t.l1TTL) {
		l1TTL = t.l1TTL
	}
	err := t.l1.Set(ctx, key, value, l1TTL)
	if t.l2 != nil {
		err = errors.Join(err, t.l2.Set(ctx, key, value, ttl))
	}
	return err
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	err := t.l1.Delete(ctx, key)
	if t.l2 != nil {
		err = errors.Join(err, t.l2.Delete(ctx, key))
	}
	return err
}

// DeletePrefix 两级都删，先 L2 避免 L1 被 L2 旧值回填
func (t *Tiered) DeletePrefix(ctx context.Context, prefix string) error {
	var err error
	if t.l2 != nil {
		err = t.l2.DeletePrefix(ctx, prefix)
	}
	return errors.Join(err, t.l1.DeletePrefix(ctx, prefix))
}
