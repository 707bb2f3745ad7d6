// Package dedupe склеивает одинаковые одновременные запросы delta API
// и держит короткий кеш последних успешных ответов.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 30 * time.Second

var ErrPanic = errors.New("delta request panicked")

// Full - значение Since для полного прохода
const Full = "full"

type Key struct {
	Collection string
	Since      string
}

func (k Key) String() string {
	since := k.Since
	if since == "" {
		since = Full
	}
	return fmt.Sprintf("%s:%s", k.Collection, since)
}

type Options struct {
	// Force - не читать кеш
	Force bool
	// Incremental - вызов из инкрементальной сверки, кеш тоже не читается
	Incremental bool
}

// Group - дедупликатор для результатов типа T
type Group[T any] struct {
	sf    singleflight.Group
	cache *cache.Cache
}

func New[T any](ttl time.Duration) *Group[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Group[T]{
		cache: cache.New(ttl, 2*ttl),
	}
}

// Do выполняет fn не более одного раза на ключ среди одновременных вызовов.
// shared=true, если результат получен из кеша или от чужого вызова.
func (g *Group[T]) Do(ctx context.Context, key Key, opts Options, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	k := key.String()

	if !opts.Force && !opts.Incremental {
		if v, ok := g.cache.Get(k); ok {
			return v.(T), true, nil
		}
	}

	ch := g.sf.DoChan(k, func() (v any, err error) {
		// DoChan перевыбрасывает панику в отдельной горутине и роняет процесс
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		v, err = fn(ctx)
		if err != nil {
			return v, err
		}
		g.cache.SetDefault(k, v)
		return v, nil
	})

	select {
	case res := <-ch:
		var zero T
		if res.Val != nil {
			zero = res.Val.(T)
		}
		return zero, res.Shared, res.Err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Clear удаляет одну запись кеша.
func (g *Group[T]) Clear(key Key) {
	g.cache.Delete(key.String())
}

// ClearAll очищает кеш целиком.
func (g *Group[T]) ClearAll() {
	g.cache.Flush()
}

// Len - число записей в кеше
func (g *Group[T]) Len() int {
	return g.cache.ItemCount()
}
