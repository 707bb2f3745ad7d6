// Package kv - простое строковое хранилище ключ-значение,
// используется как резервная копия меток синхронизации.
package kv

import (
	"context"
)

// Store - минимальный контракт get/set по ключу
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
