package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
)

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// CacheKey builds "Type:id", e.g. Cart:5f0c....
func CacheKey[T any](id string) string {
	return GetTypeName[T]() + ":" + id
}

/* Redis */

// GetRedisObject decodes the JSON value at key into dest.
// Returns false (and no error) when the key does not exist or the client is nil.
func GetRedisObject(ctx context.Context, rdb redis.Cmdable, key string, dest interface{}) (bool, error) {
	if IsNilClient(rdb) {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SetRedisObject(ctx context.Context, rdb redis.Cmdable, key string, obj interface{}, exp time.Duration) error {
	if IsNilClient(rdb) {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, objInByte, exp).Err()
}

func RemoveRedisKey(ctx context.Context, rdb redis.Cmdable, keys ...string) error {
	if IsNilClient(rdb) {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

func IsNilClient(rdb redis.Cmdable) bool {
	if rdb == nil {
		return true
	}
	v := reflect.ValueOf(rdb)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
