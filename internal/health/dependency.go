package health

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &DBChecker{db: db}
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "db", Healthy: true}
	sqlDB, err := c.db.DB()
	if err != nil {
		return unhealthy(res, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unhealthy(res, err)
	}
	return res
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "redis", Healthy: true}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return unhealthy(res, err)
	}
	return res
}

// BucketChecker verifies the product image bucket is reachable.
type BucketChecker struct {
	client *minio.Client
	bucket string
}

func NewBucketChecker(client *minio.Client, bucket string) Checker {
	if client == nil || bucket == "" {
		return nil
	}
	return &BucketChecker{client: client, bucket: bucket}
}

func (c *BucketChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "object_storage", Healthy: true}
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return unhealthy(res, err)
	}
	if !exists {
		return unhealthy(res, fmt.Errorf("bucket %q not found", c.bucket))
	}
	return res
}

func unhealthy(res CheckResult, err error) CheckResult {
	res.Healthy = false
	res.Error = err.Error()
	return res
}
