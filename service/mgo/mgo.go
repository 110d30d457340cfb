package mgo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wxrelay/tools/errs"
)

const (
	connectTimeout = 10 * time.Second
	maxRetry       = 3
	retryBackoff   = 500 * time.Millisecond
)

// Config MongoDB 连接配置
type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

// Connect 建连并 ping 通后返回库句柄，短暂抖动内做几次退避重试。
func Connect(ctx context.Context, cfg Config) (*mongo.Database, error) {
	if cfg.URI == "" {
		return nil, errs.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	var lastErr error
	for i := 0; i < maxRetry; i++ {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		cli, err := mongo.Connect(cctx, opts)
		if err == nil {
			err = cli.Ping(cctx, nil)
		}
		cancel()
		if err == nil {
			return cli.Database(cfg.Database), nil
		}
		lastErr = err
		time.Sleep(retryBackoff)
	}
	return nil, errs.WrapMsg(lastErr, "connect mongo")
}
