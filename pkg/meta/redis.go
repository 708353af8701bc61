// pkg/meta/redis.go

package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const transfersKey = "transfers"

type redisMeta struct {
	conf *Config
	addr string
	rdb  *redis.Client
}

var _ Registry = &redisMeta{}

func init() {
	Register("redis", newRedisMeta)
	Register("rediss", newRedisMeta)
}

// newRedisMeta returns a registry stored in Redis.
func newRedisMeta(driver, addr string, conf *Config) (Registry, error) {
	url := driver + "://" + addr
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %s", url, err)
	}

	var rdb *redis.Client
	if strings.Contains(opt.Addr, ",") {
		var fopt redis.FailoverOptions
		ps := strings.Split(opt.Addr, ",")
		fopt.MasterName = ps[0]
		fopt.SentinelAddrs = ps[1:]
		for i, saddr := range fopt.SentinelAddrs {
			if _, _, err := net.SplitHostPort(saddr); err != nil {
				fopt.SentinelAddrs[i] = net.JoinHostPort(saddr, "26379")
			}
		}
		fopt.Username = opt.Username
		fopt.Password = opt.Password
		if fopt.Password == "" {
			fopt.Password = os.Getenv("REDIS_PASSWORD")
		}
		fopt.SentinelPassword = os.Getenv("SENTINEL_PASSWORD")
		fopt.DB = opt.DB
		fopt.TLSConfig = opt.TLSConfig
		fopt.MaxRetries = conf.Retries
		fopt.MinRetryBackoff = time.Millisecond * 100
		fopt.MaxRetryBackoff = time.Second * 10
		if conf.Timeout > 0 {
			fopt.ReadTimeout = conf.Timeout
			fopt.WriteTimeout = conf.Timeout
		}
		rdb = redis.NewFailoverClient(&fopt)
	} else {
		if opt.Password == "" {
			opt.Password = os.Getenv("REDIS_PASSWORD")
		}
		opt.MaxRetries = conf.Retries
		opt.MinRetryBackoff = time.Millisecond * 100
		opt.MaxRetryBackoff = time.Second * 10
		if conf.Timeout > 0 {
			opt.ReadTimeout = conf.Timeout
			opt.WriteTimeout = conf.Timeout
		}
		rdb = redis.NewClient(opt)
	}
	return &redisMeta{conf: conf, addr: opt.Addr, rdb: rdb}, nil
}

func (rm *redisMeta) Name() string {
	return "redis://" + rm.addr
}

func (rm *redisMeta) Begin(t *Transfer) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("json: %s", err)
	}
	return rm.rdb.HSet(context.Background(), transfersKey, t.ID, data).Err()
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func (rm *redisMeta) load(ctx context.Context, c hashGetter, id string) (*Transfer, error) {
	body, err := c.HGet(ctx, transfersKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t Transfer
	if err = json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("json: %s", err)
	}
	return &t, nil
}

// modify applies fn to the stored transfer inside a WATCH transaction.
func (rm *redisMeta) modify(id string, fn func(t *Transfer)) error {
	ctx := context.Background()
	return rm.txn(ctx, func(tx *redis.Tx) error {
		t, err := rm.load(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(t)
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("json: %s", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, transfersKey, id, data)
			return nil
		})
		return err
	}, transfersKey)
}

func shouldRetry(err error) bool {
	if errors.Is(err, redis.TxFailedErr) {
		return true
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	s := err.Error()
	return strings.HasPrefix(s, "LOADING") || strings.HasPrefix(s, "TRYAGAIN")
}

func (rm *redisMeta) txn(ctx context.Context, txf func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < 50; i++ {
		err = rm.rdb.Watch(ctx, txf, keys...)
		if shouldRetry(err) {
			time.Sleep(time.Microsecond * 100 * time.Duration(rand.Int()%(i+1)))
			continue
		}
		return err
	}
	return err
}

func (rm *redisMeta) Update(id string, size, done int64) error {
	return rm.modify(id, func(t *Transfer) {
		t.Size, t.Done, t.Updated = size, done, time.Now()
	})
}

func (rm *redisMeta) Finish(id string, err error) error {
	return rm.modify(id, func(t *Transfer) {
		t.finish(err)
	})
}

func (rm *redisMeta) Get(id string) (*Transfer, error) {
	return rm.load(context.Background(), rm.rdb, id)
}

func (rm *redisMeta) List() ([]*Transfer, error) {
	vals, err := rm.rdb.HGetAll(context.Background(), transfersKey).Result()
	if err != nil {
		return nil, err
	}
	ts := make([]*Transfer, 0, len(vals))
	for id, v := range vals {
		var t Transfer
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			logger.Warnf("corrupted transfer %s: %s", id, err)
			continue
		}
		ts = append(ts, &t)
	}
	sortTransfers(ts)
	return ts, nil
}

func (rm *redisMeta) Close() error {
	return rm.rdb.Close()
}
