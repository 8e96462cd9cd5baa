// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package backend opens queue stores and schema registries from URLs.
//
// Supported URLs:
//   - memory://                       in-process store and registry
//   - redis://, rediss://             Redis list store and registry
//   - postgres://, postgresql://      PostgreSQL store and registry
//   - mongodb://, mongodb+srv://      MongoDB store
//   - pebble:///path/to/dir           embedded Pebble store
//
// Clients are shared per URL and closed by [Backends.Close].
package backend

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/z5labs/drain/concurrent"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/memory"
	mongoqueue "github.com/z5labs/drain/queue/mongo"
	pebblequeue "github.com/z5labs/drain/queue/pebble"
	pgqueue "github.com/z5labs/drain/queue/postgres"
	redisqueue "github.com/z5labs/drain/queue/redis"
	"github.com/z5labs/drain/registry"
	memregistry "github.com/z5labs/drain/registry/memory"
	pgregistry "github.com/z5labs/drain/registry/postgres"
	redisregistry "github.com/z5labs/drain/registry/redis"

	"github.com/cockroachdb/pebble"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

// UnsupportedURLError is returned for URLs whose scheme has no backend.
type UnsupportedURLError struct {
	URL  string
	Kind string
}

// Error implements the [error] interface.
func (e UnsupportedURLError) Error() string {
	return fmt.Sprintf("backend: unsupported %s url: %s", e.Kind, e.URL)
}

type client struct {
	v     any
	close func() error
}

func (c client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Backends opens stores and registries which share one client per URL.
type Backends struct {
	namespace string
	clients   *concurrent.Cache[string, client]
	stores    *concurrent.Cache[string, any]
}

// New initializes [Backends] whose stores and registries live in namespace.
func New(namespace string) *Backends {
	return &Backends{
		namespace: namespace,
		clients:   concurrent.NewCache[string, client](),
		stores:    concurrent.NewCache[string, any](),
	}
}

// Namespace returns the namespace every store and registry is opened in.
func (b *Backends) Namespace() string {
	return b.namespace
}

// Close closes every client opened so far.
func (b *Backends) Close() error {
	return b.clients.Close()
}

var _ io.Closer = (*Backends)(nil)

func (b *Backends) client(ctx context.Context, rawURL string) (any, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid url: %w", err)
	}

	c, err := b.clients.GetOr(rawURL, func() (client, error) {
		switch u.Scheme {
		case "memory":
			return client{}, nil
		case "redis", "rediss":
			return openRedis(rawURL)
		case "postgres", "postgresql":
			return openPostgres(ctx, rawURL)
		case "mongodb", "mongodb+srv":
			return openMongo(rawURL)
		case "pebble":
			return openPebble(u)
		default:
			return client{}, UnsupportedURLError{URL: rawURL, Kind: "backend"}
		}
	})
	if err != nil {
		return nil, err
	}
	return c.v, nil
}

func openRedis(rawURL string) (client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return client{}, fmt.Errorf("backend: invalid redis url: %w", err)
	}
	rc := redis.NewClient(opts)
	return client{v: rc, close: rc.Close}, nil
}

func openPostgres(ctx context.Context, rawURL string) (client, error) {
	cfg, err := pgxpool.ParseConfig(rawURL)
	if err != nil {
		return client{}, fmt.Errorf("backend: invalid postgres url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return client{}, fmt.Errorf("backend: failed to create postgres pool: %w", err)
	}

	err = pool.Ping(ctx)
	if err == nil {
		err = pgqueue.CreateTable(ctx, pool)
	}
	if err == nil {
		err = pgregistry.CreateTables(ctx, pool)
	}
	if err != nil {
		pool.Close()
		return client{}, err
	}

	return client{
		v: pool,
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

type mongoDatabase struct {
	*mongo.Database
}

func openMongo(rawURL string) (client, error) {
	mc, err := mongo.Connect(options.Client().ApplyURI(rawURL))
	if err != nil {
		return client{}, fmt.Errorf("backend: failed to connect to mongo: %w", err)
	}

	dbName := "drain"
	if cs, err := connstring.ParseAndValidate(rawURL); err == nil && cs.Database != "" {
		dbName = cs.Database
	}

	return client{
		v: mongoDatabase{mc.Database(dbName)},
		close: func() error {
			return mc.Disconnect(context.Background())
		},
	}, nil
}

func openPebble(u *url.URL) (client, error) {
	dir := u.Host + u.Path
	if dir == "" {
		return client{}, fmt.Errorf("backend: pebble url must contain a directory: %s", u)
	}
	db, err := pebblequeue.Open(dir)
	if err != nil {
		return client{}, err
	}
	return client{v: db, close: db.Close}, nil
}

// OpenQueue returns the store for the named queue at rawURL. Memory and
// Pebble stores are shared by every caller asking for the same queue.
func OpenQueue[T any](ctx context.Context, b *Backends, rawURL, name string, codec queue.Codec[T]) (queue.Store[T], error) {
	c, err := b.client(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	switch c := c.(type) {
	case *redis.Client:
		return redisqueue.NewStore(c, codec, redisqueue.Namespace(b.namespace), redisqueue.Queue(name)), nil
	case *pgxpool.Pool:
		return pgqueue.NewStore(c, codec, pgqueue.Namespace(b.namespace), pgqueue.Queue(name)), nil
	case mongoDatabase:
		return mongoqueue.NewStore(c.Database, codec, mongoqueue.Namespace(b.namespace), mongoqueue.Queue(name)), nil
	case *pebble.DB:
		return sharedStore(b, rawURL, name, func() (queue.Store[T], error) {
			return pebblequeue.NewStore(c, codec, pebblequeue.Namespace(b.namespace), pebblequeue.Queue(name))
		})
	default:
		return sharedStore(b, rawURL, name, func() (queue.Store[T], error) {
			return memory.NewStore[T](), nil
		})
	}
}

func sharedStore[T any](b *Backends, rawURL, name string, f func() (queue.Store[T], error)) (queue.Store[T], error) {
	v, err := b.stores.GetOr(rawURL+"#queue:"+name, func() (any, error) {
		return f()
	})
	if err != nil {
		return nil, err
	}
	s, ok := v.(queue.Store[T])
	if !ok {
		return nil, fmt.Errorf("backend: queue %s is already open with a different payload type", name)
	}
	return s, nil
}

// OpenRegistry returns the schema registry at rawURL.
// MongoDB and Pebble URLs are not supported.
func (b *Backends) OpenRegistry(ctx context.Context, rawURL string) (registry.Registry, error) {
	c, err := b.client(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	switch c := c.(type) {
	case *redis.Client:
		return redisregistry.NewRegistry(c, b.namespace), nil
	case *pgxpool.Pool:
		return pgregistry.NewRegistry(c, b.namespace), nil
	case nil:
		v, err := b.stores.GetOr(rawURL+"#registry", func() (any, error) {
			return memregistry.NewRegistry(), nil
		})
		if err != nil {
			return nil, err
		}
		return v.(registry.Registry), nil
	default:
		return nil, UnsupportedURLError{URL: rawURL, Kind: "registry"}
	}
}
