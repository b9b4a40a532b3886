// Package mongodb implements the repositories on top of the MongoDB driver.
package mongodb

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"cookiebarrel/internal/database"
	"cookiebarrel/internal/repositories"
)

type Options struct {
	// UseTransactions wraps RunInTx in a session transaction. It needs a
	// replica set or sharded cluster.
	UseTransactions bool
}

type Registry struct {
	client   *mongo.Client
	db       *mongo.Database
	useTx    bool
	orders   *OrderRepository
	products *ProductRepository
	counters *CounterRepository
}

var _ repositories.Registry = (*Registry)(nil)

func NewRegistry(client *mongo.Client, dbName string, opts Options) *Registry {
	db := client.Database(dbName)
	return &Registry{
		client:   client,
		db:       db,
		useTx:    opts.UseTransactions,
		orders:   &OrderRepository{coll: db.Collection(database.OrdersCollection)},
		products: &ProductRepository{coll: db.Collection(database.ProductsCollection)},
		counters: &CounterRepository{coll: db.Collection(database.CountersCollection)},
	}
}

func (r *Registry) Database() *mongo.Database { return r.db }

func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

func (r *Registry) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return repositories.Unavailable("ping", err)
	}
	return nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.useTx {
		return fn(ctx)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return repositories.Unavailable("startSession", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// mapError converts driver errors into repository errors. Errors that are
// already typed pass through untouched.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr *repositories.Error
	if errors.As(err, &repoErr) {
		return err
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return repositories.NotFound(op, "document not found")
	case mongo.IsDuplicateKeyError(err):
		field := "_id"
		switch msg := err.Error(); {
		case strings.Contains(msg, database.IdempotencyKeyIndex):
			field = repositories.FieldIdempotencyKey
		case strings.Contains(msg, database.OrderNumberIndex):
			field = repositories.FieldOrderNumber
		}
		return repositories.Duplicate(op, field, err)
	default:
		return repositories.Unavailable(op, err)
	}
}
