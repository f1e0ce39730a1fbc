package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anyproto/any-sync/app"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CName = "db"

func New() Database {
	return new(database)
}

type Mongo struct {
	Connect  string `yaml:"connect"`
	Database string `yaml:"database"`
}

type configSource interface {
	GetMongo() Mongo
}

type Database interface {
	Db() *mongo.Database
	Tx(ctx context.Context, do func(ctx mongo.SessionContext) error) error
	app.ComponentRunnable
}

type database struct {
	conf   Mongo
	client *mongo.Client
	db     *mongo.Database
}

func (d *database) Init(a *app.App) (err error) {
	d.conf = a.MustComponent("config").(configSource).GetMongo()
	if d.conf.Connect == "" || d.conf.Database == "" {
		return fmt.Errorf("mongo connect string or database is empty")
	}
	return
}

func (d *database) Name() (name string) {
	return CName
}

func (d *database) Run(ctx context.Context) (err error) {
	if d.client, err = mongo.Connect(ctx, options.Client().ApplyURI(d.conf.Connect)); err != nil {
		return
	}
	d.db = d.client.Database(d.conf.Database)
	return
}

func (d *database) Db() *mongo.Database {
	return d.db
}

// Tx runs the callback inside a multi-document transaction, so a
// mid-sequence failure leaves none of the callback's writes applied.
// Standalone deployments have no transaction support; there the callback
// reruns on the plain session, which is safe for the $set-style updates
// this server issues.
func (d *database) Tx(ctx context.Context, do func(ctx mongo.SessionContext) error) (err error) {
	session, err := d.client.StartSession()
	if err != nil {
		return
	}
	defer session.EndSession(ctx)
	if _, err = session.WithTransaction(ctx, func(ctx mongo.SessionContext) (any, error) {
		return nil, do(ctx)
	}); err != nil && isTxnUnsupported(err) {
		return mongo.WithSession(ctx, session, do)
	}
	return
}

func isTxnUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 20 {
		// IllegalOperation: "Transaction numbers are only allowed on a
		// replica set member or mongos"
		return strings.Contains(cmdErr.Message, "Transaction")
	}
	return false
}

func (d *database) Close(ctx context.Context) (err error) {
	if d.client != nil {
		return d.client.Disconnect(ctx)
	}
	return
}
