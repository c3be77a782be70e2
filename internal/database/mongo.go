package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// ConnectMongo connects to MongoDB and pings the primary.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, nil
}

// mongoTx is the Tx handle produced by the Mongo manager.
type mongoTx struct {
	session *mongo.Session
}

func (t *mongoTx) Driver() string { return "mongodb" }

// mongoTxManager implements TxManager with MongoDB multi-document transactions.
// Transactions require a replica set or sharded cluster.
type mongoTxManager struct {
	client *mongo.Client
}

// NewMongoTxManager creates a new TxManager backed by MongoDB sessions.
func NewMongoTxManager(client *mongo.Client) TxManager {
	return &mongoTxManager{client: client}
}

// WithTx executes fn inside a MongoDB transaction. The session is ended on every path.
func (m *mongoTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	tx := &mongoTx{session: session}
	_, err = session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return nil, fn(sessCtx, tx)
	})
	return err
}

// MongoContext binds the session behind tx to ctx, or returns ctx unchanged when tx is nil.
// It panics when tx was produced by a non-Mongo manager.
func MongoContext(ctx context.Context, tx Tx) context.Context {
	if tx == nil {
		return ctx
	}
	t, ok := tx.(*mongoTx)
	if !ok {
		panic(fmt.Sprintf("database: %s transaction used with a MongoDB repository", tx.Driver()))
	}
	return mongo.NewSessionContext(ctx, t.session)
}
