package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BotFlow/entity"
)

func (m *MongoDB) SaveDiagnostic(ctx context.Context, d entity.Diagnostic) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(diagnosticsCollection)
	if _, err = collection.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("mongodb insert error: %w", err)
	}
	return nil
}

// ListDiagnostics returns the newest diagnostics first. An empty session id
// lists across all sessions.
func (m *MongoDB) ListDiagnostics(ctx context.Context, sessionID string, limit int64) ([]entity.Diagnostic, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(diagnosticsCollection)
	filter := bson.D{}
	if sessionID != "" {
		filter = bson.D{{Key: "session_id", Value: sessionID}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find error: %w", err)
	}
	defer cursor.Close(ctx)

	list := make([]entity.Diagnostic, 0)
	if err = cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("mongodb decode error: %w", err)
	}
	return list, nil
}
