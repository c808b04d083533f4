package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BotFlow/entity"
)

type chatLogDocument struct {
	SessionID string         `bson:"session_id"`
	Log       entity.ChatLog `bson:",inline"`
	CreatedAt time.Time      `bson:"created_at"`
}

type visitedEdgeDocument struct {
	SessionID string             `bson:"session_id"`
	Edge      entity.VisitedEdge `bson:",inline"`
	CreatedAt time.Time          `bson:"created_at"`
}

// SaveSession upserts the session by id and appends the transition's logs
// and visited edges. The last save wins.
func (m *MongoDB) SaveSession(ctx context.Context, rec entity.SessionRecord, input *entity.Input, logs []entity.ChatLog, actions []entity.ClientSideAction, edges []entity.VisitedEdge) error {
	now := time.Now()
	row, err := NewSessionRow(rec, input, actions, now)
	if err != nil {
		return err
	}

	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	db := connection.Database(m.database)

	filter := bson.D{{Key: "_id", Value: row.ID}}
	if _, err = db.Collection(sessionsCollection).ReplaceOne(ctx, filter, row, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongodb upsert error: %w", err)
	}

	if len(logs) > 0 {
		docs := make([]interface{}, 0, len(logs))
		for _, l := range logs {
			docs = append(docs, chatLogDocument{SessionID: rec.ID, Log: l, CreatedAt: now})
		}
		if _, err = db.Collection(chatLogsCollection).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("mongodb insert logs error: %w", err)
		}
	}

	if len(edges) > 0 {
		docs := make([]interface{}, 0, len(edges))
		for _, e := range edges {
			docs = append(docs, visitedEdgeDocument{SessionID: rec.ID, Edge: e, CreatedAt: now})
		}
		if _, err = db.Collection(visitedEdgesCollection).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("mongodb insert edges error: %w", err)
		}
	}
	return nil
}

// LoadSession returns nil when the session does not exist.
func (m *MongoDB) LoadSession(ctx context.Context, id string) (*entity.Session, error) {
	return m.findSession(ctx, bson.D{{Key: "_id", Value: id}}, nil)
}

// FindSessionByChannel returns the most recently updated session bound to
// the connection and recipient phone, or nil.
func (m *MongoDB) FindSessionByChannel(ctx context.Context, clientID, phone string) (*entity.Session, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return m.findSession(ctx, bson.D{{Key: "client_id", Value: clientID}, {Key: "phone", Value: phone}}, opts)
}

func (m *MongoDB) findSession(ctx context.Context, filter bson.D, opts *options.FindOneOptions) (*entity.Session, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)
	var row SessionRow
	if opts == nil {
		opts = options.FindOne()
	}
	err = collection.FindOne(ctx, filter, opts).Decode(&row)
	if err != nil {
		return nil, m.findError(err)
	}
	return row.Session()
}
