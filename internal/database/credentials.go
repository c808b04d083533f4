package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BotFlow/entity"
)

// SaveCredentials stores the paired login under its id.
func (m *MongoDB) SaveCredentials(ctx context.Context, c *entity.WhatsappCredentials) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(credentialsCollection)
	filter := bson.D{{Key: "_id", Value: c.ID}}
	if _, err = collection.ReplaceOne(ctx, filter, c, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongodb upsert error: %w", err)
	}
	return nil
}

func (m *MongoDB) GetCredentials(ctx context.Context, id string) (*entity.WhatsappCredentials, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(credentialsCollection)
	var c entity.WhatsappCredentials
	if err = collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&c); err != nil {
		return nil, m.findError(err)
	}
	return &c, nil
}
