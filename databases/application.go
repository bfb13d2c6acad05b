package databases

// go generate: mockery --name ApplicationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/volunteerhub/volunteerhub-api/models"
)

const applicationName = "applications"

// ApplicationDatabase contains the methods to use with the applications
// reporting projection. Writes here are best-effort; the embedded
// application array on the opportunity is authoritative.
type ApplicationDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ApplicationRecord, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type applicationDatabase struct {
	db DatabaseHelper
}

// NewApplicationDatabase initializes a new instance of application database with the provided db connection
func NewApplicationDatabase(db DatabaseHelper) ApplicationDatabase {
	return &applicationDatabase{
		db: db,
	}
}

func (a *applicationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ApplicationRecord, error) {
	var records []models.ApplicationRecord
	cr, err := a.db.Collection(applicationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *applicationDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := a.db.Collection(applicationName).InsertOne(ctx, document, opts...)
	return res, err
}

func (a *applicationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := a.db.Collection(applicationName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *applicationDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := a.db.Collection(applicationName).UpdateMany(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}
