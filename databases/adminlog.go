package databases

// go generate: mockery --name AdminLogDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/volunteerhub/volunteerhub-api/models"
)

const adminLogName = "adminlogs"

// AdminLogDatabase contains the methods to use with the admin audit log database
type AdminLogDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.AdminLog, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
}

type adminLogDatabase struct {
	db DatabaseHelper
}

// NewAdminLogDatabase initializes a new instance of admin log database with the provided db connection
func NewAdminLogDatabase(db DatabaseHelper) AdminLogDatabase {
	return &adminLogDatabase{
		db: db,
	}
}

func (a *adminLogDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	cr, err := a.db.Collection(adminLogName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&logs)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (a *adminLogDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := a.db.Collection(adminLogName).InsertOne(ctx, document, opts...)
	return res, err
}
