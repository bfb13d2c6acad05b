package databases

// go generate: mockery --name OpportunityDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/volunteerhub/volunteerhub-api/models"
)

const opportunityName = "opportunities"

// OpportunityDatabase contains the methods to use with the opportunity database
type OpportunityDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Opportunity, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Opportunity, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type opportunityDatabase struct {
	db DatabaseHelper
}

// NewOpportunityDatabase initializes a new instance of opportunity database with the provided db connection
func NewOpportunityDatabase(db DatabaseHelper) OpportunityDatabase {
	return &opportunityDatabase{
		db: db,
	}
}

func (o *opportunityDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Opportunity, error) {
	opportunity := &models.Opportunity{}
	err := o.db.Collection(opportunityName).FindOne(ctx, filter).Decode(&opportunity)
	if err != nil {
		return nil, err
	}
	return opportunity, nil
}

func (o *opportunityDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Opportunity, error) {
	var opportunities []models.Opportunity
	cr, err := o.db.Collection(opportunityName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&opportunities)
	if err != nil {
		return nil, err
	}
	return opportunities, nil
}

func (o *opportunityDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := o.db.Collection(opportunityName).InsertOne(ctx, document, opts...)
	return res, err
}

func (o *opportunityDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := o.db.Collection(opportunityName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}
