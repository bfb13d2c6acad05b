package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Application lifecycle statuses. Accepted and rejected are terminal.
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
)

// Opportunity holds the structure for the opportunities collection in mongo
type Opportunity struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title        string             `json:"title" bson:"title"`
	Description  string             `json:"description" bson:"description"`
	Skills       []string           `json:"skills" bson:"skills"`
	Duration     string             `json:"duration" bson:"duration"`
	Location     string             `json:"location" bson:"location"`
	Date         primitive.DateTime `json:"date" bson:"date"`
	CreatedBy    primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	Applications []Application      `json:"applications" bson:"applications"`
	Deleted      bool               `json:"deleted" bson:"deleted"`
	CreatedAt    interface{}        `json:"createdAt" bson:"createdAt"`
	UpdatedAt    interface{}        `json:"updatedAt" bson:"updatedAt"`
}

// Application is an embedded application on an opportunity. The embedded
// array is the source of truth for application state; the standalone
// applications collection is a derived reporting projection.
type Application struct {
	Volunteer primitive.ObjectID `json:"volunteer" bson:"volunteer"`
	Status    string             `json:"status" bson:"status"`
	AppliedAt primitive.DateTime `json:"appliedAt" bson:"appliedAt"`
}

// ApplicationFor returns the embedded application for the given volunteer,
// or nil if the volunteer has not applied.
func (o *Opportunity) ApplicationFor(volunteerID primitive.ObjectID) *Application {
	for i := range o.Applications {
		if o.Applications[i].Volunteer == volunteerID {
			return &o.Applications[i]
		}
	}
	return nil
}
