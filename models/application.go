package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ApplicationRecord holds the structure for the applications collection in
// mongo. This collection is a denormalized projection of the application
// arrays embedded in opportunities, kept for reporting reads. It is written
// best-effort after the embedded array and may lag behind it.
type ApplicationRecord struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	OpportunityID primitive.ObjectID `json:"opportunityId" bson:"opportunityId"`
	VolunteerID   primitive.ObjectID `json:"volunteerId" bson:"volunteerId"`
	EventTitle    string             `json:"eventTitle" bson:"eventTitle"`
	EventLocation string             `json:"eventLocation" bson:"eventLocation"`
	Status        string             `json:"status" bson:"status"`
	AppliedAt     primitive.DateTime `json:"appliedAt" bson:"appliedAt"`
	UpdatedAt     interface{}        `json:"updatedAt" bson:"updatedAt"`
}
