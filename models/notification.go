package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Notification types.
const (
	NotificationMatch       = "match"
	NotificationApplication = "application"
	NotificationApproval    = "approval"
	NotificationRejection   = "rejection"
)

// Notification holds the structure for the notifications collection in mongo
type Notification struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Type      string             `json:"type" bson:"type"`
	Message   string             `json:"message" bson:"message"`
	IsRead    bool               `json:"isRead" bson:"isRead"`
	Data      NotificationData   `json:"data" bson:"data"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// NotificationData carries denormalized context so clients can render a
// notification without a follow-up fetch.
type NotificationData struct {
	OpportunityID *primitive.ObjectID `json:"opportunityId,omitempty" bson:"opportunityId,omitempty"`
	VolunteerID   *primitive.ObjectID `json:"volunteerId,omitempty" bson:"volunteerId,omitempty"`
	NgoID         *primitive.ObjectID `json:"ngoId,omitempty" bson:"ngoId,omitempty"`
	Action        string              `json:"action,omitempty" bson:"action,omitempty"`
}
