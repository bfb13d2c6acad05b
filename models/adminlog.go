package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// AdminLog holds the structure for the adminlogs audit collection in mongo
type AdminLog struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	AdminID      primitive.ObjectID `json:"adminId" bson:"adminId"`
	Action       string             `json:"action" bson:"action"`
	TargetUserID primitive.ObjectID `json:"targetUserId" bson:"targetUserId"`
	CreatedAt    primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
