package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Roles a user account can hold.
const (
	RoleVolunteer = "volunteer"
	RoleNGO       = "ngo"
	RoleAdmin     = "admin"
)

// Account statuses. Blocked users cannot authenticate.
const (
	StatusActive  = "Active"
	StatusBlocked = "Blocked"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Username       string             `json:"username" bson:"username"`
	Role           string             `json:"role" bson:"role"`
	Mobile         string             `json:"mobile" bson:"mobile"`
	Location       string             `json:"location" bson:"location"`
	Bio            string             `json:"bio" bson:"bio"`
	Skills         []string           `json:"skills" bson:"skills"`
	Availability   []string           `json:"availability" bson:"availability"`
	Email          string             `json:"email" bson:"email"`
	Password       string             `json:"-" bson:"password"`
	ProfilePicture string             `json:"profilePicture" bson:"profilePicture"`
	OTP            string             `json:"-" bson:"otp,omitempty"`
	OTPExpires     interface{}        `json:"-" bson:"otpExpires,omitempty"`
	Status         string             `json:"status" bson:"status"`
	CreatedAt      interface{}        `json:"createdAt" bson:"createdAt"`
	UpdatedAt      interface{}        `json:"updatedAt" bson:"updatedAt"`
}
