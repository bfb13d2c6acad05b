package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/volunteerhub/volunteerhub-api/api"
	"github.com/volunteerhub/volunteerhub-api/config"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

type registerRequest struct {
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Role         string   `json:"role"`
	Mobile       string   `json:"mobile"`
	Location     string   `json:"location"`
	Bio          string   `json:"bio"`
	Skills       []string `json:"skills"`
	Availability []string `json:"availability"`
}

// RegisterHandler creates a volunteer or NGO account
func (u User) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody registerRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	requestBody.Email = strings.ToLower(strings.TrimSpace(requestBody.Email))
	if requestBody.Username == "" || requestBody.Email == "" || requestBody.Password == "" {
		config.ErrorStatus("username, email and password are required", http.StatusBadRequest, w, fmt.Errorf("missing required field"))
		return
	}
	if requestBody.Role != models.RoleVolunteer && requestBody.Role != models.RoleNGO {
		config.ErrorStatus("role must be volunteer or ngo", http.StatusBadRequest, w, fmt.Errorf("invalid role %q", requestBody.Role))
		return
	}

	count, err := u.DB.CountDocuments(context.Background(), bson.M{"email": requestBody.Email})
	if err != nil {
		config.ErrorStatus("failed to check for existing user", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("an account with this email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(requestBody.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	skills := requestBody.Skills
	if skills == nil {
		skills = []string{}
	}
	availability := requestBody.Availability
	if availability == nil {
		availability = []string{}
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     requestBody.Username,
		Email:        requestBody.Email,
		Password:     string(hash),
		Role:         requestBody.Role,
		Mobile:       requestBody.Mobile,
		Location:     requestBody.Location,
		Bio:          requestBody.Bio,
		Skills:       skills,
		Availability: availability,
		Status:       models.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := u.DB.InsertOne(context.Background(), user); err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"_id":     user.ID.Hex(),
		"role":    user.Role,
		"message": "User registered successfully",
	})
}

// UserHandler returns a user by ID
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateUserHandler updates a user's own profile
func (u User) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if requester := api.UserID(r); requester != "" && requester != userID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("cannot update another user's profile"))
		return
	}

	var requestBody registerRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	// email, password and role are not updatable here
	update := bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	if requestBody.Username != "" {
		update["username"] = requestBody.Username
	}
	if requestBody.Mobile != "" {
		update["mobile"] = requestBody.Mobile
	}
	if requestBody.Location != "" {
		update["location"] = requestBody.Location
	}
	if requestBody.Bio != "" {
		update["bio"] = requestBody.Bio
	}
	if requestBody.Skills != nil {
		update["skills"] = requestBody.Skills
	}
	if requestBody.Availability != nil {
		update["availability"] = requestBody.Availability
	}

	res, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, bson.M{"$set": update})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("user not found", http.StatusNotFound, w, fmt.Errorf("no user %s", userID))
		return
	}

	dbResp, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}

type emailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	// NewPassword is only read by the reset endpoint
	NewPassword string `json:"newPassword"`
}

const otpTTL = 10 * time.Minute

// generateOTP returns a six digit one-time code from the system CSPRNG
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ForgotPasswordHandler generates a one-time code and emails it to the user.
// The response is the same whether or not the account exists.
func (u User) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody emailRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(requestBody.Email))
	if email == "" {
		config.ErrorStatus("email is required", http.StatusBadRequest, w, fmt.Errorf("missing email"))
		return
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"email": email})
	if err == nil {
		otp, err := generateOTP()
		if err != nil {
			config.ErrorStatus("failed to generate one-time code", http.StatusInternalServerError, w, err)
			return
		}
		expires := primitive.NewDateTimeFromTime(time.Now().Add(otpTTL))
		_, err = u.DB.UpdateOne(context.Background(),
			bson.M{"_id": user.ID},
			bson.M{"$set": bson.M{"otp": otp, "otpExpires": expires}},
		)
		if err != nil {
			config.ErrorStatus("failed to store one-time code", http.StatusInternalServerError, w, err)
			return
		}
		if err := SendOTPEmail(user.Email, user.Username, otp); err != nil {
			zap.S().Errorw("failed to send one-time code email",
				"user", user.ID.Hex(),
				"error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "If the account exists, a one-time code has been sent"})
}

// VerifyOTPHandler checks a one-time code without consuming it
func (u User) VerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody emailRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if _, err := u.userForOTP(requestBody); err != nil {
		config.ErrorStatus("invalid or expired code", http.StatusBadRequest, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Code verified"})
}

// ResetPasswordHandler consumes a valid one-time code and sets a new password
func (u User) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody emailRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.NewPassword == "" {
		config.ErrorStatus("newPassword is required", http.StatusBadRequest, w, fmt.Errorf("missing newPassword"))
		return
	}

	user, err := u.userForOTP(requestBody)
	if err != nil {
		config.ErrorStatus("invalid or expired code", http.StatusBadRequest, w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(requestBody.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	_, err = u.DB.UpdateOne(context.Background(),
		bson.M{"_id": user.ID},
		bson.M{
			"$set":   bson.M{"password": string(hash), "updatedAt": primitive.NewDateTimeFromTime(time.Now())},
			"$unset": bson.M{"otp": "", "otpExpires": ""},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to reset password", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Password reset successfully"})
}

func (u User) userForOTP(requestBody emailRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(requestBody.Email))
	if email == "" || requestBody.OTP == "" {
		return nil, fmt.Errorf("email and otp are required")
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"email": email})
	if err != nil {
		return nil, fmt.Errorf("no matching account")
	}
	if user.OTP == "" || user.OTP != requestBody.OTP {
		return nil, fmt.Errorf("code mismatch")
	}
	if expires, ok := user.OTPExpires.(primitive.DateTime); !ok || time.Now().After(expires.Time()) {
		return nil, fmt.Errorf("code expired")
	}
	return user, nil
}
