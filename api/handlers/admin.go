package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/volunteerhub/volunteerhub-api/config"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/models"
)

// Admin exported for testing purposes
type Admin struct {
	DB  databases.UserDatabase
	LDB databases.AdminLogDatabase
}

// requireAdmin loads the requester and checks the admin role, writing the
// error response itself when the check fails.
func (a Admin) requireAdmin(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	requesterID, ok := requesterObjectID(w, r)
	if !ok {
		return nil, false
	}
	requester, err := a.DB.FindOne(context.Background(), bson.M{"_id": requesterID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return nil, false
	}
	if requester.Role != models.RoleAdmin {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("admin role required"))
		return nil, false
	}
	return requester, true
}

// GetUsersHandler returns all users, optionally filtered by role
func (a Admin) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	filter := bson.M{}
	if role := r.URL.Query().Get("role"); role != "" {
		filter["role"] = role
	}

	limit := getLimit(r, 100)
	page := getPage(r)
	opts := databases.NewMongoPaginate(limit, page).SetSort(bson.D{{Key: "createdAt", Value: -1}})

	users, err := a.DB.Find(context.Background(), filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get users", http.StatusInternalServerError, w, err)
		return
	}
	if len(users) == 0 {
		users = []models.User{}
	}

	b, err := json.Marshal(users)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ToggleBlockUserHandler flips a user between Active and Blocked and records
// the action in the audit log
func (a Admin) ToggleBlockUserHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	userID := mux.Vars(r)["user_id"]
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	user, err := a.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}
	if user.Role == models.RoleAdmin {
		config.ErrorStatus("cannot block an admin account", http.StatusForbidden, w, fmt.Errorf("target user is an admin"))
		return
	}

	newStatus := models.StatusBlocked
	action := "block_user"
	message := "user blocked successfully"
	if user.Status == models.StatusBlocked {
		newStatus = models.StatusActive
		action = "unblock_user"
		message = "user unblocked successfully"
	}

	_, err = a.DB.UpdateOne(context.Background(),
		bson.M{"_id": uID},
		bson.M{"$set": bson.M{"status": newStatus, "updatedAt": primitive.NewDateTimeFromTime(time.Now())}},
	)
	if err != nil {
		config.ErrorStatus("failed to update user status", http.StatusInternalServerError, w, err)
		return
	}

	logEntry := models.AdminLog{
		ID:           primitive.NewObjectID(),
		AdminID:      admin.ID,
		Action:       action,
		TargetUserID: uID,
		CreatedAt:    primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := a.LDB.InsertOne(context.Background(), logEntry); err != nil {
		zap.S().Errorw("failed to write admin audit log",
			"admin", admin.ID.Hex(),
			"action", action,
			"error", err)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
		"status":  newStatus,
	})
}

// GetLogsHandler returns the admin audit log, newest first
func (a Admin) GetLogsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	limit := getLimit(r, 100)
	page := getPage(r)
	opts := databases.NewMongoPaginate(limit, page).SetSort(bson.D{{Key: "createdAt", Value: -1}})

	logs, err := a.LDB.Find(context.Background(), bson.M{}, opts)
	if err != nil {
		config.ErrorStatus("failed to get admin logs", http.StatusInternalServerError, w, err)
		return
	}
	if len(logs) == 0 {
		logs = []models.AdminLog{}
	}

	b, err := json.Marshal(logs)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// GetReportsHandler returns user counts grouped by role
func (a Admin) GetReportsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   "$role",
			"count": bson.M{"$sum": 1},
		}},
	}
	cursor, err := a.DB.Aggregate(context.Background(), pipeline)
	if err != nil {
		config.ErrorStatus("failed to aggregate users", http.StatusInternalServerError, w, err)
		return
	}

	var byRole []struct {
		Role  string `bson:"_id" json:"role"`
		Count int64  `bson:"count" json:"count"`
	}
	if err := cursor.Decode(&byRole); err != nil {
		config.ErrorStatus("failed to decode aggregation", http.StatusInternalServerError, w, err)
		return
	}

	blocked, err := a.DB.CountDocuments(context.Background(), bson.M{"status": models.StatusBlocked})
	if err != nil {
		config.ErrorStatus("failed to count blocked users", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]interface{}{
		"usersByRole":  byRole,
		"blockedUsers": blocked,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
