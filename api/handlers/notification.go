package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/volunteerhub/volunteerhub-api/api"
	"github.com/volunteerhub/volunteerhub-api/config"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotificationHub tracks connected users (userId -> *websocket.Conn). Each
// user id is a room with at most one live connection.
type NotificationHub struct {
	clients map[string]*websocket.Conn
	mu      sync.Mutex
}

// NewNotificationHub creates an empty hub
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{clients: make(map[string]*websocket.Conn)}
}

// Register attaches a connection to a user's room, replacing any previous one
func (h *NotificationHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	if old, ok := h.clients[userID]; ok {
		old.Close()
	}
	h.clients[userID] = conn
	h.mu.Unlock()
}

// Unregister drops the connection for a user's room
func (h *NotificationHub) Unregister(userID string) {
	h.mu.Lock()
	delete(h.clients, userID)
	h.mu.Unlock()
}

// Send emits an event to a user's room. Returns false when the user has no
// live connection; delivery is best-effort and the caller's persisted record
// is the durable trace.
func (h *NotificationHub) Send(userID string, event string, payload interface{}) bool {
	// the lock is held across the write: gorilla/websocket allows only one
	// concurrent writer per connection
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, exists := h.clients[userID]
	if !exists {
		return false
	}
	err := conn.WriteJSON(map[string]interface{}{
		"event": event,
		"data":  payload,
	})
	if err != nil {
		zap.S().Warnw("failed to send notification over websocket",
			"user", userID,
			"error", err)
		delete(h.clients, userID)
		conn.Close()
		return false
	}
	return true
}

// Notifier persists notifications and pushes them to the recipient's room.
// It is injected into the handlers that fan out events; there is no ambient
// singleton. The record is always persisted before the emit, and an emit
// failure never fails the triggering write.
type Notifier struct {
	DB  databases.NotificationDatabase
	Hub *NotificationHub
}

// Notify persists one notification and then emits it to the recipient
func (n *Notifier) Notify(ctx context.Context, userID primitive.ObjectID, notifType, message string, data models.NotificationData) (*models.Notification, error) {
	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Type:      notifType,
		Message:   message,
		IsRead:    false,
		Data:      data,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := n.DB.InsertOne(ctx, notification); err != nil {
		return nil, err
	}
	if n.Hub != nil {
		if !n.Hub.Send(userID.Hex(), eventForType(notifType), notification) {
			zap.S().Debugw("recipient offline, notification persisted only",
				"user", userID.Hex(),
				"type", notifType)
		}
	}
	return &notification, nil
}

func eventForType(notifType string) string {
	switch notifType {
	case models.NotificationApplication:
		return "new_application"
	case models.NotificationApproval, models.NotificationRejection:
		return "application_status_update"
	default:
		return "new_notification"
	}
}

// Notification exported for testing purposes
type Notification struct {
	DB  databases.NotificationDatabase
	Hub *NotificationHub
}

// HandleNotificationsWebSocket upgrades the connection and joins the user's room
func (n Notification) HandleNotificationsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().With(err).Error("websocket upgrade error")
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		conn.Close()
		return
	}

	n.Hub.Register(userID, conn)
	zap.S().Debugw("user connected to /ws/notifications", "user", userID)

	conn.SetCloseHandler(func(code int, text string) error {
		n.Hub.Unregister(userID)
		zap.S().Debugw("user disconnected from /ws/notifications", "user", userID)
		return nil
	})

	// keep the connection alive; clients only receive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			n.Hub.Unregister(userID)
			conn.Close()
			break
		}
	}
}

// GetNotificationsHandler returns the newest 50 notifications for a user
// along with the unread count
func (n Notification) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if requester := api.UserID(r); requester != "" && requester != userID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("notifications belong to another user"))
		return
	}

	limit := int64(50)
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	notifications, err := n.DB.Find(context.TODO(), bson.M{"userId": uID}, opts)
	if err != nil {
		config.ErrorStatus("failed to get notifications", http.StatusInternalServerError, w, err)
		return
	}
	if len(notifications) == 0 {
		notifications = []models.Notification{}
	}

	unread, err := n.DB.CountDocuments(context.TODO(), bson.M{"userId": uID, "isRead": false})
	if err != nil {
		config.ErrorStatus("failed to count unread notifications", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]interface{}{
		"notifications": notifications,
		"unreadCount":   unread,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UnreadCountHandler returns the number of unread notifications for a user
func (n Notification) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	count, err := n.DB.CountDocuments(context.TODO(), bson.M{"userId": uID, "isRead": false})
	if err != nil {
		config.ErrorStatus("failed to count unread notifications", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int64{"count": count})
}

// MarkNotificationReadHandler marks one notification as read. The filter
// includes the owner, so marking another user's notification is a not-found.
func (n Notification) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["user_id"]
	notificationID := vars["notification_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	nID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	res, err := n.DB.UpdateOne(context.TODO(),
		bson.M{"_id": nID, "userId": uID},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		config.ErrorStatus("failed to mark notification as read", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("notification not found", http.StatusNotFound, w, fmt.Errorf("no notification %s for user %s", notificationID, userID))
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "notification marked as read"})
}

// MarkAllReadHandler marks every unread notification for a user as read
func (n Notification) MarkAllReadHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	res, err := n.DB.UpdateMany(context.TODO(),
		bson.M{"userId": uID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		config.ErrorStatus("failed to mark notifications as read", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":       "all notifications marked as read",
		"modifiedCount": res.ModifiedCount,
	})
}

// DeleteNotificationHandler deletes one notification owned by the user
func (n Notification) DeleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["user_id"]
	notificationID := vars["notification_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	nID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	deleted, err := n.DB.DeleteOne(context.TODO(), bson.M{"_id": nID, "userId": uID})
	if err != nil {
		config.ErrorStatus("failed to delete notification", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("notification not found", http.StatusNotFound, w, fmt.Errorf("no notification %s for user %s", notificationID, userID))
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "notification deleted"})
}
