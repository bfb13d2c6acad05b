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
	"github.com/volunteerhub/volunteerhub-api/matching"
	"github.com/volunteerhub/volunteerhub-api/models"
)

// Opportunity exported for testing purposes
type Opportunity struct {
	DB       databases.OpportunityDatabase
	UDB      databases.UserDatabase
	ADB      databases.ApplicationDatabase
	Notifier *Notifier
}

type opportunityRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	Duration    string   `json:"duration"`
	Location    string   `json:"location"`
	Date        string   `json:"date"`
}

func parseOpportunityDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// notDeleted excludes soft-deleted opportunities from reads.
func notDeleted(filter bson.M) bson.M {
	filter["deleted"] = bson.M{"$ne": true}
	return filter
}

// CreateOpportunityHandler creates a new opportunity and runs the broadcast
// match pass: every active volunteer that coarsely matches the new
// opportunity gets a match notification.
func (o Opportunity) CreateOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterObjectID(w, r)
	if !ok {
		return
	}

	var requestBody opportunityRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Title == "" || requestBody.Description == "" || requestBody.Location == "" || requestBody.Date == "" {
		config.ErrorStatus("title, description, location and date are required", http.StatusBadRequest, w, fmt.Errorf("missing required field"))
		return
	}
	date, err := parseOpportunityDate(requestBody.Date)
	if err != nil {
		config.ErrorStatus("failed to parse date", http.StatusBadRequest, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	skills := requestBody.Skills
	if skills == nil {
		skills = []string{}
	}
	opportunity := models.Opportunity{
		ID:           primitive.NewObjectID(),
		Title:        requestBody.Title,
		Description:  requestBody.Description,
		Skills:       skills,
		Duration:     requestBody.Duration,
		Location:     requestBody.Location,
		Date:         primitive.NewDateTimeFromTime(date),
		CreatedBy:    requesterID,
		Applications: []models.Application{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := o.DB.InsertOne(context.Background(), opportunity); err != nil {
		config.ErrorStatus("failed to create opportunity", http.StatusInternalServerError, w, err)
		return
	}

	o.broadcastMatches(context.Background(), opportunity)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(opportunity)
}

// broadcastMatches fans out one match notification per coarsely matching
// volunteer. Volunteers are fetched once and filtered in memory. Failures
// are logged and never fail the creating request.
func (o Opportunity) broadcastMatches(ctx context.Context, opportunity models.Opportunity) {
	volunteers, err := o.UDB.Find(ctx, bson.M{
		"role":   models.RoleVolunteer,
		"status": bson.M{"$ne": models.StatusBlocked},
	})
	if err != nil {
		zap.S().Errorw("broadcast match pass failed to load volunteers",
			"opportunity", opportunity.ID.Hex(),
			"error", err)
		return
	}

	notified := 0
	for _, volunteer := range volunteers {
		if !matching.BroadcastEligible(volunteer, opportunity) {
			continue
		}
		message := fmt.Sprintf("New opportunity in %s: %s", opportunity.Location, opportunity.Title)
		_, err := o.Notifier.Notify(ctx, volunteer.ID, models.NotificationMatch, message, models.NotificationData{
			OpportunityID: &opportunity.ID,
			NgoID:         &opportunity.CreatedBy,
		})
		if err != nil {
			zap.S().Errorw("failed to create match notification",
				"volunteer", volunteer.ID.Hex(),
				"opportunity", opportunity.ID.Hex(),
				"error", err)
			continue
		}
		notified++
	}
	zap.S().Infow("broadcast match pass complete",
		"opportunity", opportunity.ID.Hex(),
		"volunteers", len(volunteers),
		"notified", notified)
}

// OpportunityHandler returns all opportunities, newest first
func (o Opportunity) OpportunityHandler(w http.ResponseWriter, r *http.Request) {
	limit := getLimit(r, 50)
	page := getPage(r)

	opts := databases.NewMongoPaginate(limit, page).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	dbResp, err := o.DB.Find(context.TODO(), notDeleted(bson.M{}), opts)
	if err != nil {
		config.ErrorStatus("failed to get opportunities", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Opportunity{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// OpportunityByIDHandler returns an opportunity by ID
func (o Opportunity) OpportunityByIDHandler(w http.ResponseWriter, r *http.Request) {
	oppID := mux.Vars(r)["opportunity_id"]

	oID, err := primitive.ObjectIDFromHex(oppID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := o.DB.FindOne(context.Background(), notDeleted(bson.M{"_id": oID}))
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusNotFound, w, err)
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

// UpdateOpportunityHandler updates an opportunity's fields; owner only
func (o Opportunity) UpdateOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	oppID := mux.Vars(r)["opportunity_id"]
	requesterID, ok := requesterObjectID(w, r)
	if !ok {
		return
	}

	oID, err := primitive.ObjectIDFromHex(oppID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	opportunity, err := o.DB.FindOne(context.Background(), notDeleted(bson.M{"_id": oID}))
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusNotFound, w, err)
		return
	}
	if opportunity.CreatedBy != requesterID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("only the owner can update an opportunity"))
		return
	}

	var requestBody opportunityRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	update := bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	if requestBody.Title != "" {
		update["title"] = requestBody.Title
	}
	if requestBody.Description != "" {
		update["description"] = requestBody.Description
	}
	if requestBody.Skills != nil {
		update["skills"] = requestBody.Skills
	}
	if requestBody.Duration != "" {
		update["duration"] = requestBody.Duration
	}
	if requestBody.Location != "" {
		update["location"] = requestBody.Location
	}
	if requestBody.Date != "" {
		date, err := parseOpportunityDate(requestBody.Date)
		if err != nil {
			config.ErrorStatus("failed to parse date", http.StatusBadRequest, w, err)
			return
		}
		update["date"] = primitive.NewDateTimeFromTime(date)
	}

	if _, err := o.DB.UpdateOne(context.Background(), bson.M{"_id": oID}, bson.M{"$set": update}); err != nil {
		config.ErrorStatus("failed to update opportunity", http.StatusInternalServerError, w, err)
		return
	}

	updated, err := o.DB.FindOne(context.Background(), bson.M{"_id": oID})
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(updated)
}

// DeleteOpportunityHandler soft-deletes an opportunity and notifies every
// applicant that it was cancelled. Owner or admin only.
func (o Opportunity) DeleteOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	oppID := mux.Vars(r)["opportunity_id"]
	requesterID, ok := requesterObjectID(w, r)
	if !ok {
		return
	}

	oID, err := primitive.ObjectIDFromHex(oppID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	opportunity, err := o.DB.FindOne(context.Background(), notDeleted(bson.M{"_id": oID}))
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusNotFound, w, err)
		return
	}

	if opportunity.CreatedBy != requesterID {
		requester, err := o.UDB.FindOne(context.Background(), bson.M{"_id": requesterID})
		if err != nil || requester.Role != models.RoleAdmin {
			config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("only the owner or an admin can delete an opportunity"))
			return
		}
	}

	_, err = o.DB.UpdateOne(context.Background(), bson.M{"_id": oID}, bson.M{"$set": bson.M{
		"deleted":   true,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to delete opportunity", http.StatusInternalServerError, w, err)
		return
	}

	// best-effort projection update; the embedded array is authoritative
	if _, err := o.ADB.UpdateMany(context.Background(),
		bson.M{"opportunityId": oID},
		bson.M{"$set": bson.M{"status": models.ApplicationRejected, "updatedAt": primitive.NewDateTimeFromTime(time.Now())}},
	); err != nil {
		zap.S().Warnw("failed to update applications projection after delete",
			"opportunity", oID.Hex(),
			"error", err)
	}

	for _, application := range opportunity.Applications {
		message := fmt.Sprintf("The opportunity %q has been cancelled", opportunity.Title)
		_, err := o.Notifier.Notify(context.Background(), application.Volunteer, models.NotificationRejection, message, models.NotificationData{
			OpportunityID: &opportunity.ID,
			NgoID:         &opportunity.CreatedBy,
			Action:        "opportunity_deleted",
		})
		if err != nil {
			zap.S().Errorw("failed to notify applicant of deletion",
				"volunteer", application.Volunteer.Hex(),
				"opportunity", oID.Hex(),
				"error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "opportunity deleted successfully"})
}

// ApplyHandler submits an application for the requesting volunteer. The
// duplicate check and the append happen in one conditional update, so two
// concurrent applies cannot both insert.
func (o Opportunity) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	oppID := mux.Vars(r)["opportunity_id"]
	requesterID, ok := requesterObjectID(w, r)
	if !ok {
		return
	}

	oID, err := primitive.ObjectIDFromHex(oppID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	opportunity, err := o.DB.FindOne(context.Background(), notDeleted(bson.M{"_id": oID}))
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusNotFound, w, err)
		return
	}

	volunteer, err := o.UDB.FindOne(context.Background(), bson.M{"_id": requesterID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	application := models.Application{
		Volunteer: requesterID,
		Status:    models.ApplicationPending,
		AppliedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	// single conditional update: matches only when the volunteer is not
	// already in the applications array
	res, err := o.DB.UpdateOne(context.Background(),
		bson.M{
			"_id":                    oID,
			"deleted":                bson.M{"$ne": true},
			"applications.volunteer": bson.M{"$ne": requesterID},
		},
		bson.M{
			"$push": bson.M{"applications": application},
			"$set":  bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to submit application", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("you have already applied for this opportunity", http.StatusConflict, w, fmt.Errorf("duplicate application for opportunity %s", oppID))
		return
	}

	// best-effort reporting projection
	record := models.ApplicationRecord{
		ID:            primitive.NewObjectID(),
		OpportunityID: oID,
		VolunteerID:   requesterID,
		EventTitle:    opportunity.Title,
		EventLocation: opportunity.Location,
		Status:        models.ApplicationPending,
		AppliedAt:     application.AppliedAt,
		UpdatedAt:     application.AppliedAt,
	}
	if _, err := o.ADB.InsertOne(context.Background(), record); err != nil {
		zap.S().Warnw("failed to write applications projection",
			"opportunity", oID.Hex(),
			"volunteer", requesterID.Hex(),
			"error", err)
	}

	message := fmt.Sprintf("%s applied for %q", volunteer.Username, opportunity.Title)
	_, err = o.Notifier.Notify(context.Background(), opportunity.CreatedBy, models.NotificationApplication, message, models.NotificationData{
		OpportunityID: &opportunity.ID,
		VolunteerID:   &requesterID,
	})
	if err != nil {
		zap.S().Errorw("failed to notify opportunity owner of application",
			"opportunity", oID.Hex(),
			"error", err)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Application submitted successfully"})
}

type statusUpdateRequest struct {
	VolunteerID string `json:"volunteerId"`
	Status      string `json:"status"`
}

// UpdateApplicationStatusHandler accepts or rejects an application. Owner
// only. Accepted and rejected are terminal; re-deciding a decided
// application is a conflict.
func (o Opportunity) UpdateApplicationStatusHandler(w http.ResponseWriter, r *http.Request) {
	oppID := mux.Vars(r)["opportunity_id"]
	requesterID, ok := requesterObjectID(w, r)
	if !ok {
		return
	}

	var requestBody statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Status != models.ApplicationAccepted && requestBody.Status != models.ApplicationRejected {
		config.ErrorStatus("status must be accepted or rejected", http.StatusBadRequest, w, fmt.Errorf("invalid status %q", requestBody.Status))
		return
	}

	oID, err := primitive.ObjectIDFromHex(oppID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	volunteerID, err := primitive.ObjectIDFromHex(requestBody.VolunteerID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	opportunity, err := o.DB.FindOne(context.Background(), notDeleted(bson.M{"_id": oID}))
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusNotFound, w, err)
		return
	}
	if opportunity.CreatedBy != requesterID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("only the owner can update application status"))
		return
	}

	application := opportunity.ApplicationFor(volunteerID)
	if application == nil {
		config.ErrorStatus("application not found", http.StatusNotFound, w, fmt.Errorf("no application from volunteer %s", requestBody.VolunteerID))
		return
	}
	if application.Status != models.ApplicationPending {
		config.ErrorStatus("application already decided", http.StatusConflict, w, fmt.Errorf("application is already %s", application.Status))
		return
	}

	// only transitions out of pending; a concurrent decision loses here
	res, err := o.DB.UpdateOne(context.Background(),
		bson.M{
			"_id": oID,
			"applications": bson.M{"$elemMatch": bson.M{
				"volunteer": volunteerID,
				"status":    models.ApplicationPending,
			}},
		},
		bson.M{"$set": bson.M{
			"applications.$.status": requestBody.Status,
			"updatedAt":             primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		config.ErrorStatus("failed to update application status", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("application already decided", http.StatusConflict, w, fmt.Errorf("application is no longer pending"))
		return
	}

	// best-effort reporting projection
	if _, err := o.ADB.UpdateOne(context.Background(),
		bson.M{"opportunityId": oID, "volunteerId": volunteerID},
		bson.M{"$set": bson.M{"status": requestBody.Status, "updatedAt": primitive.NewDateTimeFromTime(time.Now())}},
	); err != nil {
		zap.S().Warnw("failed to update applications projection",
			"opportunity", oID.Hex(),
			"volunteer", volunteerID.Hex(),
			"error", err)
	}

	notifType := models.NotificationApproval
	if requestBody.Status == models.ApplicationRejected {
		notifType = models.NotificationRejection
	}
	message := fmt.Sprintf("Your application for %q was %s", opportunity.Title, requestBody.Status)
	_, err = o.Notifier.Notify(context.Background(), volunteerID, notifType, message, models.NotificationData{
		OpportunityID: &opportunity.ID,
		NgoID:         &opportunity.CreatedBy,
		Action:        requestBody.Status,
	})
	if err != nil {
		zap.S().Errorw("failed to notify volunteer of status update",
			"opportunity", oID.Hex(),
			"volunteer", volunteerID.Hex(),
			"error", err)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": fmt.Sprintf("Application %s successfully", requestBody.Status)})
}
