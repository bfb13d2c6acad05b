package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/volunteerhub/volunteerhub-api/api"
	"github.com/volunteerhub/volunteerhub-api/config"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/models"
)

// ApplicationHandler reads the flat applications collection. That collection
// is a reporting projection; the embedded array on each opportunity remains
// the authoritative record.
type ApplicationHandler struct {
	DB  databases.ApplicationDatabase
	ODB databases.OpportunityDatabase
}

// ApplicationsByVolunteerHandler returns a volunteer's application history
func (a ApplicationHandler) ApplicationsByVolunteerHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if requester := api.UserID(r); requester != "" && requester != userID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("applications belong to another user"))
		return
	}

	opts := options.Find().SetSort(bson.D{{Key: "appliedAt", Value: -1}})
	applications, err := a.DB.Find(context.Background(), bson.M{"volunteerId": uID}, opts)
	if err != nil {
		config.ErrorStatus("failed to get applications", http.StatusInternalServerError, w, err)
		return
	}
	if len(applications) == 0 {
		applications = []models.ApplicationRecord{}
	}

	b, err := json.Marshal(applications)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ApplicationsByOpportunityHandler returns all applications for an
// opportunity, read from the authoritative embedded array. Owner only.
func (a ApplicationHandler) ApplicationsByOpportunityHandler(w http.ResponseWriter, r *http.Request) {
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

	opportunity, err := a.ODB.FindOne(context.Background(), notDeleted(bson.M{"_id": oID}))
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusNotFound, w, err)
		return
	}
	if opportunity.CreatedBy != requesterID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("only the owner can list applications"))
		return
	}

	applications := opportunity.Applications
	if applications == nil {
		applications = []models.Application{}
	}

	b, err := json.Marshal(map[string]interface{}{
		"opportunityId": opportunity.ID.Hex(),
		"applications":  applications,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
