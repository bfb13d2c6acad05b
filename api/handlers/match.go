package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/volunteerhub/volunteerhub-api/api"
	"github.com/volunteerhub/volunteerhub-api/config"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/matching"
	"github.com/volunteerhub/volunteerhub-api/models"
)

// Match exported for testing purposes
type Match struct {
	DB  databases.OpportunityDatabase
	UDB databases.UserDatabase
}

// MatchVolunteersHandler ranks every volunteer against one opportunity.
// Owner only. Every volunteer appears in the result, sorted by score; the
// caller decides where to cut off.
func (m Match) MatchVolunteersHandler(w http.ResponseWriter, r *http.Request) {
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

	opportunity, err := m.DB.FindOne(context.Background(), notDeleted(bson.M{"_id": oID}))
	if err != nil {
		config.ErrorStatus("failed to get opportunity by ID", http.StatusNotFound, w, err)
		return
	}
	if opportunity.CreatedBy != requesterID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("only the owner can run matching"))
		return
	}

	volunteers, err := m.UDB.Find(context.Background(), bson.M{
		"role":   models.RoleVolunteer,
		"status": bson.M{"$ne": models.StatusBlocked},
	})
	if err != nil {
		config.ErrorStatus("failed to get volunteers", http.StatusInternalServerError, w, err)
		return
	}

	matches := matching.RankVolunteers(volunteers, *opportunity)

	b, err := json.Marshal(map[string]interface{}{
		"opportunityId":    opportunity.ID.Hex(),
		"opportunityTitle": opportunity.Title,
		"matches":          matches,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RecommendationsHandler returns opportunities recommended for a volunteer.
// Unlike ranking, this filters hard: wrong location or zero exact skill
// overlap means the opportunity is not returned at all.
func (m Match) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if requester := api.UserID(r); requester != "" && requester != userID {
		config.ErrorStatus("not authorized", http.StatusForbidden, w, fmt.Errorf("recommendations belong to another user"))
		return
	}

	volunteer, err := m.UDB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	opportunities, err := m.DB.Find(context.Background(), notDeleted(bson.M{}))
	if err != nil {
		config.ErrorStatus("failed to get opportunities", http.StatusInternalServerError, w, err)
		return
	}

	recommendations := matching.RecommendOpportunities(*volunteer, opportunities)

	b, err := json.Marshal(map[string]interface{}{
		"userId":          volunteer.ID.Hex(),
		"recommendations": recommendations,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
