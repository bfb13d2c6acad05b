package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/volunteerhub/volunteerhub-api/api"
	"github.com/volunteerhub/volunteerhub-api/config"
)

// requesterObjectID resolves the authenticated user id to an ObjectID,
// writing the error response itself when that fails.
func requesterObjectID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	requester := api.UserID(r)
	if requester == "" {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, fmt.Errorf("missing authenticated user"))
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(requester)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func getLimit(r *http.Request, fallback int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func getPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		return 1
	}
	return page
}
