package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/volunteerhub/volunteerhub-api/api/handlers"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/databases/mocks"
	"github.com/volunteerhub/volunteerhub-api/matching"
	"github.com/volunteerhub/volunteerhub-api/models"
)

func TestMatch_MatchVolunteersHandlerRanksEveryone(t *testing.T) {
	oppID := primitive.NewObjectID()
	ngoID := primitive.NewObjectID()
	opp := models.Opportunity{
		ID:        oppID,
		Title:     "Community Garden",
		Location:  "Pune",
		Skills:    []string{"gardening"},
		CreatedBy: ngoID,
	}

	strong := models.User{ID: primitive.NewObjectID(), Username: "asha", Location: "Pune", Skills: []string{"gardening"}}
	weak := models.User{ID: primitive.NewObjectID(), Username: "ravi", Location: "Delhi", Skills: []string{"cooking"}}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))

	cursor := &mocks.CursorHelper{}
	cursor.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
		target := args.Get(0).(*[]models.User)
		*target = []models.User{weak, strong}
	}).Return(nil)
	connUser := &mocks.CollectionHelper{}
	connUser.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"opportunities": connOpp,
		"users":         connUser,
	})

	m := handlers.Match{DB: databases.NewOpportunityDatabase(db), UDB: databases.NewUserDatabase(db)}

	req, _ := http.NewRequest("POST", "/api/v1/opportunities/"+oppID.Hex()+"/match", nil)
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", ngoID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(m.MatchVolunteersHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var resp struct {
		OpportunityTitle string                    `json:"opportunityTitle"`
		Matches          []matching.VolunteerMatch `json:"matches"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Matches) != 2 {
		t.Fatalf("every volunteer should be ranked, got %d matches", len(resp.Matches))
	}
	if resp.Matches[0].Username != "asha" {
		t.Errorf("expected the stronger match first, got %v", resp.Matches[0].Username)
	}
	if resp.Matches[0].MatchScore <= resp.Matches[1].MatchScore {
		t.Errorf("matches are not sorted by score: %d then %d", resp.Matches[0].MatchScore, resp.Matches[1].MatchScore)
	}
}

func TestMatch_MatchVolunteersHandlerNotOwner(t *testing.T) {
	oppID := primitive.NewObjectID()
	opp := models.Opportunity{ID: oppID, CreatedBy: primitive.NewObjectID()}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))
	db := opportunityFixture(map[string]*mocks.CollectionHelper{"opportunities": connOpp})

	m := handlers.Match{DB: databases.NewOpportunityDatabase(db), UDB: databases.NewUserDatabase(db)}

	req, _ := http.NewRequest("POST", "/api/v1/opportunities/"+oppID.Hex()+"/match", nil)
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", primitive.NewObjectID().Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(m.MatchVolunteersHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}
}

func TestMatch_RecommendationsHandlerFiltersStrictly(t *testing.T) {
	volID := primitive.NewObjectID()
	volunteer := models.User{ID: volID, Username: "asha", Location: "Pune", Skills: []string{"teaching"}}

	qualifying := models.Opportunity{ID: primitive.NewObjectID(), Title: "Tutoring", Location: "pune", Skills: []string{"Teaching"}}
	wrongCity := models.Opportunity{ID: primitive.NewObjectID(), Title: "Cleanup", Location: "Goa", Skills: []string{"teaching"}}
	noSkillOverlap := models.Opportunity{ID: primitive.NewObjectID(), Title: "Cooking Camp", Location: "Pune", Skills: []string{"cooking"}}

	connUser := &mocks.CollectionHelper{}
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(volunteer))

	cursor := &mocks.CursorHelper{}
	cursor.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
		target := args.Get(0).(*[]models.Opportunity)
		*target = []models.Opportunity{qualifying, wrongCity, noSkillOverlap}
	}).Return(nil)
	connOpp := &mocks.CollectionHelper{}
	connOpp.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"opportunities": connOpp,
		"users":         connUser,
	})

	m := handlers.Match{DB: databases.NewOpportunityDatabase(db), UDB: databases.NewUserDatabase(db)}

	req, _ := http.NewRequest("GET", "/api/v1/match/"+volID.Hex(), nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": volID.Hex()})
	req.Header.Set("X-Auth-User-ID", volID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(m.RecommendationsHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var resp struct {
		Recommendations []matching.OpportunityMatch `json:"recommendations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) != 1 {
		t.Fatalf("only the qualifying opportunity should be recommended, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].Opportunity.Title != "Tutoring" {
		t.Errorf("unexpected recommendation: %v", resp.Recommendations[0].Opportunity.Title)
	}
	// one common skill: 1*50 + 30
	if resp.Recommendations[0].MatchScore != 80 {
		t.Errorf("expected score 80, got %d", resp.Recommendations[0].MatchScore)
	}
}

func TestMatch_RecommendationsHandlerForbidden(t *testing.T) {
	volID := primitive.NewObjectID()
	db := opportunityFixture(nil)
	m := handlers.Match{DB: databases.NewOpportunityDatabase(db), UDB: databases.NewUserDatabase(db)}

	req, _ := http.NewRequest("GET", "/api/v1/match/"+volID.Hex(), nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": volID.Hex()})
	req.Header.Set("X-Auth-User-ID", primitive.NewObjectID().Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(m.RecommendationsHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}
}
