package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/volunteerhub/volunteerhub-api/api/handlers"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/databases/mocks"
	"github.com/volunteerhub/volunteerhub-api/models"
)

// opportunityFixture wires a mock database where each named collection gets
// its own CollectionHelper.
func opportunityFixture(colls map[string]*mocks.CollectionHelper) *MockDatabaseHelper {
	db := &MockDatabaseHelper{}
	for name, conn := range colls {
		db.On("Collection", name).Return(conn)
	}
	return db
}

func decodeOpportunity(opp models.Opportunity) *mocks.SingleResultHelper {
	sr := &mocks.SingleResultHelper{}
	sr.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
		// the wrapper decodes through a pointer to *models.Opportunity
		target := args.Get(0).(**models.Opportunity)
		**target = opp
	}).Return(nil)
	return sr
}

func decodeUser(user models.User) *mocks.SingleResultHelper {
	sr := &mocks.SingleResultHelper{}
	sr.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
		target := args.Get(0).(**models.User)
		**target = user
	}).Return(nil)
	return sr
}

func TestOpportunity_ApplyHandlerAlreadyApplied(t *testing.T) {
	oppID := primitive.NewObjectID()
	volID := primitive.NewObjectID()
	opp := models.Opportunity{ID: oppID, Title: "Beach Cleanup", CreatedBy: primitive.NewObjectID()}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))
	// conditional push matches nothing: the volunteer is already present
	connOpp.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	connUser := &mocks.CollectionHelper{}
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(models.User{ID: volID, Username: "sam"}))

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"opportunities": connOpp,
		"users":         connUser,
	})

	o := handlers.Opportunity{
		DB:       databases.NewOpportunityDatabase(db),
		UDB:      databases.NewUserDatabase(db),
		ADB:      databases.NewApplicationDatabase(db),
		Notifier: &handlers.Notifier{DB: databases.NewNotificationDatabase(db)},
	}

	req, _ := http.NewRequest("POST", "/api/v1/opportunities/"+oppID.Hex()+"/apply", nil)
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", volID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.ApplyHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusConflict)
	}
	if !strings.Contains(rr.Body.String(), "already applied") {
		t.Errorf("handler returned unexpected body: got %v", rr.Body.String())
	}
}

func TestOpportunity_ApplyHandlerSuccess(t *testing.T) {
	oppID := primitive.NewObjectID()
	volID := primitive.NewObjectID()
	ngoID := primitive.NewObjectID()
	opp := models.Opportunity{ID: oppID, Title: "Beach Cleanup", Location: "Goa", CreatedBy: ngoID}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))
	connOpp.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	connUser := &mocks.CollectionHelper{}
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(models.User{ID: volID, Username: "sam"}))

	connApp := &mocks.CollectionHelper{}
	connApp.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	connNotif := &mocks.CollectionHelper{}
	connNotif.On("InsertOne", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		notif, ok := args.Get(1).(models.Notification)
		if !ok {
			t.Fatal("expected a models.Notification document")
		}
		if notif.UserID != ngoID {
			t.Errorf("notification should go to the opportunity owner, got %v", notif.UserID.Hex())
		}
		if notif.Type != models.NotificationApplication {
			t.Errorf("expected application notification, got %v", notif.Type)
		}
	}).Return(nil, nil)

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"opportunities": connOpp,
		"users":         connUser,
		"applications":  connApp,
		"notifications": connNotif,
	})

	o := handlers.Opportunity{
		DB:       databases.NewOpportunityDatabase(db),
		UDB:      databases.NewUserDatabase(db),
		ADB:      databases.NewApplicationDatabase(db),
		Notifier: &handlers.Notifier{DB: databases.NewNotificationDatabase(db)},
	}

	req, _ := http.NewRequest("POST", "/api/v1/opportunities/"+oppID.Hex()+"/apply", nil)
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", volID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.ApplyHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "Application submitted successfully") {
		t.Errorf("handler returned unexpected body: got %v", rr.Body.String())
	}
	connApp.AssertNumberOfCalls(t, "InsertOne", 1)
	connNotif.AssertNumberOfCalls(t, "InsertOne", 1)
}

func TestOpportunity_CreateOpportunityHandlerBroadcastsMatch(t *testing.T) {
	ngoID := primitive.NewObjectID()
	planter := models.User{ID: primitive.NewObjectID(), Username: "asha", Role: models.RoleVolunteer, Location: "Pune", Skills: []string{"Planting"}}
	cook := models.User{ID: primitive.NewObjectID(), Username: "ravi", Role: models.RoleVolunteer, Location: "Delhi", Skills: []string{"Cooking"}}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	cursor := &mocks.CursorHelper{}
	cursor.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
		target := args.Get(0).(*[]models.User)
		*target = []models.User{planter, cook}
	}).Return(nil)
	connUser := &mocks.CollectionHelper{}
	connUser.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)

	connNotif := &mocks.CollectionHelper{}
	connNotif.On("InsertOne", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		notif := args.Get(1).(models.Notification)
		if notif.UserID != planter.ID {
			t.Errorf("notification should go to the matching volunteer, got %v", notif.UserID.Hex())
		}
		if notif.Type != models.NotificationMatch {
			t.Errorf("expected match notification, got %v", notif.Type)
		}
	}).Return(nil, nil)

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"opportunities": connOpp,
		"users":         connUser,
		"notifications": connNotif,
	})

	o := handlers.Opportunity{
		DB:       databases.NewOpportunityDatabase(db),
		UDB:      databases.NewUserDatabase(db),
		ADB:      databases.NewApplicationDatabase(db),
		Notifier: &handlers.Notifier{DB: databases.NewNotificationDatabase(db)},
	}

	body := `{"title":"Tree Planting Drive","description":"Plant saplings along the riverbank","location":"Pune","skills":["Planting"],"date":"2026-09-20"}`
	req, _ := http.NewRequest("POST", "/api/v1/opportunities", strings.NewReader(body))
	req.Header.Set("X-Auth-User-ID", ngoID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.CreateOpportunityHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}
	// only the Pune/Planting volunteer matches
	connNotif.AssertNumberOfCalls(t, "InsertOne", 1)
}

func TestOpportunity_UpdateApplicationStatusHandlerInvalidStatus(t *testing.T) {
	oppID := primitive.NewObjectID()
	db := opportunityFixture(nil)

	o := handlers.Opportunity{DB: databases.NewOpportunityDatabase(db)}

	req, _ := http.NewRequest("PUT", "/api/v1/opportunities/"+oppID.Hex()+"/status",
		strings.NewReader(`{"volunteerId":"`+primitive.NewObjectID().Hex()+`","status":"maybe"}`))
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", primitive.NewObjectID().Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.UpdateApplicationStatusHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}

func TestOpportunity_UpdateApplicationStatusHandlerNotOwner(t *testing.T) {
	oppID := primitive.NewObjectID()
	volID := primitive.NewObjectID()
	opp := models.Opportunity{ID: oppID, CreatedBy: primitive.NewObjectID()}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))
	db := opportunityFixture(map[string]*mocks.CollectionHelper{"opportunities": connOpp})

	o := handlers.Opportunity{DB: databases.NewOpportunityDatabase(db)}

	req, _ := http.NewRequest("PUT", "/api/v1/opportunities/"+oppID.Hex()+"/status",
		strings.NewReader(`{"volunteerId":"`+volID.Hex()+`","status":"accepted"}`))
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", primitive.NewObjectID().Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.UpdateApplicationStatusHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}
}

func TestOpportunity_UpdateApplicationStatusHandlerAlreadyDecided(t *testing.T) {
	oppID := primitive.NewObjectID()
	volID := primitive.NewObjectID()
	ngoID := primitive.NewObjectID()
	opp := models.Opportunity{
		ID:        oppID,
		CreatedBy: ngoID,
		Applications: []models.Application{
			{Volunteer: volID, Status: models.ApplicationAccepted},
		},
	}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))
	db := opportunityFixture(map[string]*mocks.CollectionHelper{"opportunities": connOpp})

	o := handlers.Opportunity{DB: databases.NewOpportunityDatabase(db)}

	req, _ := http.NewRequest("PUT", "/api/v1/opportunities/"+oppID.Hex()+"/status",
		strings.NewReader(`{"volunteerId":"`+volID.Hex()+`","status":"rejected"}`))
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", ngoID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.UpdateApplicationStatusHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusConflict)
	}
	if !strings.Contains(rr.Body.String(), "already decided") {
		t.Errorf("handler returned unexpected body: got %v", rr.Body.String())
	}
}

func TestOpportunity_UpdateApplicationStatusHandlerSuccess(t *testing.T) {
	oppID := primitive.NewObjectID()
	volID := primitive.NewObjectID()
	ngoID := primitive.NewObjectID()
	opp := models.Opportunity{
		ID:        oppID,
		Title:     "Tree Planting",
		CreatedBy: ngoID,
		Applications: []models.Application{
			{Volunteer: volID, Status: models.ApplicationPending},
		},
	}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))
	connOpp.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	connApp := &mocks.CollectionHelper{}
	connApp.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	connNotif := &mocks.CollectionHelper{}
	connNotif.On("InsertOne", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		notif := args.Get(1).(models.Notification)
		if notif.UserID != volID {
			t.Errorf("notification should go to the volunteer, got %v", notif.UserID.Hex())
		}
		if notif.Type != models.NotificationApproval {
			t.Errorf("expected approval notification, got %v", notif.Type)
		}
	}).Return(nil, nil)

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"opportunities": connOpp,
		"applications":  connApp,
		"notifications": connNotif,
	})

	o := handlers.Opportunity{
		DB:       databases.NewOpportunityDatabase(db),
		ADB:      databases.NewApplicationDatabase(db),
		Notifier: &handlers.Notifier{DB: databases.NewNotificationDatabase(db)},
	}

	req, _ := http.NewRequest("PUT", "/api/v1/opportunities/"+oppID.Hex()+"/status",
		strings.NewReader(`{"volunteerId":"`+volID.Hex()+`","status":"accepted"}`))
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", ngoID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.UpdateApplicationStatusHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	connNotif.AssertNumberOfCalls(t, "InsertOne", 1)
}

func TestOpportunity_DeleteOpportunityHandlerCascade(t *testing.T) {
	oppID := primitive.NewObjectID()
	ngoID := primitive.NewObjectID()
	opp := models.Opportunity{
		ID:        oppID,
		Title:     "Food Drive",
		CreatedBy: ngoID,
		Applications: []models.Application{
			{Volunteer: primitive.NewObjectID(), Status: models.ApplicationPending},
			{Volunteer: primitive.NewObjectID(), Status: models.ApplicationPending},
			{Volunteer: primitive.NewObjectID(), Status: models.ApplicationAccepted},
		},
	}

	connOpp := &mocks.CollectionHelper{}
	connOpp.On("FindOne", mock.Anything, mock.Anything).Return(decodeOpportunity(opp))
	connOpp.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	connApp := &mocks.CollectionHelper{}
	connApp.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 2, ModifiedCount: 2}, nil)

	connNotif := &mocks.CollectionHelper{}
	connNotif.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"opportunities": connOpp,
		"applications":  connApp,
		"notifications": connNotif,
	})

	o := handlers.Opportunity{
		DB:       databases.NewOpportunityDatabase(db),
		UDB:      databases.NewUserDatabase(db),
		ADB:      databases.NewApplicationDatabase(db),
		Notifier: &handlers.Notifier{DB: databases.NewNotificationDatabase(db)},
	}

	req, _ := http.NewRequest("DELETE", "/api/v1/opportunities/"+oppID.Hex(), nil)
	req = mux.SetURLVars(req, map[string]string{"opportunity_id": oppID.Hex()})
	req.Header.Set("X-Auth-User-ID", ngoID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(o.DeleteOpportunityHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	// every applicant gets a cancellation notification
	connNotif.AssertNumberOfCalls(t, "InsertOne", 3)
}
