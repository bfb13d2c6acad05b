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

func TestAdmin_GetUsersHandlerForbidden(t *testing.T) {
	requesterID := primitive.NewObjectID()

	connUser := &mocks.CollectionHelper{}
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(models.User{ID: requesterID, Role: models.RoleVolunteer}))
	db := opportunityFixture(map[string]*mocks.CollectionHelper{"users": connUser})

	admin := handlers.Admin{DB: databases.NewUserDatabase(db), LDB: databases.NewAdminLogDatabase(db)}

	req, _ := http.NewRequest("GET", "/api/v1/admin/users", nil)
	req.Header.Set("X-Auth-User-ID", requesterID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(admin.GetUsersHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}
}

func TestAdmin_ToggleBlockUserHandler(t *testing.T) {
	adminID := primitive.NewObjectID()
	targetID := primitive.NewObjectID()

	connUser := &mocks.CollectionHelper{}
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(models.User{ID: adminID, Role: models.RoleAdmin})).Once()
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(models.User{ID: targetID, Role: models.RoleVolunteer, Status: models.StatusActive})).Once()
	connUser.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	connLog := &mocks.CollectionHelper{}
	connLog.On("InsertOne", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		entry, ok := args.Get(1).(models.AdminLog)
		if !ok {
			t.Fatal("expected a models.AdminLog document")
		}
		if entry.Action != "block_user" {
			t.Errorf("expected block_user audit action, got %v", entry.Action)
		}
		if entry.AdminID != adminID || entry.TargetUserID != targetID {
			t.Error("audit entry does not reference admin and target")
		}
	}).Return(nil, nil)

	db := opportunityFixture(map[string]*mocks.CollectionHelper{
		"users":     connUser,
		"adminlogs": connLog,
	})

	admin := handlers.Admin{DB: databases.NewUserDatabase(db), LDB: databases.NewAdminLogDatabase(db)}

	req, _ := http.NewRequest("PUT", "/api/v1/admin/users/"+targetID.Hex()+"/block", nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": targetID.Hex()})
	req.Header.Set("X-Auth-User-ID", adminID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(admin.ToggleBlockUserHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "Blocked") {
		t.Errorf("handler returned unexpected body: got %v", rr.Body.String())
	}
	connLog.AssertNumberOfCalls(t, "InsertOne", 1)
}

func TestAdmin_ToggleBlockUserHandlerProtectsAdmins(t *testing.T) {
	adminID := primitive.NewObjectID()
	targetID := primitive.NewObjectID()

	connUser := &mocks.CollectionHelper{}
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(models.User{ID: adminID, Role: models.RoleAdmin})).Once()
	connUser.On("FindOne", mock.Anything, mock.Anything).Return(decodeUser(models.User{ID: targetID, Role: models.RoleAdmin})).Once()
	db := opportunityFixture(map[string]*mocks.CollectionHelper{"users": connUser})

	admin := handlers.Admin{DB: databases.NewUserDatabase(db), LDB: databases.NewAdminLogDatabase(db)}

	req, _ := http.NewRequest("PUT", "/api/v1/admin/users/"+targetID.Hex()+"/block", nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": targetID.Hex()})
	req.Header.Set("X-Auth-User-ID", adminID.Hex())

	rr := httptest.NewRecorder()
	http.HandlerFunc(admin.ToggleBlockUserHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}
}
