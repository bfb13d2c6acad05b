package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/volunteerhub/volunteerhub-api/api"
	"github.com/volunteerhub/volunteerhub-api/config"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Hub      *NotificationHub
	Notifier *Notifier
	dbHelper databases.DatabaseHelper
}

// DBHelper exposes the database connection so main can wire the scheduler
func (a *App) DBHelper() databases.DatabaseHelper {
	return a.dbHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	a.Hub = NewNotificationHub()
	a.Notifier = &Notifier{DB: databases.NewNotificationDatabase(a.dbHelper), Hub: a.Hub}

	u := User{DB: databases.NewUserDatabase(a.dbHelper)}
	o := Opportunity{
		DB:       databases.NewOpportunityDatabase(a.dbHelper),
		UDB:      databases.NewUserDatabase(a.dbHelper),
		ADB:      databases.NewApplicationDatabase(a.dbHelper),
		Notifier: a.Notifier,
	}
	match := Match{DB: databases.NewOpportunityDatabase(a.dbHelper), UDB: databases.NewUserDatabase(a.dbHelper)}
	app := ApplicationHandler{DB: databases.NewApplicationDatabase(a.dbHelper), ODB: databases.NewOpportunityDatabase(a.dbHelper)}
	n := Notification{DB: databases.NewNotificationDatabase(a.dbHelper), Hub: a.Hub}
	admin := Admin{DB: databases.NewUserDatabase(a.dbHelper), LDB: databases.NewAdminLogDatabase(a.dbHelper)}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// websocket endpoint sits outside the /api/v1 prefix
	r.HandleFunc("/ws/notifications", n.HandleNotificationsWebSocket)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/register", http.HandlerFunc(u.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/user/forgot-password", http.HandlerFunc(u.ForgotPasswordHandler)).Methods("POST")
	apiCreate.Handle("/user/verify-otp", http.HandlerFunc(u.VerifyOTPHandler)).Methods("POST")
	apiCreate.Handle("/user/reset-password", http.HandlerFunc(u.ResetPasswordHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UpdateUserHandler))).Methods("PUT")

	apiCreate.Handle("/opportunities", api.Middleware(http.HandlerFunc(o.CreateOpportunityHandler))).Methods("POST")
	apiCreate.Handle("/opportunities", api.Middleware(http.HandlerFunc(o.OpportunityHandler))).Methods("GET")
	apiCreate.Handle("/opportunities/{opportunity_id}", api.Middleware(http.HandlerFunc(o.OpportunityByIDHandler))).Methods("GET")
	apiCreate.Handle("/opportunities/{opportunity_id}", api.Middleware(http.HandlerFunc(o.UpdateOpportunityHandler))).Methods("PUT")
	apiCreate.Handle("/opportunities/{opportunity_id}", api.Middleware(http.HandlerFunc(o.DeleteOpportunityHandler))).Methods("DELETE")
	apiCreate.Handle("/opportunities/{opportunity_id}/apply", api.Middleware(http.HandlerFunc(o.ApplyHandler))).Methods("POST")
	apiCreate.Handle("/opportunities/{opportunity_id}/status", api.Middleware(http.HandlerFunc(o.UpdateApplicationStatusHandler))).Methods("PUT")
	apiCreate.Handle("/opportunities/{opportunity_id}/match", api.Middleware(http.HandlerFunc(match.MatchVolunteersHandler))).Methods("POST")
	apiCreate.Handle("/opportunities/{opportunity_id}/applications", api.Middleware(http.HandlerFunc(app.ApplicationsByOpportunityHandler))).Methods("GET")

	apiCreate.Handle("/match/{user_id}", api.Middleware(http.HandlerFunc(match.RecommendationsHandler))).Methods("GET")
	apiCreate.Handle("/applications/user/{user_id}", api.Middleware(http.HandlerFunc(app.ApplicationsByVolunteerHandler))).Methods("GET")

	apiCreate.Handle("/users/{user_id}/notifications", api.Middleware(http.HandlerFunc(n.GetNotificationsHandler))).Methods("GET")
	apiCreate.Handle("/users/{user_id}/notifications/unread-count", api.Middleware(http.HandlerFunc(n.UnreadCountHandler))).Methods("GET")
	apiCreate.Handle("/users/{user_id}/notifications/read-all", api.Middleware(http.HandlerFunc(n.MarkAllReadHandler))).Methods("PUT")
	apiCreate.Handle("/users/{user_id}/notifications/{notification_id}/read", api.Middleware(http.HandlerFunc(n.MarkNotificationReadHandler))).Methods("PUT")
	apiCreate.Handle("/users/{user_id}/notifications/{notification_id}", api.Middleware(http.HandlerFunc(n.DeleteNotificationHandler))).Methods("DELETE")

	apiCreate.Handle("/admin/users", api.Middleware(http.HandlerFunc(admin.GetUsersHandler))).Methods("GET")
	apiCreate.Handle("/admin/users/{user_id}/block", api.Middleware(http.HandlerFunc(admin.ToggleBlockUserHandler))).Methods("PUT")
	apiCreate.Handle("/admin/logs", api.Middleware(http.HandlerFunc(admin.GetLogsHandler))).Methods("GET")
	apiCreate.Handle("/admin/reports", api.Middleware(http.HandlerFunc(admin.GetReportsHandler))).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("volunteerhub-api has connected to the database")

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
