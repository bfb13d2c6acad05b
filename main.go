package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/volunteerhub/volunteerhub-api/api/handlers"
	"github.com/volunteerhub/volunteerhub-api/api/scheduler"
	"github.com/volunteerhub/volunteerhub-api/databases"

	"go.uber.org/zap"

	"github.com/volunteerhub/volunteerhub-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database and router
		log.Fatal(err)
	}

	s := scheduler.NewScheduler(
		databases.NewNotificationDatabase(a.DBHelper()),
		databases.NewOpportunityDatabase(a.DBHelper()),
		databases.NewApplicationDatabase(a.DBHelper()),
		a.Notifier,
	)
	s.Start()
	defer s.Stop()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("volunteerhub-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
