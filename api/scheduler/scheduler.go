package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/volunteerhub/volunteerhub-api/api/handlers"
	"github.com/volunteerhub/volunteerhub-api/databases"
	"github.com/volunteerhub/volunteerhub-api/models"
)

const (
	// read notifications older than this are purged
	notificationRetention = 30 * 24 * time.Hour
	// opportunities whose date passed this long ago get their pending
	// applications closed out
	expiryGrace = 7 * 24 * time.Hour
)

// Scheduler handles periodic background jobs
type Scheduler struct {
	cron     *cron.Cron
	NDB      databases.NotificationDatabase
	ODB      databases.OpportunityDatabase
	ADB      databases.ApplicationDatabase
	Notifier *handlers.Notifier
}

// NewScheduler creates a new scheduler instance
func NewScheduler(nDB databases.NotificationDatabase, oDB databases.OpportunityDatabase, aDB databases.ApplicationDatabase, notifier *handlers.Notifier) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		NDB:      nDB,
		ODB:      oDB,
		ADB:      aDB,
		Notifier: notifier,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Purge old read notifications daily at 3 AM UTC
	_, err := s.cron.AddFunc("0 3 * * *", s.purgeOldNotifications)
	if err != nil {
		zap.S().Errorw("failed to register notification purge job", "error", err)
	}

	// Close out pending applications on long-expired opportunities daily at 2 AM UTC
	_, err = s.cron.AddFunc("0 2 * * *", s.closeExpiredOpportunities)
	if err != nil {
		zap.S().Errorw("failed to register expired opportunity job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Background scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Background scheduler stopped")
}

// purgeOldNotifications deletes read notifications past the retention window
func (s *Scheduler) purgeOldNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := primitive.NewDateTimeFromTime(time.Now().Add(-notificationRetention))
	deleted, err := s.NDB.DeleteMany(ctx, bson.M{
		"isRead":    true,
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		zap.S().Errorw("failed to purge old notifications", "error", err)
		return
	}
	zap.S().Infow("Notification purge complete", "deleted", deleted)
}

// closeExpiredOpportunities rejects the remaining pending applications on
// opportunities whose date passed more than a week ago, so volunteers are
// not left waiting on events that already happened.
func (s *Scheduler) closeExpiredOpportunities() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := primitive.NewDateTimeFromTime(time.Now().Add(-expiryGrace))
	expired, err := s.ODB.Find(ctx, bson.M{
		"deleted":             bson.M{"$ne": true},
		"date":                bson.M{"$lt": cutoff},
		"applications.status": models.ApplicationPending,
	})
	if err != nil {
		zap.S().Errorw("failed to find expired opportunities", "error", err)
		return
	}

	closed := 0
	for _, opportunity := range expired {
		closed += s.closeOpportunity(ctx, opportunity)
	}

	zap.S().Infow("Expired opportunity sweep complete",
		"opportunities", len(expired),
		"applicationsClosed", closed)
}

func (s *Scheduler) closeOpportunity(ctx context.Context, opportunity models.Opportunity) int {
	now := primitive.NewDateTimeFromTime(time.Now())

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"elem.status": models.ApplicationPending}},
	})
	_, err := s.ODB.UpdateOne(ctx,
		bson.M{"_id": opportunity.ID},
		bson.M{"$set": bson.M{
			"applications.$[elem].status": models.ApplicationRejected,
			"updatedAt":                   now,
		}},
		opts,
	)
	if err != nil {
		zap.S().Errorw("failed to close expired opportunity",
			"opportunity", opportunity.ID.Hex(),
			"error", err)
		return 0
	}

	if _, err := s.ADB.UpdateMany(ctx,
		bson.M{"opportunityId": opportunity.ID, "status": models.ApplicationPending},
		bson.M{"$set": bson.M{"status": models.ApplicationRejected, "updatedAt": now}},
	); err != nil {
		zap.S().Warnw("failed to update applications projection for expired opportunity",
			"opportunity", opportunity.ID.Hex(),
			"error", err)
	}

	closed := 0
	for _, application := range opportunity.Applications {
		if application.Status != models.ApplicationPending {
			continue
		}
		message := fmt.Sprintf("Your application for %q was closed because the event date has passed", opportunity.Title)
		_, err := s.Notifier.Notify(ctx, application.Volunteer, models.NotificationRejection, message, models.NotificationData{
			OpportunityID: &opportunity.ID,
			NgoID:         &opportunity.CreatedBy,
			Action:        "opportunity_expired",
		})
		if err != nil {
			zap.S().Errorw("failed to notify applicant of expired opportunity",
				"volunteer", application.Volunteer.Hex(),
				"opportunity", opportunity.ID.Hex(),
				"error", err)
		}
		closed++
	}
	return closed
}
