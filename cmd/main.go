package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"reserve/internal/config"
	"reserve/internal/events"
	"reserve/internal/handlers"
	"reserve/internal/jobs"
	"reserve/internal/repositories"
	"reserve/internal/services"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get generic DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	resourceRepo := repositories.NewResourceRepository(db)
	slotRepo := repositories.NewSlotReservationRepository(db)
	poolRepo := repositories.NewPoolReservationRepository(db)

	// Events go to Redis when configured, to the process log otherwise.
	var publisher events.Publisher = &events.LogPublisher{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		publisher = events.NewRedisPublisher(client, cfg.RedisChannel)
		log.Printf("[INFO] publishing events to redis channel %q", cfg.RedisChannel)
	}

	availability := services.NewAvailabilityService(resourceRepo, slotRepo, poolRepo)
	reservationService := services.NewReservationService(db, availability, resourceRepo, slotRepo, poolRepo, publisher)
	coordinator := services.NewApprovalCoordinator(reservationService)
	calendar := services.NewCalendarService(resourceRepo, slotRepo, poolRepo)

	scheduler := cron.New()
	reminders := jobs.NewReminderJob(poolRepo, publisher)
	if err := jobs.Schedule(scheduler, cfg.ReminderSpec, reminders); err != nil {
		log.Fatalf("failed to schedule reminder job: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := gin.Default()

	handlers.RegisterRoutes(router, reservationService, availability, coordinator, calendar)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
