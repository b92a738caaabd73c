package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"

	"posescope/audit"
	"posescope/controllers"
	"posescope/lifecycle"
	"posescope/middlewares"
	"posescope/models"
	"posescope/predictor"
	"posescope/render"
	"posescope/storage"
	"posescope/utils"
)

// corsMiddleware CORS for * origins, allowing the methods the frontend uses.
// TODO: Allow to get the origins from the YAML config before exposing this
// beyond the lab network.
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"X-Requested-With, Content-Type, Origin, Authorization, Accept, Client-Security-Token, Accept-Encoding, x-access-token"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// requestIDMiddleware Generate a UUID and attach it to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		_uuid := uuid.NewV4()
		c.Writer.Header().Set("X-Request-Id", _uuid.String())
		c.Next()
	}
}

func main() {
	log.Info("Starting PoseScope...")

	// Generate our config based on the config supplied
	// by the user in the flags
	configPath, debugMode, err := utils.ParseFlags()
	if err != nil {
		log.Fatal(err)
	}
	config, err := utils.NewConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if config.Auth.Secret == "" {
		log.Fatal("auth.secret must be configured")
	}

	// Debug mode enables gin-gonic debug mode
	if debugMode == false {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the database
	models.ConnectDataBase(config.Database.Driver, config.DatabaseDSN())

	// A fresh database has nobody to log in as; seed the admin from config.
	if err := models.EnsureAdminUser(models.DB, config.Auth.BootstrapUsername, config.Auth.BootstrapPassword); err != nil {
		log.Fatal("bootstrap admin: ", err)
	}

	// Artifact store under the media root
	store, err := storage.NewFS(config.Media.Root)
	if err != nil {
		log.Fatal(err)
	}
	renderer := render.NewRenderer(store)
	sink := audit.NewDBSink(models.DB)
	engine := lifecycle.NewEngine(models.DB, store, renderer, sink)

	// The model is an external collaborator; when it cannot be constructed the
	// server still runs, reporting predictor-unavailable on assist requests.
	var model predictor.Predictor
	client, err := predictor.New(config.Predictor.BaseURL, time.Duration(config.Predictor.TimeoutSeconds)*time.Second)
	if err != nil {
		log.Warn("running without predictor: ", err)
		model = predictor.Unavailable{}
	} else {
		model = client
	}

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Version tag to test against
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "v0.1.0",
		})
	})

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.POST("/login", controllers.Login(config.Auth.Secret, time.Duration(config.Auth.TokenHours)*time.Hour))

	auth := v1.Group("")
	auth.Use(middlewares.JwtAuthMiddleware(config.Auth.Secret))
	auth.Use(middlewares.AuditTrail(sink))
	{
		auth.GET("/user", controllers.CurrentUser)

		auth.GET("/images", controllers.FindImages)
		auth.POST("/images", middlewares.RequireRole(models.RoleAnnotator, models.RoleAdmin), controllers.UploadImage(store))
		auth.GET("/images/:id", controllers.FindImage)
		auth.DELETE("/images/:id", middlewares.RequireRole(models.RoleAdmin), controllers.DeleteImage)
		auth.GET("/images/:id/thumbnail.png", controllers.GetThumbnail(store, renderer))
		auth.GET("/images/:id/thumbnail.jpg", controllers.GetThumbnailJpg(store, renderer))
		auth.GET("/images/:id/keypoints", middlewares.RequireRole(models.RoleAnnotator), controllers.PredictKeypoints(store, model))
		auth.POST("/images/:id/annotations", middlewares.RequireRole(models.RoleAnnotator), controllers.CreateAnnotation(engine))

		auth.GET("/annotations/:id", controllers.FindAnnotation)
		auth.PATCH("/annotations/:id", middlewares.RequireRole(models.RoleAnnotator), controllers.EditAnnotation(engine))
		auth.GET("/annotations/:id/overlay.png", controllers.GetOverlay(store))
		auth.POST("/annotations/:id/verification", middlewares.RequireRole(models.RoleVerifier), controllers.DecideAnnotation(engine))
		auth.GET("/annotations/:id/verification", controllers.FindVerification)

		// Role dashboards
		auth.GET("/dashboards/verifier", middlewares.RequireRole(models.RoleVerifier, models.RoleAdmin), controllers.FindPendingAnnotations)
		auth.GET("/dashboards/viewer", controllers.FindApprovedAnnotations)

		auth.GET("/notifications", controllers.FindNotifications)
		auth.PATCH("/notifications/:id/read", controllers.MarkNotificationRead)

		auth.POST("/batches", middlewares.RequireRole(models.RoleAdmin), controllers.CreateBatch)
		auth.GET("/batches", controllers.FindBatches)
		auth.GET("/batches/:id", controllers.FindBatch)

		admin := auth.Group("/admin")
		admin.Use(middlewares.RequireRole(models.RoleAdmin))
		admin.POST("/users", controllers.Register)
		admin.GET("/users", controllers.FindUsers)
	}

	addr := fmt.Sprintf(":%s", config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Info("Server exiting")
}
