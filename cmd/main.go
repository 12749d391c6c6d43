package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"clinic-auth/internal/config"
	"clinic-auth/internal/database/postgres"
	redisdb "clinic-auth/internal/database/redis"
	"clinic-auth/internal/event"
	"clinic-auth/internal/handlers"
	"clinic-auth/internal/repository"
	"clinic-auth/internal/services"

	"github.com/gin-gonic/gin"
)

const adminRoleLevel = 80

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/clinic", "log", "auth_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connect to database: %s", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	} else if err := postgres.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	redisClient, err := redisdb.Connect(cfg.RedisCfg)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	// RabbitMQ is fire-and-forget plumbing; a broker outage must not keep
	// the service from starting, so fall back to logging emitters.
	var auditEmitter event.AuditEmitter = event.NopAuditEmitter{}
	var smsDispatcher event.SMSDispatcher = event.NopSMSDispatcher{}
	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Printf("error connect to rabbitmq, events will be logged only: %s", err)
	} else {
		defer rabbitConn.Close()
		auditEmitter = event.NewAuditPublisher(rabbitConn)
		smsDispatcher = event.NewSMSPublisher(rabbitConn)
	}

	// Repositories
	identityRepo := repository.NewIdentityRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	twoFactorRepo := repository.NewTwoFactorRepository(db)
	ipAllowRepo := repository.NewIPAllowRepository(db)
	codeStore := repository.NewOneTimeCodeStore(redisClient)

	// Services
	credentialService := services.NewCredentialService(identityRepo, twoFactorRepo, auditEmitter)
	twoFactorService := services.NewTwoFactorService(twoFactorRepo, codeStore, smsDispatcher, auditEmitter,
		cfg.AuthCfg.TOTPIssuer, cfg.AuthCfg.SMSCodeTTL, cfg.AuthCfg.SMSCodeRetries)
	sessionService := services.NewSessionService(sessionRepo, ipAllowRepo, auditEmitter, cfg.AuthCfg.SessionTTL)
	permissionService := services.NewPermissionService(roleRepo, redisClient)
	accessService := services.NewAccessService(permissionService, auditEmitter)
	identityService := services.NewIdentityService(identityRepo, sessionService)
	roleService := services.NewRoleService(roleRepo, permissionService)
	jwtService := services.NewJWTService(cfg.AuthCfg.JWTSecret)

	// HTTP surface
	middleware := handlers.NewMiddleware(sessionService, accessService, cfg.AuthCfg)
	requireSession := middleware.RequireSession()
	requireAdmin := middleware.RequireRoleLevel(adminRoleLevel)

	router := gin.Default()
	router.GET("/checkhealth", func(c *gin.Context) {
		c.String(http.StatusOK, "Auth service is healthy")
	})

	authHandler := handlers.NewAuthHandler(credentialService, twoFactorService, sessionService,
		permissionService, identityService, jwtService, cfg.AuthCfg)
	authHandler.RegisterRoutes(router, requireSession)

	handlers.NewTwoFactorHandler(twoFactorService, identityService).RegisterRoutes(router, requireSession)
	handlers.NewIdentityHandler(identityService, sessionService).RegisterRoutes(router, requireSession, requireAdmin)
	handlers.NewRoleHandler(roleService).RegisterRoutes(router, requireSession, requireAdmin)
	handlers.NewPermissionHandler(roleService).RegisterRoutes(router, requireSession, requireAdmin)
	handlers.NewIPAllowHandler(ipAllowRepo).RegisterRoutes(router, requireSession, requireAdmin)

	log.Printf("Auth service listening on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
