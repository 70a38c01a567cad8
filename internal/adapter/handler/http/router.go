package http

import (
	"net/http"

	"github.com/sm8ta/webike_rental_nikita/internal/config"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Router struct {
	router *gin.Engine
}

func NewRouter(
	cfg *config.HTTP,
	tokenService ports.TokenService,
	admins adminSessions,
	bikeHandler *BikeHandler,
	rentalHandler *RentalHandler,
	authHandler *AuthHandler,
	adminHandler *AdminHandler,
	messageHandler *MessageHandler,
	changesHandler *ChangesHandler,
) (*Router, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigins},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := AuthMiddleware(tokenService)
	adminOnly := []gin.HandlerFunc{authed, AdminMiddleware(admins)}

	// Auth & profile
	auth := router.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authed, authHandler.Logout)
	}
	profile := router.Group("/profile")
	profile.Use(authed)
	{
		profile.GET("", authHandler.GetProfile)
		profile.PUT("", authHandler.UpdateProfile)
		profile.PUT("/photo", authHandler.UpdatePhoto)
	}

	// Admin sessions
	admin := router.Group("/admin")
	{
		admin.POST("/register", adminHandler.Register)
		admin.POST("/login", adminHandler.Login)
		admin.POST("/logout", authed, adminHandler.Logout)
	}

	// Bikes routes
	bikes := router.Group("/bikes")
	{
		bikes.GET("", bikeHandler.ListBikes)
		bikes.GET("/:id", bikeHandler.GetBike)
		bikes.POST("", append(adminOnly, bikeHandler.CreateBike)...)
		bikes.PUT("/:id", append(adminOnly, bikeHandler.UpdateBike)...)
		bikes.PUT("/:id/toggle", append(adminOnly, bikeHandler.ToggleBike)...)
		bikes.DELETE("/:id", append(adminOnly, bikeHandler.DeleteBike)...)
	}

	// Rentals routes
	rentals := router.Group("/rentals")
	{
		rentals.POST("", authed, rentalHandler.Rent)
		rentals.GET("/my", authed, rentalHandler.GetMyRentals)
		rentals.GET("", append(adminOnly, rentalHandler.ListRentals)...)
	}
	router.GET("/transactions", append(adminOnly, rentalHandler.ListTransactions)...)

	// Users console
	users := router.Group("/users")
	users.Use(adminOnly...)
	{
		users.GET("", authHandler.ListUsers)
		users.DELETE("/:email", authHandler.DeleteUser)
	}

	// Messages routes
	messages := router.Group("/messages")
	{
		messages.POST("", messageHandler.SaveMessage)
		messages.GET("", append(adminOnly, messageHandler.ListMessages)...)
		messages.POST("/:id/reply", append(adminOnly, messageHandler.ReplyMessage)...)
	}

	// Change markers
	router.GET("/changes", changesHandler.GetChanges)
	router.GET("/ws/changes", changesHandler.Subscribe)

	return &Router{router: router}, nil
}

func (r *Router) Engine() *gin.Engine {
	return r.router
}
