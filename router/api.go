package router

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/handlers"
	"github.com/proplio/api/services"
)

func NewGinRouter(pg *sql.DB, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize services
	pushService, _ := services.NewPushService(pg)
	notifier := services.NewNotifier(pg)
	communityService := services.NewCommunityService(pg)
	staffService := services.NewStaffService(pg)
	residentService := services.NewResidentService(pg)
	taskService := services.NewTaskService(pg, notifier)
	maintenanceService := services.NewMaintenanceService(pg, notifier)

	// Initialize authz components
	profileLoader := services.NewCachedProfileLoader(authz.NewSimpleProfileLoader(pg), rdb)
	engine := authz.NewEngine(pg)
	gate := authz.NewGate()
	approvalService := authz.NewApprovalService(pg)
	authzMiddleware := authz.NewMiddleware(profileLoader, engine, gate)

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(staffService, residentService, pushService, profileLoader)
	approvalHandler := handlers.NewApprovalHandler(approvalService, profileLoader)
	communityHandler := handlers.NewCommunityHandler(communityService)
	staffHandler := handlers.NewStaffHandler(staffService, profileLoader)
	residentHandler := handlers.NewResidentHandler(residentService, profileLoader)
	taskHandler := handlers.NewTaskHandler(taskService)
	maintenanceHandler := handlers.NewMaintenanceHandler(maintenanceService)

	// Initialize middleware
	supabaseAuthMiddleware := handlers.NewSupabaseAuthMiddleware()

	// Identity and profile run on every request; the route gate then applies
	// the coarse state machine before any handler.
	r.Use(supabaseAuthMiddleware.OptionalAuth())
	r.Use(authzMiddleware.ResolveProfile())
	r.Use(authzMiddleware.GateRoutes())

	// PUBLIC ENDPOINTS (no authentication required)

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// First-admin bootstrap. The window probe is public (the setup screen
	// runs before any session exists); the creation itself needs a session.
	r.GET("/setup-admin", approvalHandler.AdminExists)
	r.POST("/setup-admin", supabaseAuthMiddleware.RequireAuth(), approvalHandler.BootstrapAdmin)

	// PROTECTED ENDPOINTS (require Supabase authentication)
	protected := r.Group("/")
	protected.Use(supabaseAuthMiddleware.RequireAuth())
	{
		// Own profile. GetMe works for accounts without a profile; the rest
		// requires one.
		protected.GET("/me", profileHandler.GetMe)
		protected.PUT("/me", authzMiddleware.RequireProfile(), profileHandler.UpdateMe)
		protected.PUT("/me/preferences", authzMiddleware.RequireProfile(), profileHandler.UpdatePreferences)
		protected.POST("/me/fcm-token", authzMiddleware.RequireProfile(), profileHandler.UpdateFCMToken)

		// Staff-access workflow. Filing a request is the one mutation an
		// account without a profile may perform.
		protected.POST("/staff-access/requests", approvalHandler.RequestStaffAccess)

		// Admin approval screen
		adminRoutes := protected.Group("/admin")
		adminRoutes.Use(authzMiddleware.RequireAdmin())
		{
			adminRoutes.GET("/staff-access/requests", approvalHandler.ListRequests)
			adminRoutes.POST("/staff-access/requests/:id/approve", approvalHandler.Approve)
			adminRoutes.POST("/staff-access/requests/:id/reject", approvalHandler.Reject)
		}

		// COMMUNITY MANAGEMENT
		communityRoutes := protected.Group("/communities")
		communityRoutes.Use(authzMiddleware.RequireProfile())
		{
			communityRoutes.GET("",
				authzMiddleware.RequirePermission(authz.CategoryCommunities, authz.ActionView),
				communityHandler.ListCommunities)
			communityRoutes.POST("",
				authzMiddleware.RequirePermission(authz.CategoryCommunities, authz.ActionCreate),
				communityHandler.CreateCommunity)

			communityDetailRoutes := communityRoutes.Group("/:id")
			communityDetailRoutes.Use(authzMiddleware.RequirePermission(authz.CategoryCommunities, authz.ActionView))
			{
				communityDetailRoutes.GET("", communityHandler.GetCommunity)
				communityDetailRoutes.PUT("",
					authzMiddleware.RequirePermission(authz.CategoryCommunities, authz.ActionEdit),
					communityHandler.UpdateCommunity)
				communityDetailRoutes.DELETE("",
					authzMiddleware.RequirePermission(authz.CategoryCommunities, authz.ActionDelete),
					communityHandler.DeleteCommunity)

				// Staff assignment is community administration.
				communityDetailRoutes.GET("/staff",
					authzMiddleware.RequireStaff(),
					communityHandler.ListCommunityStaff)
				communityDetailRoutes.POST("/staff",
					authzMiddleware.RequireAdmin(),
					communityHandler.AssignStaff)
				communityDetailRoutes.DELETE("/staff/:staff_id",
					authzMiddleware.RequireAdmin(),
					communityHandler.RemoveStaff)
			}
		}

		// STAFF DIRECTORY
		staffRoutes := protected.Group("/staff")
		staffRoutes.Use(authzMiddleware.RequireStaff())
		{
			staffRoutes.GET("",
				authzMiddleware.RequirePermission(authz.CategoryUsers, authz.ActionView),
				staffHandler.ListStaff)
			staffRoutes.GET("/:id",
				authzMiddleware.RequirePermission(authz.CategoryUsers, authz.ActionView),
				staffHandler.GetStaff)
			staffRoutes.PUT("/:id/role",
				authzMiddleware.RequireAdmin(),
				staffHandler.UpdateStaffRole)
			staffRoutes.DELETE("/:id",
				authzMiddleware.RequirePermission(authz.CategoryUsers, authz.ActionDelete),
				staffHandler.DeleteStaff)
		}

		// RESIDENT MANAGEMENT (staff-side)
		residentRoutes := protected.Group("/residents")
		residentRoutes.Use(authzMiddleware.RequireStaff())
		{
			residentRoutes.GET("",
				authzMiddleware.RequirePermission(authz.CategoryUsers, authz.ActionView),
				residentHandler.ListResidents)
			residentRoutes.GET("/:id",
				authzMiddleware.RequirePermission(authz.CategoryUsers, authz.ActionView),
				residentHandler.GetResident)
			residentRoutes.POST("",
				authzMiddleware.RequirePermission(authz.CategoryUsers, authz.ActionCreate),
				residentHandler.CreateResident)
			residentRoutes.DELETE("/:id",
				authzMiddleware.RequirePermission(authz.CategoryUsers, authz.ActionDelete),
				residentHandler.DeleteResident)
		}

		// TASK MANAGEMENT
		taskRoutes := protected.Group("/tasks")
		taskRoutes.Use(authzMiddleware.RequireStaff())
		{
			taskRoutes.GET("",
				authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionView),
				taskHandler.ListTasks)
			taskRoutes.POST("",
				authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionCreate),
				taskHandler.CreateTask)

			taskDetailRoutes := taskRoutes.Group("/:id")
			taskDetailRoutes.Use(authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionView))
			{
				taskDetailRoutes.GET("", taskHandler.GetTask)
				taskDetailRoutes.PUT("",
					authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionEdit),
					taskHandler.UpdateTask)
				taskDetailRoutes.PUT("/status",
					authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionEdit),
					taskHandler.UpdateTaskStatus)
				taskDetailRoutes.DELETE("",
					authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionDelete),
					taskHandler.DeleteTask)

				// Activity log and attachments
				taskDetailRoutes.GET("/updates", taskHandler.ListTaskUpdates)
				taskDetailRoutes.POST("/updates",
					authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionEdit),
					taskHandler.AddTaskComment)
				taskDetailRoutes.GET("/attachments", taskHandler.ListAttachments)
				taskDetailRoutes.POST("/attachments",
					authzMiddleware.RequirePermission(authz.CategoryTasks, authz.ActionEdit),
					taskHandler.AddAttachment)
			}
		}

		// RESIDENT AREA (the gate sends residents here, never to /communities)
		residentArea := protected.Group("/resident")
		residentArea.Use(authzMiddleware.RequireProfile())
		{
			residentArea.GET("/community", communityHandler.GetMyCommunity)
		}

		// MAINTENANCE REQUESTS (shared between residents and staff)
		maintenanceRoutes := protected.Group("/maintenance")
		maintenanceRoutes.Use(authzMiddleware.RequireProfile())
		{
			maintenanceRoutes.GET("",
				authzMiddleware.RequirePermission(authz.CategoryMaintenance, authz.ActionView),
				maintenanceHandler.ListRequests)
			maintenanceRoutes.POST("",
				authzMiddleware.RequirePermission(authz.CategoryMaintenance, authz.ActionCreate),
				maintenanceHandler.CreateRequest)
			maintenanceRoutes.GET("/:id",
				authzMiddleware.RequirePermission(authz.CategoryMaintenance, authz.ActionView),
				maintenanceHandler.GetRequest)
			maintenanceRoutes.PUT("/:id/status",
				authzMiddleware.RequireStaff(),
				authzMiddleware.RequirePermission(authz.CategoryMaintenance, authz.ActionEdit),
				maintenanceHandler.UpdateStatus)
		}
	}

	return r
}
