// Package httpapi exposes the class attendance services over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/classroom"
	"classattend/internal/config"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logger"
	"classattend/internal/reports"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators of the router.
type Deps struct {
	Config     config.App
	Classes    *classroom.Service
	Attendance *attendance.Service
	Reports    *reports.Service
	Log        *logger.Logger
	// ReportLimiter guards report submission. Nil disables it.
	ReportLimiter gin.HandlerFunc
	Health        map[string]HealthCheck
}

type server struct {
	cfg        config.App
	classes    *classroom.Service
	attendance *attendance.Service
	reports    *reports.Service
	log        *logger.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = logger.Default()
	}
	s := &server{cfg: d.Config, classes: d.Classes, attendance: d.Attendance, reports: d.Reports, log: d.Log}

	r := gin.New()
	r.Use(gin.CustomRecoveryWithWriter(d.Log.Writer(), func(c *gin.Context, err any) {
		d.Log.Errorf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}))
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    d.Log.Writer(),
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(securityHeaders(d.Config.Production()))
	r.Use(corsMiddleware())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.NewSimpleTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthHandler(d.Health))

	pub := r.Group("/v1")
	pub.POST("/auth/admin", s.loginAdmin)
	pub.POST("/auth/student", s.loginStudent)
	pub.POST("/auth/teacher", s.loginTeacher)
	pub.POST("/classes", s.createClass)
	pub.POST("/teachers", s.requireSuperAdmin, s.createTeacher)

	v1 := r.Group("/v1", auth.Authenticate(d.Config.JWTSigningKey, d.Config.JWTIssuer))

	cls := v1.Group("/classes/:classId")
	cls.GET("", s.getClass)
	cls.PUT("/roster", s.updateRoster)
	cls.PUT("/threshold", s.setThreshold)
	cls.PUT("/timetable", s.setTimetable)
	cls.POST("/subjects", s.addSubject)
	cls.PUT("/subjects/:subjectId", s.updateSubject)
	cls.DELETE("/subjects/:subjectId", s.deleteSubject)
	cls.PUT("/subjects/:subjectId/teacher", s.assignTeacher)
	cls.DELETE("/subjects/:subjectId/teacher", s.unassignTeacher)
	cls.GET("/subjects/:subjectId/stats", s.subjectStats)
	cls.GET("/special-dates", s.listSpecialDates)
	cls.POST("/special-dates", s.addSpecialDate)
	cls.DELETE("/special-dates/:dateId", s.deleteSpecialDate)
	cls.GET("/attendance", s.listRecords)

	submit := []gin.HandlerFunc{s.submitReport}
	if d.ReportLimiter != nil {
		submit = append([]gin.HandlerFunc{d.ReportLimiter}, submit...)
	}
	cls.POST("/reports", submit...)
	cls.GET("/reports", s.listReports)
	cls.GET("/reports/mine", s.myReports)
	cls.PUT("/reports/:reportId", s.editReport)
	cls.PUT("/reports/:reportId/status", s.updateReportStatus)
	cls.DELETE("/reports/:reportId", s.deleteReport)
	cls.POST("/requests", s.fileRequest)
	cls.GET("/requests/mine", s.myRequests)

	v1.POST("/attendance/mark", s.markAttendance)
	v1.GET("/attendance/:classId/:date", s.getRecord)
	v1.POST("/attendance/:classId/:date/verify", s.verifyPeriod)

	v1.GET("/students/:classId/:roll/report", s.studentReport)
	v1.POST("/students/:classId/:roll/simulate", s.simulate)

	teacher := v1.Group("/teacher", auth.RequireRole(auth.RoleTeacher))
	teacher.GET("/assignments", s.teacherAssignments)
	teacher.GET("/requests", s.pendingRequests)
	teacher.POST("/requests/:requestId", s.decideRequest)

	return r
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			ok := check(c.Request.Context())
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Super-Admin-Key")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
