package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/auth"
	"classattend/internal/classroom"
	"classattend/internal/ident"
)

func (s *server) issue(c *gin.Context, status int, id auth.Identity, extra gin.H) {
	tok, err := auth.Issue(id, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL)
	if err != nil {
		s.log.Errorf("issue %s token: %v", id.Role, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	body := gin.H{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt.Unix(),
		"role":         id.Role,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func (s *server) loginAdmin(c *gin.Context) {
	var req struct {
		ClassName string `json:"className" binding:"required"`
		AdminPin  string `json:"adminPin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := s.classes.AuthenticateAdmin(c.Request.Context(), req.ClassName, req.AdminPin)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issue(c, http.StatusOK, auth.Identity{Subject: class.ID, Role: auth.RoleClassAdmin, ClassID: class.ID},
		gin.H{"classId": class.ID, "className": class.Name})
}

func (s *server) loginStudent(c *gin.Context) {
	var req struct {
		ClassName  string     `json:"className" binding:"required"`
		RollNumber ident.Flex `json:"rollNumber" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, roll, err := s.classes.AuthenticateStudent(c.Request.Context(), req.ClassName, req.RollNumber.String())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issue(c, http.StatusOK, auth.Identity{Subject: class.ID + ":" + roll, Role: auth.RoleStudent, ClassID: class.ID, RollNumber: roll},
		gin.H{"classId": class.ID, "className": class.Name, "rollNumber": roll})
}

func (s *server) loginTeacher(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"teacherCode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := s.classes.AuthenticateTeacher(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issue(c, http.StatusOK, auth.Identity{Subject: t.ID, Role: auth.RoleTeacher},
		gin.H{"teacherId": t.ID, "name": t.Name})
}

// requireSuperAdmin guards teacher provisioning. Without a configured key the
// route is disabled.
func (s *server) requireSuperAdmin(c *gin.Context) {
	key := c.GetHeader("X-Super-Admin-Key")
	if s.cfg.SuperAdminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.SuperAdminKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func (s *server) createTeacher(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"teacherCode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := s.classes.CreateTeacher(c.Request.Context(), req.Name, req.Email, req.Code)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *server) createClass(c *gin.Context) {
	var req struct {
		ClassName     string                   `json:"className" binding:"required"`
		AdminPin      string                   `json:"adminPin" binding:"required"`
		RollNumbers   []ident.Flex             `json:"rollNumbers" binding:"required"`
		Subjects      []classroom.SubjectInput `json:"subjects" binding:"required"`
		Timetable     classroom.Timetable      `json:"timetable"`
		MinAttendance float64                  `json:"minAttendance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := s.classes.CreateClass(c.Request.Context(), classroom.NewClass{
		Name:          req.ClassName,
		AdminPin:      req.AdminPin,
		RollNumbers:   ident.Strings(req.RollNumbers),
		Subjects:      req.Subjects,
		Timetable:     req.Timetable,
		MinAttendance: req.MinAttendance,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issue(c, http.StatusCreated, auth.Identity{Subject: class.ID, Role: auth.RoleClassAdmin, ClassID: class.ID},
		gin.H{"class": class})
}
