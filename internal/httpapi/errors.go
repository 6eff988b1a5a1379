package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/classroom"
	"classattend/internal/ident"
	"classattend/internal/reports"
)

func (s *server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, classroom.ErrNotFound), errors.Is(err, attendance.ErrNotFound), errors.Is(err, reports.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, classroom.ErrInvalid), errors.Is(err, attendance.ErrInvalid), errors.Is(err, reports.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, classroom.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, attendance.ErrForbidden), errors.Is(err, reports.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, classroom.ErrConflict), errors.Is(err, classroom.ErrLastSubject),
		errors.Is(err, reports.ErrConflict), errors.Is(err, reports.ErrBadState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.ClaimsFrom(c)
	return cl
}

// isClassAdmin reports whether the caller administers classID.
func isClassAdmin(c *gin.Context, classID string) bool {
	cl := claims(c)
	return cl.Role == auth.RoleClassAdmin && cl.ClassID == classID
}

// isStudent reports whether the caller is the student roll of classID.
func isStudent(c *gin.Context, classID, roll string) bool {
	cl := claims(c)
	return cl.Role == auth.RoleStudent && cl.ClassID == classID && ident.SameRoll(cl.RollNumber, roll)
}

// teachesIn reports whether the teacher caller is assigned to any subject of
// class, or to subjectID when it is non-empty.
func teachesIn(c *gin.Context, class classroom.Class, subjectID string) bool {
	cl := claims(c)
	if cl.Role != auth.RoleTeacher {
		return false
	}
	for _, sub := range class.Subjects {
		if sub.TeacherID == cl.Subject && (subjectID == "" || sub.ID == subjectID) {
			return true
		}
	}
	return false
}
