package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/auth"
)

func (s *server) markAttendance(c *gin.Context) {
	var req struct {
		ClassID string                   `json:"classId" binding:"required"`
		Date    string                   `json:"date" binding:"required"`
		Periods []attendance.PeriodInput `json:"periods" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := claims(c)
	switch {
	case cl.Role == auth.RoleClassAdmin && cl.ClassID == req.ClassID:
	case cl.Role == auth.RoleTeacher:
	default:
		forbidden(c)
		return
	}
	rec, err := s.attendance.MarkAttendance(c.Request.Context(), req.ClassID, req.Date, req.Periods,
		attendance.Actor{Role: cl.Role, ID: cl.Subject})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) getRecord(c *gin.Context) {
	class, ok := s.class(c)
	if !ok {
		return
	}
	if !member(c, class) {
		forbidden(c)
		return
	}
	rec, err := s.attendance.GetRecord(c.Request.Context(), class.ID, c.Param("date"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

func (s *server) verifyPeriod(c *gin.Context) {
	cl := claims(c)
	if cl.Role != auth.RoleTeacher {
		forbidden(c)
		return
	}
	var req struct {
		PeriodNum int `json:"periodNum" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := s.attendance.VerifyPeriod(c.Request.Context(), c.Param("classId"), c.Param("date"), req.PeriodNum, cl.Subject)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) listRecords(c *gin.Context) {
	class, ok := s.class(c)
	if !ok {
		return
	}
	if !isClassAdmin(c, class.ID) && !teachesIn(c, class, c.Query("subjectId")) {
		forbidden(c)
		return
	}
	recs, err := s.attendance.ListRecords(c.Request.Context(), class.ID, c.Query("subjectId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

// canSeeStudent lets through the student themself, the class admin and any
// teacher of the class.
func (s *server) canSeeStudent(c *gin.Context) bool {
	classID, roll := c.Param("classId"), c.Param("roll")
	if isStudent(c, classID, roll) || isClassAdmin(c, classID) {
		return true
	}
	if claims(c).Role == auth.RoleTeacher {
		class, ok := s.class(c)
		if !ok {
			return false
		}
		if teachesIn(c, class, "") {
			return true
		}
	}
	forbidden(c)
	return false
}

func (s *server) studentReport(c *gin.Context) {
	if !s.canSeeStudent(c) {
		return
	}
	rep, err := s.attendance.StudentReport(c.Request.Context(), c.Param("classId"), c.Param("roll"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *server) simulate(c *gin.Context) {
	if !s.canSeeStudent(c) {
		return
	}
	var req struct {
		Dates []string `json:"dates" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sim, err := s.attendance.SimulateBunk(c.Request.Context(), c.Param("classId"), c.Param("roll"), req.Dates)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sim)
}

func (s *server) subjectStats(c *gin.Context) {
	class, ok := s.class(c)
	if !ok {
		return
	}
	if !isClassAdmin(c, class.ID) && !teachesIn(c, class, c.Param("subjectId")) {
		forbidden(c)
		return
	}
	stats, err := s.attendance.SubjectStats(c.Request.Context(), class.ID, c.Param("subjectId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
