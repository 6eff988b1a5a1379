package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/auth"
	"classattend/internal/reports"
)

// studentRoll returns the caller's roll when they are a student of :classId.
func studentRoll(c *gin.Context) (string, bool) {
	cl := claims(c)
	if cl.Role != auth.RoleStudent || cl.ClassID != c.Param("classId") {
		forbidden(c)
		return "", false
	}
	return cl.RollNumber, true
}

func (s *server) submitReport(c *gin.Context) {
	roll, ok := studentRoll(c)
	if !ok {
		return
	}
	var in reports.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	rep, err := s.reports.Submit(c.Request.Context(), c.Param("classId"), roll, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

func (s *server) listReports(c *gin.Context) {
	if !admin(c) {
		return
	}
	out, err := s.reports.ListForClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

func (s *server) myReports(c *gin.Context) {
	roll, ok := studentRoll(c)
	if !ok {
		return
	}
	out, err := s.reports.ListForStudent(c.Request.Context(), c.Param("classId"), roll)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

func (s *server) updateReportStatus(c *gin.Context) {
	if !admin(c) {
		return
	}
	var req struct {
		Status   string `json:"status" binding:"required"`
		Response string `json:"adminResponse"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rep, err := s.reports.UpdateStatus(c.Request.Context(), c.Param("classId"), c.Param("reportId"), req.Status, req.Response)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *server) editReport(c *gin.Context) {
	roll, ok := studentRoll(c)
	if !ok {
		return
	}
	var req struct {
		Description string `json:"issueDescription" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rep, err := s.reports.Edit(c.Request.Context(), c.Param("classId"), roll, c.Param("reportId"), req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *server) deleteReport(c *gin.Context) {
	roll, ok := studentRoll(c)
	if !ok {
		return
	}
	if err := s.reports.Delete(c.Request.Context(), c.Param("classId"), roll, c.Param("reportId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) fileRequest(c *gin.Context) {
	roll, ok := studentRoll(c)
	if !ok {
		return
	}
	var in reports.RequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	req, err := s.reports.FileRequest(c.Request.Context(), c.Param("classId"), roll, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *server) myRequests(c *gin.Context) {
	roll, ok := studentRoll(c)
	if !ok {
		return
	}
	out, err := s.reports.RequestsForStudent(c.Request.Context(), c.Param("classId"), roll)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

func (s *server) pendingRequests(c *gin.Context) {
	out, err := s.reports.PendingForTeacher(c.Request.Context(), claims(c).Subject)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

func (s *server) decideRequest(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := s.reports.Decide(c.Request.Context(), claims(c).Subject, c.Param("requestId"), req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
