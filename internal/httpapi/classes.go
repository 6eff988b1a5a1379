package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/auth"
	"classattend/internal/classroom"
	"classattend/internal/ident"
)

// class loads the :classId class, writing the error response on failure.
func (s *server) class(c *gin.Context) (classroom.Class, bool) {
	class, err := s.classes.GetClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		s.fail(c, err)
		return classroom.Class{}, false
	}
	return class, true
}

// admin reports whether the caller administers :classId, answering 403 when not.
func admin(c *gin.Context) bool {
	if !isClassAdmin(c, c.Param("classId")) {
		forbidden(c)
		return false
	}
	return true
}

// member reports whether the caller belongs to class in any role.
func member(c *gin.Context, class classroom.Class) bool {
	cl := claims(c)
	switch cl.Role {
	case auth.RoleClassAdmin, auth.RoleStudent:
		return cl.ClassID == class.ID
	case auth.RoleTeacher:
		return teachesIn(c, class, "")
	}
	return false
}

func (s *server) getClass(c *gin.Context) {
	class, ok := s.class(c)
	if !ok {
		return
	}
	if !member(c, class) {
		forbidden(c)
		return
	}
	c.JSON(http.StatusOK, class)
}

func (s *server) updateRoster(c *gin.Context) {
	if !admin(c) {
		return
	}
	var req struct {
		RollNumbers []ident.Flex `json:"rollNumbers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := s.classes.UpdateRoster(c.Request.Context(), c.Param("classId"), ident.Strings(req.RollNumbers))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

func (s *server) setThreshold(c *gin.Context) {
	if !admin(c) {
		return
	}
	var req struct {
		MinAttendance float64 `json:"minAttendance" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := s.classes.SetThreshold(c.Request.Context(), c.Param("classId"), req.MinAttendance)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

func (s *server) setTimetable(c *gin.Context) {
	if !admin(c) {
		return
	}
	var req struct {
		Timetable classroom.Timetable `json:"timetable" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := s.classes.SetTimetable(c.Request.Context(), c.Param("classId"), req.Timetable)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

func (s *server) addSubject(c *gin.Context) {
	if !admin(c) {
		return
	}
	var in classroom.SubjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := s.classes.AddSubject(c.Request.Context(), c.Param("classId"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *server) updateSubject(c *gin.Context) {
	if !admin(c) {
		return
	}
	var in classroom.SubjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := s.classes.UpdateSubject(c.Request.Context(), c.Param("classId"), c.Param("subjectId"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *server) deleteSubject(c *gin.Context) {
	if !admin(c) {
		return
	}
	if err := s.classes.DeleteSubject(c.Request.Context(), c.Param("classId"), c.Param("subjectId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) assignTeacher(c *gin.Context) {
	if !admin(c) {
		return
	}
	var req struct {
		TeacherID string `json:"teacherId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := s.classes.AssignTeacher(c.Request.Context(), c.Param("classId"), c.Param("subjectId"), req.TeacherID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *server) unassignTeacher(c *gin.Context) {
	if !admin(c) {
		return
	}
	sub, err := s.classes.UnassignTeacher(c.Request.Context(), c.Param("classId"), c.Param("subjectId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *server) listSpecialDates(c *gin.Context) {
	class, ok := s.class(c)
	if !ok {
		return
	}
	if !member(c, class) {
		forbidden(c)
		return
	}
	dates, err := s.classes.ListSpecialDates(c.Request.Context(), class.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"specialDates": dates})
}

func (s *server) addSpecialDate(c *gin.Context) {
	if !admin(c) {
		return
	}
	var req struct {
		Date  string `json:"date" binding:"required"`
		Type  string `json:"type" binding:"required"`
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := s.classes.AddSpecialDate(c.Request.Context(), c.Param("classId"), req.Date, req.Type, req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (s *server) deleteSpecialDate(c *gin.Context) {
	if !admin(c) {
		return
	}
	if err := s.classes.DeleteSpecialDate(c.Request.Context(), c.Param("classId"), c.Param("dateId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) teacherAssignments(c *gin.Context) {
	out, err := s.classes.TeacherAssignments(c.Request.Context(), claims(c).Subject)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": out})
}
