package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// yearQuery accepts both spellings used by existing admin clients.
func yearQuery(c *gin.Context) string {
	if v := c.Query("yearId"); v != "" {
		return v
	}
	return c.Query("academic_year_id")
}
