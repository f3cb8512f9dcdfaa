package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type reminderRequest struct {
	CustomMessage string `json:"custom_message"`
}

type blastRequest struct {
	WorkoutName string `json:"workout_name" binding:"required"`
	DeepLink    string `json:"deep_link" binding:"required"`
	CustomCopy  string `json:"custom_copy"`
}

func (s *Service) router(token string) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		payload := map[string]any{"status": "ok"}
		if s.health != nil {
			for k, v := range s.health() {
				payload[k] = v
			}
		}
		c.JSON(http.StatusOK, payload)
	})

	jobs := r.Group("/admin/jobs")
	if token != "" {
		jobs.Use(bearerAuth(token))
	}

	jobs.POST("/workout-reminder", func(c *gin.Context) {
		var req reminderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		n, err := s.jobs.MassWorkoutReminder(c.Request.Context(), req.CustomMessage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sent": n})
	})

	jobs.POST("/featured-blast", func(c *gin.Context) {
		var req blastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		n, err := s.jobs.FeaturedSuggestionBlast(c.Request.Context(), req.WorkoutName, req.DeepLink, req.CustomCopy)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sent": n})
	})

	return r
}

func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const p = "Bearer "
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, p) || strings.TrimSpace(strings.TrimPrefix(ah, p)) != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
