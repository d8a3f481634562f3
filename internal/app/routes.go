package app

import (
	"context"
	"net/http"
	"strings"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/lessonbot-go/internal/buildinfo"
	"github.com/garyellow/lessonbot-go/internal/config"
	"github.com/garyellow/lessonbot-go/internal/lesson"
	"github.com/garyellow/lessonbot-go/internal/sentry"
)

// routes builds the gin engine.
func (a *Application) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/healthz", a.healthCheck)
	router.HEAD("/healthz", a.healthCheck)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)

	for _, path := range []string{"/webhook", "/webhook/whatsapp"} {
		router.GET(path, a.webhookHandler.Verify)
		router.POST(path, a.webhookHandler.Handle)
	}

	auth := basicAuthMiddleware("metrics", a.cfg.MetricsUsername, a.cfg.MetricsPassword)
	router.GET("/metrics", auth, gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	router.POST("/publish/revalidate", auth, a.revalidate)
	router.GET("/admin/lessons/:id", auth, a.lessonPreview)

	return router
}

func (a *Application) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"version": buildinfo.Get(),
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ready(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"features": gin.H{
			"media_storage": a.objects != nil,
			"snapshots":     a.snapshots != nil,
			"error_capture": sentry.IsEnabled(),
		},
	})
}

type revalidateRequest struct {
	Paths []string `json:"paths"`
}

// revalidate triggers site revalidation for arbitrary paths, for operators
// repairing a stale page.
func (a *Application) revalidate(c *gin.Context) {
	var req revalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	paths := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths must be a non-empty list"})
		return
	}

	results := a.revalidator.Trigger(c.Request.Context(), paths)
	a.logger.WithField("paths", paths).Info("Manual revalidation triggered")
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// lessonPreview returns a lesson with its quizzes and media.
func (a *Application) lessonPreview(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	l, err := a.db.GetLesson(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load lesson"})
		return
	}
	if l == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lesson not found"})
		return
	}

	quizzes, err := a.db.ListQuizzes(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load quizzes"})
		return
	}
	media, err := a.db.ListMedia(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media"})
		return
	}

	quizList := make([]gin.H, 0, len(quizzes))
	for _, q := range quizzes {
		quizList = append(quizList, gin.H{
			"prompt":       q.Prompt,
			"options":      q.Options,
			"answer_index": q.AnswerIndex,
		})
	}
	mediaList := make([]gin.H, 0, len(media))
	for _, m := range media {
		mediaList = append(mediaList, gin.H{
			"kind":    m.Kind,
			"url":     m.URL,
			"caption": m.Caption,
		})
	}

	resp := gin.H{
		"id":         l.ID,
		"title":      l.Title,
		"level":      l.Level,
		"topic":      l.Topic,
		"status":     l.Status,
		"published":  l.IsPublished(),
		"slug":       l.Slug,
		"body":       l.BodyMarkdown,
		"author":     sentry.MaskSender(l.AuthorPhone),
		"quizzes":    quizList,
		"media":      mediaList,
		"created_at": l.CreatedAt,
		"updated_at": l.UpdatedAt,
	}
	if l.Slug != "" {
		resp["path"] = lesson.Path(l.Slug)
	}
	c.JSON(http.StatusOK, resp)
}
