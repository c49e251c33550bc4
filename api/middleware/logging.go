package middleware

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetLogger replaces the middleware logger, so requests share the
// application logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// GetLogger returns the middleware logger.
func GetLogger() *logrus.Logger {
	return log
}

// Logger records one line per request with status, latency and client info.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.WithFields(logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency":     time.Since(start).String(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
			"user_agent":  c.Request.UserAgent(),
		}).Info("HTTP request")
	}
}

// SetTraceID propagates the X-Trace-ID header, generating one when absent.
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		c.Set("TraceID", traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}

func generateTraceID() string {
	return uuid.NewString()
}
