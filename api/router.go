package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ufro-labs/norma-qa/api/handler"
	"github.com/ufro-labs/norma-qa/api/middleware"
)

// SetupRouter wires all API endpoints and global middleware.
func SetupRouter(
	qaHandler *handler.QAHandler,
	docHandler *handler.DocumentHandler,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())
	router.Use(Cors())

	api := router.Group("/api")
	{
		// Answer a question - POST /api/ask
		api.POST("/ask", qaHandler.Ask)

		docGroup := api.Group("/documents")
		{
			// List catalog documents - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// Fetch one document - GET /api/documents/:id
			docGroup.GET("/:id", docHandler.GetDocument)
		}

		// Health check - GET /api/health
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors allows cross-origin requests when the API is served to a browser UI.
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
