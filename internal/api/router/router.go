package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/Ashutoshgit47/ImageWrangler/internal/api/handlers/image"
	"github.com/Ashutoshgit47/ImageWrangler/internal/middleware"
)

func Setup(h *image.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/upload", h.Upload)         // queue an image for async processing
	api.POST("/process", h.Process)       // synchronous transform, returns the blob
	api.POST("/validate", h.Validate)     // full adversarial-input check
	api.POST("/merge", h.Merge)           // grid-merge N images into one
	api.GET("/image/:id", h.Get)          // image bytes by id
	api.GET("/image/:id/meta", h.GetMeta) // job record by id
	api.DELETE("/image/:id", h.Delete)    // delete image by id

	return r
}
