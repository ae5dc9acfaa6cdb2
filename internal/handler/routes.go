package handler

import "github.com/gofiber/fiber/v2"

// Handlers groups the API handlers mounted under /api
type Handlers struct {
	Scenes   *SceneHandler
	Generate *GenerateHandler
	Jobs     *JobHandler
	Timeline *TimelineHandler
	Upload   *UploadHandler
}

// Limits are optional per-group rate limiters
type Limits struct {
	Generate fiber.Handler
	Scenes   fiber.Handler
	Upload   fiber.Handler
}

// Mount registers every API route on api
func (h *Handlers) Mount(api fiber.Router, limits Limits) {
	scenes := api.Group("/scenes", orNext(limits.Scenes))
	scenes.Post("/parse", h.Scenes.Parse)
	scenes.Post("/edit", h.Scenes.Edit)

	generate := api.Group("/generate", orNext(limits.Generate))
	generate.Post("/clip", h.Generate.Clip)
	generate.Post("/scenes", h.Generate.Scenes)
	generate.Post("/voice", h.Generate.Voice)
	generate.Post("/script", h.Generate.Script)
	generate.Post("/thumbnail", h.Generate.Thumbnail)

	jobs := api.Group("/jobs")
	jobs.Get("/", h.Jobs.List)
	jobs.Get("/:jobId", h.Jobs.Get)
	jobs.Delete("/:jobId", h.Jobs.Delete)
	jobs.Post("/:jobId/track", h.Jobs.Track)
	jobs.Post("/:jobId/stop", h.Jobs.Stop)

	tl := api.Group("/projects/:projectId/timeline")
	tl.Get("/", h.Timeline.Get)
	tl.Put("/", h.Timeline.Put)
	tl.Delete("/", h.Timeline.Delete)
	tl.Post("/clips", h.Timeline.InsertClip)
	tl.Delete("/clips/:clipId", h.Timeline.RemoveClip)
	tl.Post("/clips/:clipId/move", h.Timeline.MoveClip)
	tl.Post("/clips/:clipId/trim", h.Timeline.TrimClip)
	tl.Post("/select", h.Timeline.Select)
	tl.Post("/scrub", h.Timeline.Scrub)
	tl.Post("/assemble", orNext(limits.Generate), h.Timeline.Assemble)

	upload := api.Group("/upload", orNext(limits.Upload))
	upload.Post("/voice", h.Upload.Voice)
	upload.Delete("/voice", h.Upload.DeleteVoice)
	upload.Get("/signed-url", h.Upload.SignedURL)
}

func orNext(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}
