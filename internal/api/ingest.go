package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/optix-bridge/optix-bridge/internal/pipeline"
)

func (s *Server) initIngestRoutes(g *echo.Group) {
	g.GET("/ingest", s.ingestStats)
	g.POST("/ingest/pause", s.pauseIngest)
	g.POST("/ingest/resume", s.resumeIngest)

	g.GET("/processor", s.processorStats)
	g.POST("/detections", s.submitDetections)
}

// ingestStats handles GET /api/v1/ingest
func (s *Server) ingestStats(c echo.Context) error {
	if s.ingest == nil {
		return s.unavailable(c, "frame ingest")
	}
	return c.JSON(http.StatusOK, s.ingest.Stats())
}

// pauseIngest handles POST /api/v1/ingest/pause. Streams keep queueing until the
// queue is full, after which they fail.
func (s *Server) pauseIngest(c echo.Context) error {
	if s.ingest == nil {
		return s.unavailable(c, "frame ingest")
	}
	s.ingest.Pause()
	return c.JSON(http.StatusOK, s.ingest.Stats())
}

// resumeIngest handles POST /api/v1/ingest/resume
func (s *Server) resumeIngest(c echo.Context) error {
	if s.ingest == nil {
		return s.unavailable(c, "frame ingest")
	}
	s.ingest.Resume()
	return c.JSON(http.StatusOK, s.ingest.Stats())
}

// processorStats handles GET /api/v1/processor
func (s *Server) processorStats(c echo.Context) error {
	if s.processor == nil {
		return s.unavailable(c, "detection processor")
	}
	return c.JSON(http.StatusOK, s.processor.Stats())
}

// submitDetections handles POST /api/v1/detections. It accepts one detection batch,
// or an array of them, from an external pipeline probe.
func (s *Server) submitDetections(c echo.Context) error {
	if s.processor == nil {
		return s.unavailable(c, "detection processor")
	}

	var batches []pipeline.DetectionBatch
	body := c.Request().Body
	if err := decodeBatches(body, &batches); err != nil {
		return s.HandleError(c, err, "invalid detection batch", http.StatusBadRequest)
	}

	accepted := 0
	for i := range batches {
		if s.processor.Submit(&batches[i]) {
			accepted++
		}
	}

	code := http.StatusAccepted
	if accepted < len(batches) {
		code = http.StatusTooManyRequests
	}
	return c.JSON(code, map[string]int{"accepted": accepted, "dropped": len(batches) - accepted})
}
