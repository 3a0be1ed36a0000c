package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
)

// IdentityResponse describes one reference embedding.
type IdentityResponse struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// IdentityRequest is the body of PUT /api/v1/identities/:name.
type IdentityRequest struct {
	Embedding []float32 `json:"embedding"`
}

// ThresholdRequest is the body of PUT /api/v1/identities/threshold.
type ThresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

func (s *Server) initIdentityRoutes(g *echo.Group) {
	g.GET("", s.listIdentities)
	g.GET("/threshold", s.getThreshold)
	g.PUT("/threshold", s.setThreshold)
	g.POST("/save", s.saveIdentities)
	g.POST("/reload", s.reloadIdentities)
	g.GET("/:name", s.getIdentity)
	g.PUT("/:name", s.putIdentity)
	g.DELETE("/:name", s.deleteIdentity)
}

// listIdentities handles GET /api/v1/identities
func (s *Server) listIdentities(c echo.Context) error {
	if s.store == nil {
		return s.unavailable(c, "identity store")
	}

	refs := s.store.Snapshot()
	out := make([]IdentityResponse, 0, len(refs))
	for _, ref := range refs {
		out = append(out, IdentityResponse{Name: ref.Name, Dimension: len(ref.Embedding)})
	}
	return c.JSON(http.StatusOK, out)
}

// getIdentity handles GET /api/v1/identities/:name
func (s *Server) getIdentity(c echo.Context) error {
	if s.store == nil {
		return s.unavailable(c, "identity store")
	}

	name := c.Param("name")
	emb, ok := s.store.Embedding(name)
	if !ok {
		return s.HandleError(c, nil, "identity "+name+" not found", http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, IdentityResponse{Name: name, Dimension: len(emb), Embedding: emb})
}

// putIdentity handles PUT /api/v1/identities/:name. Existing names keep their position.
func (s *Server) putIdentity(c echo.Context) error {
	if s.store == nil {
		return s.unavailable(c, "identity store")
	}

	var req IdentityRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	if len(req.Embedding) == 0 {
		return s.HandleError(c, nil, "embedding must not be empty", http.StatusBadRequest)
	}

	name := c.Param("name")
	_, existed := s.store.Embedding(name)
	s.store.Add(name, req.Embedding)
	s.log.Info("identity stored via API", logger.String("name", name), logger.Int("dimension", len(req.Embedding)))

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	return c.JSON(code, IdentityResponse{Name: name, Dimension: len(req.Embedding)})
}

// deleteIdentity handles DELETE /api/v1/identities/:name
func (s *Server) deleteIdentity(c echo.Context) error {
	if s.store == nil {
		return s.unavailable(c, "identity store")
	}

	name := c.Param("name")
	if !s.store.Remove(name) {
		return s.HandleError(c, nil, "identity "+name+" not found", http.StatusNotFound)
	}
	s.log.Info("identity removed via API", logger.String("name", name))
	return c.NoContent(http.StatusNoContent)
}

// saveIdentities handles POST /api/v1/identities/save
func (s *Server) saveIdentities(c echo.Context) error {
	if s.store == nil || s.repo == nil {
		return s.unavailable(c, "identity persistence")
	}

	if err := s.store.SaveTo(c.Request().Context(), s.repo); err != nil {
		return s.HandleError(c, err, "failed to save identities", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, map[string]int{"saved": s.store.Len()})
}

// reloadIdentities handles POST /api/v1/identities/reload. A failed load keeps the
// current references.
func (s *Server) reloadIdentities(c echo.Context) error {
	if s.store == nil || s.repo == nil {
		return s.unavailable(c, "identity persistence")
	}

	if err := s.store.LoadFrom(c.Request().Context(), s.repo); err != nil {
		code := http.StatusInternalServerError
		if errors.IsCategory(err, errors.CategoryFileParsing) || errors.IsCategory(err, errors.CategoryValidation) {
			code = http.StatusUnprocessableEntity
		}
		return s.HandleError(c, err, "failed to reload identities", code)
	}
	return c.JSON(http.StatusOK, map[string]int{"loaded": s.store.Len()})
}

// getThreshold handles GET /api/v1/identities/threshold
func (s *Server) getThreshold(c echo.Context) error {
	if s.store == nil {
		return s.unavailable(c, "identity store")
	}
	return c.JSON(http.StatusOK, ThresholdRequest{Threshold: s.store.Threshold()})
}

// setThreshold handles PUT /api/v1/identities/threshold
func (s *Server) setThreshold(c echo.Context) error {
	if s.store == nil {
		return s.unavailable(c, "identity store")
	}

	var req ThresholdRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	if req.Threshold < -1 || req.Threshold > 1 {
		return s.HandleError(c, nil, "threshold must be within [-1, 1]", http.StatusBadRequest)
	}

	s.store.SetThreshold(req.Threshold)
	s.log.Info("match threshold changed via API", logger.Float64("threshold", req.Threshold))
	return c.JSON(http.StatusOK, req)
}
