package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) initTrackRoutes(g *echo.Group) {
	g.GET("", s.listTracks)
	g.DELETE("", s.flushTracks)
	g.GET("/:id", s.getTrack)
	g.DELETE("/:id", s.forgetTrack)
}

func (s *Server) trackID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// listTracks handles GET /api/v1/tracks
func (s *Server) listTracks(c echo.Context) error {
	if s.tracks == nil {
		return s.unavailable(c, "track cache")
	}
	return c.JSON(http.StatusOK, s.tracks.Entries())
}

// getTrack handles GET /api/v1/tracks/:id
func (s *Server) getTrack(c echo.Context) error {
	if s.tracks == nil {
		return s.unavailable(c, "track cache")
	}

	id, err := s.trackID(c)
	if err != nil {
		return s.HandleError(c, err, "invalid track id", http.StatusBadRequest)
	}
	entry, ok := s.tracks.Entry(id)
	if !ok {
		return s.HandleError(c, nil, "track not found", http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, entry)
}

// forgetTrack handles DELETE /api/v1/tracks/:id. The next detection of the track
// resolves its identity again.
func (s *Server) forgetTrack(c echo.Context) error {
	if s.tracks == nil {
		return s.unavailable(c, "track cache")
	}

	id, err := s.trackID(c)
	if err != nil {
		return s.HandleError(c, err, "invalid track id", http.StatusBadRequest)
	}
	s.tracks.Forget(id)
	return c.NoContent(http.StatusNoContent)
}

// flushTracks handles DELETE /api/v1/tracks
func (s *Server) flushTracks(c echo.Context) error {
	if s.tracks == nil {
		return s.unavailable(c, "track cache")
	}
	s.tracks.Flush()
	return c.NoContent(http.StatusNoContent)
}
