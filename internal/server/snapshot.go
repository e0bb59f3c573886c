package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetProjectSnapshot(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.financeSvc.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RecomputeProjectSnapshot forces a full rebuild; normal writes keep the
// snapshot fresh on their own, this exists for backfill after imports.
func (s *Server) RecomputeProjectSnapshot(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.financeSvc.Recompute(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
