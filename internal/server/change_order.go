package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	changeorderdomain "github.com/smallbiznis/jobledger/internal/changeorder/domain"
)

func (s *Server) CreateChangeOrder(c *gin.Context) {
	var req changeorderdomain.CreateChangeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.ProjectID == 0 {
		AbortWithError(c, newValidationError("project_id", "invalid_project_id", "invalid project id"))
		return
	}

	resp, err := s.changeOrderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListChangeOrders(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.changeOrderSvc.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetChangeOrderByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.changeOrderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitChangeOrder(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.changeOrderSvc.Submit(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveChangeOrder(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.changeOrderSvc.Approve(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectChangeOrder(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.changeOrderSvc.Reject(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
