package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	payeedomain "github.com/smallbiznis/jobledger/internal/payee/domain"
)

type createPayeeRequest struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Email      string          `json:"email"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
}

func (s *Server) CreatePayee(c *gin.Context) {
	var req createPayeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payeeSvc.Create(c.Request.Context(), payeedomain.CreatePayeeRequest{
		Name:       strings.TrimSpace(req.Name),
		Type:       payeedomain.PayeeType(strings.TrimSpace(req.Type)),
		Email:      strings.TrimSpace(req.Email),
		HourlyRate: req.HourlyRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayees(c *gin.Context) {
	resp, err := s.payeeSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayeeByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payeeSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
