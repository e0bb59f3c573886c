package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	changeorderdomain "github.com/smallbiznis/jobledger/internal/changeorder/domain"
	"github.com/smallbiznis/jobledger/internal/config"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	expensedomain "github.com/smallbiznis/jobledger/internal/expense/domain"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	obsmetrics "github.com/smallbiznis/jobledger/internal/observability/metrics"
	payeedomain "github.com/smallbiznis/jobledger/internal/payee/domain"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	quotedomain "github.com/smallbiznis/jobledger/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	return NewEngine(log, httpMetrics, gatherer)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config

	projectSvc     projectdomain.Service
	payeeSvc       payeedomain.Service
	estimateSvc    estimatedomain.Service
	quoteSvc       quotedomain.Service
	changeOrderSvc changeorderdomain.Service
	expenseSvc     expensedomain.Service
	financeSvc     financedomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	ProjectSvc     projectdomain.Service
	PayeeSvc       payeedomain.Service
	EstimateSvc    estimatedomain.Service
	QuoteSvc       quotedomain.Service
	ChangeOrderSvc changeorderdomain.Service
	ExpenseSvc     expensedomain.Service
	FinanceSvc     financedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		projectSvc:     p.ProjectSvc,
		payeeSvc:       p.PayeeSvc,
		estimateSvc:    p.EstimateSvc,
		quoteSvc:       p.QuoteSvc,
		changeOrderSvc: p.ChangeOrderSvc,
		expenseSvc:     p.ExpenseSvc,
		financeSvc:     p.FinanceSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Projects --------
	api.GET("/projects", s.ListProjects)
	api.POST("/projects", s.CreateProject)
	api.GET("/projects/:id", s.GetProjectByID)
	api.POST("/projects/:id/status", s.UpdateProjectStatus)
	api.GET("/projects/:id/snapshot", s.GetProjectSnapshot)
	api.POST("/projects/:id/recompute", s.RecomputeProjectSnapshot)

	// -------- Payees --------
	api.GET("/payees", s.ListPayees)
	api.POST("/payees", s.CreatePayee)
	api.GET("/payees/:id", s.GetPayeeByID)

	// -------- Estimates --------
	api.GET("/projects/:id/estimates", s.ListEstimates)
	api.POST("/estimates", s.CreateEstimate)
	api.GET("/estimates/:id", s.GetEstimateByID)
	api.POST("/estimates/:id/status", s.UpdateEstimateStatus)
	api.POST("/estimates/:id/mark-current", s.MarkEstimateCurrent)
	api.POST("/estimates/:id/contingency-use", s.RecordContingencyUse)

	// -------- Quotes --------
	api.GET("/projects/:id/quotes", s.ListQuotes)
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/:id", s.GetQuoteByID)
	api.POST("/quotes/:id/accept", s.AcceptQuote)
	api.POST("/quotes/:id/reject", s.RejectQuote)

	// -------- Change Orders --------
	api.GET("/projects/:id/change-orders", s.ListChangeOrders)
	api.POST("/change-orders", s.CreateChangeOrder)
	api.GET("/change-orders/:id", s.GetChangeOrderByID)
	api.POST("/change-orders/:id/submit", s.SubmitChangeOrder)
	api.POST("/change-orders/:id/approve", s.ApproveChangeOrder)
	api.POST("/change-orders/:id/reject", s.RejectChangeOrder)

	// -------- Expenses --------
	api.GET("/projects/:id/expenses", s.ListExpenses)
	api.POST("/expenses", s.CreateExpense)
	api.GET("/expenses/:id", s.GetExpenseByID)
	api.POST("/expenses/:id/status", s.UpdateExpenseStatus)
	api.DELETE("/expenses/:id", s.DeleteExpense)
}
