package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/execution"
	"paper_trade/internal/infra"
	"paper_trade/internal/ledger"
	"paper_trade/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Refresher triggers an immediate price refresh pass.
type Refresher interface {
	RefreshOnce(ctx context.Context) error
}

// Server exposes the ledger over HTTP. It is a thin collaborator: every
// mutation goes through the execution engine or the price store, and
// reads return committed state. Authentication is the deployment's
// concern; callers supply the user id directly.
type Server struct {
	engine    *execution.Engine
	ledger    *ledger.Ledger
	prices    *service.PriceStore
	refresher Refresher
	hub       *Hub
}

// New creates a Server and wires the price stream hub to the store
func New(engine *execution.Engine, book *ledger.Ledger, prices *service.PriceStore, refresher Refresher) *Server {
	s := &Server{
		engine:    engine,
		ledger:    book,
		prices:    prices,
		refresher: refresher,
		hub:       NewHub(),
	}
	prices.OnObservation(s.hub.Broadcast)
	return s
}

// Router builds the gin route table
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.POST("/trades", s.handleTradeCreate)
	api.GET("/trades/:user", s.handleTradeHistory)
	api.GET("/portfolio/:user", s.handlePortfolio)
	api.GET("/prices", s.handlePrices)
	api.GET("/price-history/:symbol", s.handlePriceHistory)
	api.POST("/update-prices", s.handleUpdatePrices)
	api.GET("/metrics", s.handleMetrics)

	r.GET("/ws/prices", s.handlePriceStream)

	return r
}

type tradeRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Pair   string          `json:"pair" binding:"required"`
	Side   string          `json:"side" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleTradeCreate(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trade, err := s.engine.Execute(c.Request.Context(), req.UserID, req.Pair, req.Side, req.Amount)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, trade)
}

// statusForError maps engine errors onto HTTP status codes: caller input
// problems are 400, funds problems 422, unknown pairs 404, the rest 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPairNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleTradeHistory(c *gin.Context) {
	trades, err := s.ledger.RecentTrades(c.Param("user"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	view, err := s.ledger.Portfolio(c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handlePrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": s.prices.Symbols()})
}

type priceHistoryResponse struct {
	Symbol     string   `json:"symbol"`
	Timestamps []string `json:"timestamps"`
	Prices     []string `json:"prices"`
}

func (s *Server) handlePriceHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	symbol := c.Param("symbol")
	obs, err := s.prices.History(symbol, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	resp := priceHistoryResponse{
		Symbol:     symbol,
		Timestamps: make([]string, 0, len(obs)),
		Prices:     make([]string, 0, len(obs)),
	}
	for _, o := range obs {
		resp.Timestamps = append(resp.Timestamps, o.Timestamp.UTC().Format(time.RFC3339))
		resp.Prices = append(resp.Prices, o.Price.String())
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUpdatePrices(c *gin.Context) {
	if err := s.refresher.RefreshOnce(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, infra.GlobalMetrics.Snapshot())
}

func (s *Server) handlePriceStream(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request)
}
