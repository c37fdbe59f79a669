package web

// server.go — dashboard HTTP del bot.
//
// Todo el estado viene inyectado: el servidor solo lee snapshots del
// portfolio/runner y delega start/stop. Sin estado propio más allá del
// http.Server.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/weatherbot/internal/engine"
	"github.com/alejandrodnm/weatherbot/internal/portfolio"
	"github.com/alejandrodnm/weatherbot/internal/scorer"
)

// Server expone el estado del bot por HTTP.
type Server struct {
	pf     *portfolio.Portfolio
	runner *engine.Runner
	scorer *scorer.MarketScorer

	// baseCtx gobierna la vida de los workers lanzados desde /api/bot/start.
	baseCtx context.Context
	srv     *http.Server
}

// NewServer construye el servidor con sus dependencias. baseCtx es el
// contexto raíz del proceso: los workers arrancados vía API mueren con él.
func NewServer(baseCtx context.Context, addr string, pf *portfolio.Portfolio,
	runner *engine.Runner, sc *scorer.MarketScorer) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		pf:      pf,
		runner:  runner,
		scorer:  sc,
		baseCtx: baseCtx,
	}

	api := router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/scores", s.getScores)

		bot := api.Group("/bot")
		{
			bot.POST("/start", s.startBot)
			bot.POST("/stop", s.stopBot)
		}
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start bloquea sirviendo HTTP hasta Shutdown.
func (s *Server) Start() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("web.Start: %w", err)
	}
	return nil
}

// Shutdown para el servidor dejando terminar las requests en vuelo.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// getStatus devuelve el snapshot completo del portfolio más el estado
// operativo del runner.
func (s *Server) getStatus(c *gin.Context) {
	snap := s.pf.Snapshot()

	topScore := 0
	for _, opp := range s.runner.LastOpportunities() {
		if opp.ScoreTotal > topScore {
			topScore = opp.ScoreTotal
		}
	}

	resp := gin.H{
		"portfolio":          snap,
		"bot_status":         s.runner.Status(),
		"scan_count":         s.runner.ScanCount(),
		"last_opportunities": s.runner.LastOpportunities(),
		"price_thread_alive": s.runner.PriceWorkerAlive(),
		"tracked_markets":    s.scorer.Tracked(),
		"top_score":          topScore,
	}
	if at, ok := s.runner.LastPriceUpdate(); ok {
		resp["last_price_update"] = at.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// scoreEntry es una fila de /api/scores.
type scoreEntry struct {
	ConditionID string `json:"condition_id"`
	Score       int    `json:"score"`
	Zone        string `json:"zone"`
	Price       int    `json:"price_score"`
	Trajectory  int    `json:"trajectory_score"`
	Volume      int    `json:"volume_score"`
	Obs         int    `json:"observations"`
}

// getScores devuelve los scores en vivo de todos los mercados trackeados,
// mejores primero.
func (s *Server) getScores(c *gin.Context) {
	all := s.scorer.AllScores()

	entries := make([]scoreEntry, 0, len(all))
	for cid, result := range all {
		entries = append(entries, scoreEntry{
			ConditionID: cid,
			Score:       result.Total,
			Zone:        string(result.Zone),
			Price:       result.Price,
			Trajectory:  result.Trajectory,
			Volume:      result.Volume,
			Obs:         result.Observations,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ConditionID < entries[j].ConditionID
	})

	c.JSON(http.StatusOK, gin.H{"scores": entries, "tracked": len(entries)})
}

func (s *Server) startBot(c *gin.Context) {
	if s.runner.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"status": "running", "message": "el bot ya está corriendo"})
		return
	}
	s.runner.Start(s.baseCtx)
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

func (s *Server) stopBot(c *gin.Context) {
	if !s.runner.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"status": "stopped", "message": "el bot no está corriendo"})
		return
	}
	s.runner.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
