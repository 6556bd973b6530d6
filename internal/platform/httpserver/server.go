package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	votingledger "voteledger/contexts/governance/voting-ledger"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	httptransport "voteledger/contexts/governance/voting-ledger/transport/http"
)

type Server struct {
	engine *gin.Engine
	logger *slog.Logger
	addr   string
	ledger votingledger.Module
	auth   identityAuth
}

func New(
	ledger votingledger.Module,
	jwtSecret string,
	corsOrigins []string,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		logger: logger,
		addr:   addr,
		ledger: ledger,
		auth: identityAuth{
			secret: []byte(jwtSecret),
			logger: logger,
		},
	}
	s.registerRoutes(corsOrigins)
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.engine,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return server.ListenAndServe()
}

// Handler exposes the router, mainly for httptest in server tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(corsOrigins []string) {
	s.engine.Use(s.requestLogger())

	origins := corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s.engine.GET("/healthz", s.handleHealthz)

	api := s.engine.Group("/api/v1")
	{
		api.GET("/polls", s.handleListPolls)
		api.GET("/polls/:poll_id", s.handleGetPoll)
		api.GET("/polls/:poll_id/results", s.handlePollResults)
		api.GET("/polls/:poll_id/candidates", s.handleListCandidates)
		api.GET("/polls/:poll_id/candidates/:candidate_id", s.handleGetCandidate)
		api.GET("/polls/:poll_id/votes/:voter_id", s.handleGetVote)

		protected := api.Group("")
		protected.Use(s.auth.requireSubject())
		{
			protected.POST("/polls", s.handleInitializePoll)
			protected.POST("/polls/:poll_id/candidates", s.handleRegisterCandidate)
			protected.POST("/polls/:poll_id/votes", s.handleCastVote)
		}
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInitializePoll(c *gin.Context) {
	var req httptransport.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeLedgerError(c, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.InitializePollHandler(c.Request.Context(), req)
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (s *Server) handleListPolls(c *gin.Context) {
	resp, err := s.ledger.Handler.ListPollsHandler(c.Request.Context())
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetPoll(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.GetPollHandler(c.Request.Context(), pollID)
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePollResults(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.PollResultsHandler(c.Request.Context(), pollID)
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRegisterCandidate(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}
	var req httptransport.RegisterCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeLedgerError(c, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.RegisterCandidateHandler(c.Request.Context(), pollID, subjectFrom(c), req)
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleListCandidates(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.ListCandidatesHandler(c.Request.Context(), pollID)
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetCandidate(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.GetCandidateHandler(c.Request.Context(), pollID, c.Param("candidate_id"))
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCastVote(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}
	var req httptransport.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeLedgerError(c, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.CastVoteHandler(c.Request.Context(), pollID, subjectFrom(c), req)
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleGetVote(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.GetVoteHandler(c.Request.Context(), pollID, c.Param("voter_id"))
	if err != nil {
		writeLedgerDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		s.logger.Info("http request handled",
			"event", "http_request_handled",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func parsePollID(c *gin.Context) (uint64, bool) {
	pollID, err := strconv.ParseUint(c.Param("poll_id"), 10, 64)
	if err != nil {
		writeLedgerError(c, http.StatusBadRequest, "invalid_poll_id", "poll_id must be an unsigned integer")
		return 0, false
	}
	return pollID, true
}

func writeLedgerDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidInput):
		writeLedgerError(c, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domainerrors.ErrPollNotFound):
		writeLedgerError(c, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrCandidateNotFound):
		writeLedgerError(c, http.StatusNotFound, "candidate_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrVoteNotFound):
		writeLedgerError(c, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrDuplicateCandidate):
		writeLedgerError(c, http.StatusConflict, "candidate_already_registered", err.Error())
	case errors.Is(err, domainerrors.ErrDuplicateVote):
		writeLedgerError(c, http.StatusConflict, "voter_already_voted", err.Error())
	case errors.Is(err, domainerrors.ErrConflict):
		writeLedgerError(c, http.StatusConflict, "conflict", err.Error())
	default:
		writeLedgerError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeLedgerError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, httptransport.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
