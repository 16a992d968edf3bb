// Package monitor exposes a read-only HTTP view of a running manipulator
// session for dashboards and operator tooling.
package monitor

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tactilekit/manipulator/pkg/robot"
)

// Source is the slice of the manipulator the monitor reads from. All
// methods must be safe for concurrent use.
type Source interface {
	Connected() bool
	SessionID() string
	RobotType() robot.RobotType
	Features() map[string]robot.Feature
	Diagnostics() map[string]any
	AvailableArms() []string
	TactileErrorSummary() map[string]map[string]string
}

// Server serves the monitoring API.
type Server struct {
	source    Source
	startTime time.Time
}

// apiResponse is the envelope every endpoint answers with.
type apiResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// statusResponse reports session-level state.
type statusResponse struct {
	Connected    bool                         `json:"connected"`
	SessionID    string                       `json:"session_id"`
	RobotType    string                       `json:"robot_type"`
	Arms         []string                     `json:"arms"`
	TactileFault map[string]map[string]string `json:"tactile_faults,omitempty"`
	Uptime       string                       `json:"uptime"`
}

// NewServer creates a monitor over a manipulator.
func NewServer(source Source) *Server {
	return &Server{
		source:    source,
		startTime: time.Now(),
	}
}

// Router builds the gin engine with all routes installed.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/features", s.handleFeatures)
		v1.GET("/diagnostics", s.handleDiagnostics)
	}
	return r
}

// Run serves the API on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := statusResponse{
		Connected: s.source.Connected(),
		RobotType: string(s.source.RobotType()),
		Arms:      s.source.AvailableArms(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	if resp.Connected {
		resp.SessionID = s.source.SessionID()
		resp.TactileFault = s.source.TactileErrorSummary()
	}
	c.JSON(http.StatusOK, apiResponse{Status: "success", Data: resp})
}

func (s *Server) handleFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, apiResponse{Status: "success", Data: s.source.Features()})
}

func (s *Server) handleDiagnostics(c *gin.Context) {
	if !s.source.Connected() {
		c.JSON(http.StatusServiceUnavailable, apiResponse{Status: "error", Data: "not connected"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Status: "success", Data: s.source.Diagnostics()})
}
