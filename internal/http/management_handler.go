package http

import (
	"bufio"
	"context"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"astro-starter/internal/config"
	"astro-starter/internal/domain"
	"astro-starter/internal/logging"
	"astro-starter/internal/metrics"
)

const (
	statusUp   = "UP"
	statusDown = "DOWN"

	healthTimeout = 2 * time.Second
)

var loggerLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"}

// HealthCheck verifica una dependencia externa.
type HealthCheck func(ctx context.Context) error

// ManagementHandler expone los endpoints de /management.
type ManagementHandler struct {
	logger  *zap.Logger
	appName string
	cfg     *config.Config
	logs    *logging.Registry
	metrics *metrics.Metrics
	checks  map[string]HealthCheck
}

func NewManagementHandler(logger *zap.Logger, cfg *config.Config, logs *logging.Registry, m *metrics.Metrics, checks map[string]HealthCheck) *ManagementHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManagementHandler{
		logger:  logger,
		appName: cfg.AppName,
		cfg:     cfg,
		logs:    logs,
		metrics: m,
		checks:  checks,
	}
}

// Info maneja GET /management/info.
func (h *ManagementHandler) Info(c *gin.Context) {
	profiles := []string{}
	if h.cfg.SwaggerEnabled {
		profiles = append(profiles, "swagger")
	}
	profiles = append(profiles, h.cfg.AppProfile)
	c.JSON(http.StatusOK, domain.ManagementInfo{
		ActiveProfiles:          profiles,
		DisplayRibbonOnProfiles: h.cfg.AppProfile,
	})
}

type healthComponent struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks []healthComponent `json:"checks"`
}

// Health maneja GET /management/health: 503 si alguna dependencia está caída.
func (h *ManagementHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: statusUp, Checks: make([]healthComponent, 0, len(names))}
	for _, name := range names {
		comp := healthComponent{Name: name, Status: statusUp}
		if err := h.checks[name](ctx); err != nil {
			comp.Status = statusDown
			comp.Error = err.Error()
			resp.Status = statusDown
			h.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
		}
		resp.Checks = append(resp.Checks, comp)
	}

	status := http.StatusOK
	if resp.Status == statusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

type loggersResponse struct {
	Levels  []string                   `json:"levels"`
	Loggers map[string]domain.LoggerVM `json:"loggers"`
}

// Loggers maneja GET /management/loggers.
func (h *ManagementHandler) Loggers(c *gin.Context) {
	c.JSON(http.StatusOK, loggersResponse{
		Levels:  loggerLevels,
		Loggers: h.logs.Levels(),
	})
}

// UpdateLogger maneja POST /management/loggers/:name con {"configuredLevel": "..."}.
func (h *ManagementHandler) UpdateLogger(c *gin.Context) {
	var vm domain.LoggerVM
	if err := c.ShouldBindJSON(&vm); err != nil {
		writeProblem(c, h.appName, validationProblem("loggerVM", err))
		return
	}
	name := c.Param("name")
	if err := h.logs.SetLevel(name, vm.ConfiguredLevel); err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	h.logger.Info("logger level changed", zap.String("logger", name), zap.String("level", vm.ConfiguredLevel))
	c.Status(http.StatusOK)
}

type envResponse struct {
	ActiveProfiles  []string                `json:"activeProfiles"`
	PropertySources []config.PropertySource `json:"propertySources"`
}

// Env maneja GET /management/env. Los valores secretos salen ofuscados.
func (h *ManagementHandler) Env(c *gin.Context) {
	c.JSON(http.StatusOK, envResponse{
		ActiveProfiles:  []string{h.cfg.AppProfile},
		PropertySources: h.cfg.PropertySources(),
	})
}

// ConfigProps maneja GET /management/configprops.
func (h *ManagementHandler) ConfigProps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"contexts": gin.H{
			"App": gin.H{"beans": h.cfg.Beans()},
		},
	})
}

// Metrics maneja GET /management/metrics.
func (h *ManagementHandler) Metrics(c *gin.Context) {
	snapshot, err := h.metrics.Snapshot()
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type threadInfo struct {
	ThreadID    string   `json:"threadId"`
	ThreadName  string   `json:"threadName"`
	ThreadState string   `json:"threadState"`
	StackTrace  []string `json:"stackTrace"`
}

// ThreadDump maneja GET /management/threaddump con el volcado de goroutines.
func (h *ManagementHandler) ThreadDump(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"threads": parseGoroutines(goroutineDump())})
}

// Prometheus maneja GET /management/prometheus.
func (h *ManagementHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

func goroutineDump() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// parseGoroutines separa el volcado en bloques "goroutine N [estado]:".
func parseGoroutines(dump []byte) []threadInfo {
	var threads []threadInfo
	var current *threadInfo

	scanner := bufio.NewScanner(strings.NewReader(string(dump)))
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "goroutine ") && strings.HasSuffix(line, ":") {
			if current != nil {
				threads = append(threads, *current)
			}
			current = parseGoroutineHeader(line)
			continue
		}
		if current == nil || strings.TrimSpace(line) == "" {
			continue
		}
		current.StackTrace = append(current.StackTrace, strings.TrimSpace(line))
	}
	if current != nil {
		threads = append(threads, *current)
	}
	if threads == nil {
		threads = []threadInfo{}
	}
	return threads
}

func parseGoroutineHeader(line string) *threadInfo {
	header := strings.TrimSuffix(strings.TrimPrefix(line, "goroutine "), ":")
	id, rest, _ := strings.Cut(header, " ")
	state := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(rest), "["), "]")
	if i := strings.Index(state, ","); i >= 0 {
		state = state[:i]
	}
	return &threadInfo{
		ThreadID:    id,
		ThreadName:  "goroutine " + id,
		ThreadState: strings.ToUpper(state),
		StackTrace:  []string{},
	}
}
