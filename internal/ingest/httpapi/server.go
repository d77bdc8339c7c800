// Package httpapi serves the producer push endpoints and the measurement
// query API over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/export"
	httpexport "github.com/ethpandaops/e2kpm/internal/export/http"
	"github.com/ethpandaops/e2kpm/internal/ingest"
	"github.com/ethpandaops/e2kpm/internal/ingest/schema"
	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
	"github.com/ethpandaops/e2kpm/internal/kpm/ueid"
)

// Config configures the HTTP API server.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address. Defaults to ":8080".
	Addr string `yaml:"addr"`
	// MaxBodyBytes bounds a decompressed report body. Defaults to 4MB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// ReadTimeout bounds reading one request. Defaults to 10s.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}

	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4 << 20
	}

	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
}

// Server is the gin based HTTP API.
type Server struct {
	log      logrus.FieldLogger
	cfg      Config
	ingester *ingest.Ingester
	provider *provider.Provider
	health   *export.HealthMetrics
	engine   *gin.Engine

	server   *http.Server
	listener net.Listener
}

// NewServer builds the router. health may be nil.
func NewServer(
	log logrus.FieldLogger,
	cfg Config,
	ing *ingest.Ingester,
	p *provider.Provider,
	health *export.HealthMetrics,
) *Server {
	cfg.ApplyDefaults()

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:      log.WithField("component", "httpapi"),
		cfg:      cfg,
		ingester: ing,
		provider: p,
		health:   health,
		engine:   gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.observe)

	v1 := s.engine.Group("/v1")
	v1.POST("/reports/scheduler", s.pushReport(schema.TypeScheduler))
	v1.POST("/reports/rlc", s.pushReport(schema.TypeRLC))
	v1.GET("/metrics", s.listMetrics)
	v1.GET("/metrics/:name", s.getMeasData)
	v1.GET("/metrics/:name/supported", s.isSupported)
	v1.GET("/catalog", s.getCatalog)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("HTTP API server started")

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP API server error")
		}
	}()

	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.cfg.Addr
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http api: %w", err)
	}

	return nil
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()

	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}

	status := c.Writer.Status()

	s.log.WithFields(logrus.Fields{
		"method":   c.Request.Method,
		"route":    route,
		"status":   status,
		"duration": time.Since(start),
	}).Debug("Handled request")

	if s.health != nil {
		s.health.QueryRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	}
}

func (s *Server) pushReport(typ string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := s.readBody(c)
		if err != nil {
			status := http.StatusBadRequest

			switch {
			case errors.Is(err, httpexport.ErrUnsupportedEncoding):
				status = http.StatusUnsupportedMediaType
			case errors.Is(err, httpexport.ErrBodyTooLarge):
				status = http.StatusRequestEntityTooLarge
			}

			c.JSON(status, gin.H{"error": err.Error()})

			return
		}

		if err := s.ingester.DecodeReport(ingest.TransportHTTP, typ, body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

func (s *Server) readBody(c *gin.Context) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, s.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if int64(len(raw)) > s.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", httpexport.ErrBodyTooLarge, s.cfg.MaxBodyBytes)
	}

	return httpexport.Decompress(c.GetHeader("Content-Encoding"), raw, s.cfg.MaxBodyBytes)
}

func levelParam(c *gin.Context) (catalog.Level, bool) {
	level, ok := catalog.ParseLevel(c.DefaultQuery("level", "node"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown level %q", c.Query("level"))})
	}

	return level, ok
}

func (s *Server) listMetrics(c *gin.Context) {
	level, ok := levelParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"level":   level.String(),
		"metrics": s.provider.SupportedMetricNames(level),
	})
}

func (s *Server) isSupported(c *gin.Context) {
	name := c.Param("name")

	level, ok := levelParam(c)
	if !ok {
		return
	}

	label, ok := catalog.ParseLabel(c.DefaultQuery("label", catalog.NoLabel.String()))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown label %q", c.Query("label"))})

		return
	}

	cellScope, err := strconv.ParseBool(c.DefaultQuery("cell_scope", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cell_scope must be a boolean"})

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":       name,
		"level":      level.String(),
		"label":      label.String(),
		"cell_scope": cellScope,
		"supported":  s.provider.IsMetricSupported(name, label, level, cellScope),
	})
}

// measDataResponse lists records label-major: records[i*len(ues)+j] belongs
// to labels[i] and ues[j].
type measDataResponse struct {
	Name    string            `json:"name"`
	Labels  []string          `json:"labels"`
	UEs     []string          `json:"ues,omitempty"`
	Cell    string            `json:"cell,omitempty"`
	Records []provider.Record `json:"records"`
}

func (s *Server) getMeasData(c *gin.Context) {
	name := c.Param("name")

	def, ok := s.provider.Catalog().Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown metric %q", name)})

		return
	}

	resp := measDataResponse{Name: name, Records: []provider.Record{}}

	labelNames := c.QueryArray("label")
	if len(labelNames) == 0 {
		labelNames = []string{catalog.NoLabel.String()}
	}

	labels := make([]provider.LabelInfo, 0, len(labelNames))

	for _, n := range labelNames {
		l, ok := catalog.ParseLabel(n)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown label %q", n)})

			return
		}

		labels = append(labels, provider.LabelInfo{Label: l})
		resp.Labels = append(resp.Labels, l.String())
	}

	// Unresolvable UEs produce no records, so they are left out of the
	// response index too. Node-only metrics ignore UE filters.
	rawUEs := c.QueryArray("ue")
	if !def.Levels.Has(catalog.LevelUE) {
		rawUEs = nil
	}

	translator := s.provider.Translator()
	ues := make([]ueid.ID, 0, len(rawUEs))

	for _, raw := range rawUEs {
		id := ueid.ID(raw)
		if _, ok := translator.ToIndex(id); !ok {
			continue
		}

		ues = append(ues, id)
		resp.UEs = append(resp.UEs, raw)
	}

	if len(rawUEs) > 0 && len(ues) == 0 {
		c.JSON(http.StatusOK, resp)

		return
	}

	var cell *cellid.CellGlobalID

	if raw := c.Query("cell"); raw != "" {
		cgi, err := cellid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		cell = &cgi
		resp.Cell = cgi.String()
	}

	recs, err := s.query(name, labels, ues, cell)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if recs != nil {
		resp.Records = recs
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) query(
	name string,
	labels []provider.LabelInfo,
	ues []ueid.ID,
	cell *cellid.CellGlobalID,
) ([]provider.Record, error) {
	if cell == nil {
		return s.provider.GetMeasData(name, labels, ues, nil), nil
	}

	proto, err := cell.Proto()
	if err != nil {
		return nil, fmt.Errorf("encoding cell: %w", err)
	}

	return s.provider.GetMeasData(name, labels, ues, proto), nil
}

type definitionView struct {
	Name       string   `json:"name"`
	DataType   string   `json:"data_type"`
	Unit       string   `json:"unit,omitempty"`
	Levels     []string `json:"levels"`
	Labels     []string `json:"labels"`
	Source     string   `json:"source"`
	Window     string   `json:"window"`
	CellScope  bool     `json:"cell_scope"`
	NoValue    bool     `json:"no_value_when_absent"`
	Supported  bool     `json:"supported"`
	Provenance string   `json:"provenance"`
	Shadowed   bool     `json:"shadowed,omitempty"`
}

func viewsOf(cat *catalog.Catalog, defs []catalog.Definition) []definitionView {
	out := make([]definitionView, 0, len(defs))

	for _, d := range defs {
		v := definitionView{
			Name:       d.Name,
			DataType:   d.DataType.String(),
			Unit:       d.Unit,
			Source:     d.Source.String(),
			Window:     d.Window.String(),
			CellScope:  d.CellScope,
			NoValue:    d.NoValueWhenAbsent,
			Supported:  d.Supported,
			Provenance: d.Provenance.String(),
		}

		for _, l := range []catalog.Level{catalog.LevelNode, catalog.LevelUE} {
			if d.Levels.Has(l) {
				v.Levels = append(v.Levels, l.String())
			}
		}

		for _, l := range d.Labels.List() {
			v.Labels = append(v.Labels, l.String())
		}

		// The extension entry is the hidden one when a name is in both tables.
		if d.Provenance == catalog.ProvenanceExtension {
			v.Shadowed = cat.Shadowed(d.Name)
		}

		out = append(out, v)
	}

	return out
}

func (s *Server) getCatalog(c *gin.Context) {
	cat := s.provider.Catalog()

	c.JSON(http.StatusOK, gin.H{
		"general":   viewsOf(cat, cat.General()),
		"extension": viewsOf(cat, cat.Extension()),
	})
}
