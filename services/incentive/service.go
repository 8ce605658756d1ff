// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package incentive wires the analysis pipeline into a service.
//
// Service owns the loaded rule data, the reasoning client stack, the
// retriever, the embedded store and the executor. The CLI and the HTTP
// handlers are thin layers over its methods.
package incentive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/tesvik/pkg/extensions"
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/audit"
	"github.com/AleutianAI/tesvik/services/incentive/backup"
	"github.com/AleutianAI/tesvik/services/incentive/config"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/llm"
	"github.com/AleutianAI/tesvik/services/incentive/nodes"
	"github.com/AleutianAI/tesvik/services/incentive/observability"
	"github.com/AleutianAI/tesvik/services/incentive/privacy"
	"github.com/AleutianAI/tesvik/services/incentive/region"
	"github.com/AleutianAI/tesvik/services/incentive/retrieval"
	"github.com/AleutianAI/tesvik/services/incentive/storage"
	"github.com/AleutianAI/tesvik/services/incentive/telemetry"
	"github.com/AleutianAI/tesvik/services/incentive/temporal"
)

const tracerName = "tesvik.service"

// dateLayout is the only accepted date parameter format.
const dateLayout = "2006-01-02"

// Option customizes New.
type Option func(*options)

type options struct {
	client    llm.Client
	retriever retrieval.Retriever
	registry  *prometheus.Registry
	clock     func() time.Time
	observers []dag.Observer
	ext       extensions.ServiceOptions
}

// WithClient replaces the configured reasoning backend.
func WithClient(c llm.Client) Option {
	return func(o *options) { o.client = c }
}

// WithRetriever replaces the configured retrieval backend.
func WithRetriever(r retrieval.Retriever) Option {
	return func(o *options) { o.retriever = r }
}

// WithRegistry registers collectors on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithClock fixes "today" for temporal resolution.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithObserver adds a progress observer to every pipeline run, alongside
// the metrics.
func WithObserver(obs dag.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithExtensions replaces the auth provider or audit logger derived from
// the configuration. Nil fields keep the configured ones.
func WithExtensions(ext extensions.ServiceOptions) Option {
	return func(o *options) { o.ext = ext }
}

// fanout forwards pipeline events to several observers.
type fanout []dag.Observer

func (f fanout) NodeFinished(name, node string, d time.Duration, err error) {
	for _, o := range f {
		o.NodeFinished(name, node, d, err)
	}
}

func (f fanout) RunFinished(name string, d time.Duration, err error) {
	for _, o := range f {
		o.RunFinished(name, d, err)
	}
}

// Service runs analyses and answers rule lookups.
//
// Thread Safety:
//
//	Safe for concurrent use. Every analysis owns its state.
type Service struct {
	cfg    config.Config
	logger *slog.Logger

	index   *audit.Index
	rules   *temporal.Store
	regions *region.Table

	retriever     retrieval.Retriever
	retrievalName string
	weaviate      *weaviate.Client
	client        llm.Client

	registry *prometheus.Registry
	metrics  *observability.Metrics
	executor *dag.Executor[analysis.State, analysis.Patch]

	db   *storage.DB
	runs *storage.RunStore

	privacy  *privacy.Engine
	ext      extensions.ServiceOptions
	exporter *observability.InfluxExporter
}

// New builds a Service from cfg.
//
// Description:
//
//	Loads the annex tables, knowledge base and city table (embedded copies
//	unless cfg.Data overrides them), opens the store, builds the reasoning
//	client stack and the retriever, and compiles the pipeline.
//
// Outputs:
//
//	*Service - Ready to use. Caller must Close it.
//	error - Non-nil if the store, backend or pipeline cannot be built.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	s := &Service{
		cfg:      cfg,
		logger:   logger,
		registry: o.registry,
		metrics:  observability.NewMetrics(o.registry).WithErrorClassifier(runStatus),
	}

	if err := s.loadData(o.clock); err != nil {
		return nil, err
	}
	if cfg.Privacy.Mode != privacy.ModeOff {
		engine, err := privacy.New()
		if err != nil {
			return nil, err
		}
		s.privacy = engine
	}

	dbCfg := cfg.Storage.DB()
	dbCfg.Logger = logger
	db, err := storage.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.runs = storage.NewRunStore(db, cfg.Storage.RunTTL)
	s.ext = s.buildExtensions(o.ext)
	if cfg.Export.Enabled() {
		if s.exporter, err = observability.NewInfluxExporter(cfg.Export); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := s.build(o); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) buildExtensions(override extensions.ServiceOptions) extensions.ServiceOptions {
	ext := extensions.ServiceOptions{AuthProvider: s.cfg.Auth.Provider()}
	if s.cfg.Audit.Enabled {
		ext.AuditLogger = storage.NewAuditStore(s.db, s.cfg.Audit.Retention)
	}
	if override.AuthProvider != nil {
		ext.AuthProvider = override.AuthProvider
	}
	if override.AuditLogger != nil {
		ext.AuditLogger = override.AuditLogger
	}
	return ext.Normalize()
}

func (s *Service) loadData(clock func() time.Time) error {
	var stats audit.LoadStats
	if dir := s.cfg.Data.AnnexDir; dir != "" {
		s.index, stats = audit.LoadDir(dir, s.logger)
	} else {
		s.index, stats = audit.LoadDefault(s.logger)
	}
	s.logger.Info("annex tables loaded",
		slog.Int("sectors", stats.Sectors),
		slog.Int("eligibility_rows", stats.Eligibility),
		slog.Int("thresholds", stats.Thresholds),
		slog.Int("skipped", stats.SkippedRecords),
	)

	var topts []temporal.Option
	if clock != nil {
		topts = append(topts, temporal.WithClock(clock))
	}
	if dir := s.cfg.Data.KnowledgeDir; dir != "" {
		s.rules = temporal.LoadDir(dir, s.logger, topts...)
	} else {
		s.rules = temporal.LoadDefault(s.logger, topts...)
	}

	if path := s.cfg.Data.RegionTable; path != "" {
		t, err := region.LoadTable(os.DirFS(filepath.Dir(path)), filepath.Base(path))
		if err != nil {
			return err
		}
		s.regions = t
	} else {
		s.regions = region.DefaultTable()
	}
	return nil
}

func (s *Service) build(o options) error {
	var err error
	s.retriever, s.retrievalName = o.retriever, "custom"
	if s.retriever == nil {
		s.retrievalName = s.cfg.Retrieval.Backend
		if s.retriever, err = s.newRetriever(); err != nil {
			return err
		}
	}
	s.client = o.client
	if s.client == nil {
		if s.client, err = s.newClient(); err != nil {
			return err
		}
	}

	pipeline, err := nodes.NewPipeline(nodes.Deps{
		Index:     s.index,
		Rules:     s.rules,
		Regions:   s.regions,
		Policy:    s.cfg.Region,
		Retriever: s.retriever,
		Client:    s.client,
		Metrics:   s.metrics,
		Logger:    s.logger,
		Options:   s.cfg.Pipeline.NodeOptions(),
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	s.executor, err = dag.NewExecutor(pipeline, s.logger,
		dag.WithMaxSteps(s.cfg.Pipeline.MaxSteps),
		dag.WithObserver(append(fanout{s.metrics}, o.observers...)),
	)
	return err
}

func (s *Service) newRetriever() (retrieval.Retriever, error) {
	rc := s.cfg.Retrieval
	switch rc.Backend {
	case config.RetrievalWeaviate:
		client, err := retrieval.NewWeaviateClient(rc.WeaviateURL)
		if err != nil {
			return nil, err
		}
		s.weaviate = client
		return retrieval.NewWeaviateRetriever(client, rc.ClassName, s.logger), nil
	default:
		if rc.CorpusPath == "" {
			return retrieval.NewDefaultInMemory(), nil
		}
		docs, err := retrieval.LoadCorpus(rc.CorpusPath)
		if err != nil {
			return nil, err
		}
		s.logger.Info("corpus loaded", slog.String("path", rc.CorpusPath), slog.Int("documents", len(docs)))
		return retrieval.NewInMemory(docs...), nil
	}
}

// newClient builds Instrumented(Cached(Limited(backend))). Cache hits skip
// the limiter; every call, cached or not, is traced.
func (s *Service) newClient() (llm.Client, error) {
	rc := s.cfg.Reasoning
	if rc.Backend == config.BackendOffline {
		s.logger.Info("reasoning disabled; every step uses its fallback")
		return llm.NewInstrumented(llm.Offline{}, s.metrics), nil
	}

	var (
		base llm.Client
		err  error
	)
	if rc.Backend == config.BackendOllama {
		base, err = llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: rc.OllamaURL,
			Model:   rc.Model,
			Timeout: rc.RequestTimeout,
		}, s.logger)
	} else {
		base, err = llm.NewOpenAIClient(llm.OpenAIConfig{
			Model:      rc.Model,
			BaseURL:    rc.BaseURL,
			SecretPath: rc.SecretPath,
			Timeout:    rc.RequestTimeout,
		}, s.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("reasoning backend: %w", err)
	}
	var client llm.Client = llm.NewLimited(base, llm.LimitConfig{
		RequestsPerSecond: rc.RequestsPerSecond,
		Burst:             rc.Burst,
		MaxRetries:        rc.MaxRetries,
		RetryBackoff:      rc.RetryBackoff,
	}, s.logger)
	if s.cfg.Cache.Enabled {
		client = llm.NewCached(client, s.db, s.cfg.Cache.TTL, s.metrics, s.logger)
	}
	return llm.NewInstrumented(client, s.metrics), nil
}

func runStatus(err error) string {
	if errors.Is(err, dag.ErrPipelineExhausted) {
		return observability.StatusExhausted
	}
	return observability.StatusError
}

// Analyze runs the pipeline for one query.
//
// Description:
//
//	Seeds the state with the trimmed query and any caller entities, runs
//	the pipeline and stores the run. A storage failure is logged and
//	reported through Saved; it never fails the analysis.
//
// Outputs:
//
//	*AnalyzeResponse - The report and the run trace. Also returned with a
//	                   pipeline error so callers can inspect progress.
//	error - ErrEmptyQuery, ErrQueryTooLong, ErrIncompleteReport when the
//	        report step failed, or the executor's error.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit := s.cfg.Server.MaxQueryLength; limit > 0 && utf8.RuneCountInString(query) > limit {
		return nil, fmt.Errorf("%w: more than %d characters", ErrQueryTooLong, limit)
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "incentive.Analyze")
	defer span.End()

	query, redactions, err := s.screen(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	initial := analysis.NewState(query)
	if req.Entities != nil {
		seeded := *req.Entities
		initial.Entities = &seeded
	}

	res, err := s.executor.Run(ctx, initial)
	if res == nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("session_id", res.SessionID),
		attribute.Int("steps", res.Steps()),
	)

	resp := &AnalyzeResponse{
		SessionID:  res.SessionID,
		Report:     res.State.FinalReport,
		State:      res.State,
		Path:       res.Path,
		Duration:   res.Duration,
		NodeErrors: res.NodeErrors,
		Redactions: redactions,
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return resp, err
	}
	if res.State.FinalReport == nil {
		err := incompleteReport(res.NodeErrors)
		telemetry.RecordError(span, err)
		return resp, err
	}

	rec := &storage.RunRecord{
		SessionID:  res.SessionID,
		Query:      query,
		CreatedAt:  time.Now().UTC(),
		Duration:   res.Duration,
		Path:       res.Path,
		NodeErrors: res.NodeErrors,
		State:      res.State,
	}
	if err := s.runs.Save(context.WithoutCancel(ctx), rec); err != nil {
		telemetry.LoggerWithTrace(ctx, s.logger).Warn("failed to store analysis",
			slog.String("session_id", res.SessionID),
			slog.String("error", err.Error()),
		)
	} else {
		resp.Saved = true
	}
	s.export(ctx, rec, res.Steps())
	return resp, nil
}

// incompleteReport names the report step and carries its absorbed failure
// when there is one.
func incompleteReport(nodeErrors map[string]string) error {
	cause := ErrIncompleteReport
	if msg, ok := nodeErrors[nodes.NameReportSynthesizer]; ok {
		cause = fmt.Errorf("%w: %s", ErrIncompleteReport, msg)
	}
	return dag.NewNodeError(nodes.NameReportSynthesizer, cause)
}

// export sends one analysis to InfluxDB. Failures are logged only.
func (s *Service) export(ctx context.Context, rec *storage.RunRecord, steps int) {
	if s.exporter == nil {
		return
	}
	err := s.exporter.Export(context.WithoutCancel(ctx), observability.AnalysisRecord{
		SessionID:  rec.SessionID,
		At:         rec.CreatedAt,
		Duration:   rec.Duration,
		Steps:      steps,
		NodeErrors: len(rec.NodeErrors),
		Backend:    s.client.Name(),
		State:      rec.State,
	})
	if err != nil {
		telemetry.LoggerWithTrace(ctx, s.logger).Warn("failed to export analysis",
			slog.String("session_id", rec.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

// screen applies the privacy mode to a query. It returns the text to
// analyze and the IDs of the patterns removed from it.
func (s *Service) screen(ctx context.Context, query string) (string, []string, error) {
	if s.privacy == nil {
		return query, nil, nil
	}
	redacted, findings := s.privacy.Redact(query)
	if len(findings) == 0 {
		return query, nil, nil
	}

	action := "redacted"
	if s.cfg.Privacy.Mode == privacy.ModeBlock {
		action = "blocked"
	}
	ids := make([]string, 0, len(findings))
	seen := make(map[string]bool)
	for _, f := range findings {
		ids = append(ids, f.PatternID)
		if !seen[f.Classification] {
			seen[f.Classification] = true
			s.metrics.RecordSensitiveQuery(f.Classification, action)
		}
	}
	telemetry.LoggerWithTrace(ctx, s.logger).Warn("personal data in query",
		slog.String("action", action),
		slog.Any("patterns", ids),
	)
	if action == "blocked" {
		return "", nil, fmt.Errorf("%w: %s", ErrSensitiveQuery, strings.Join(ids, ", "))
	}
	return redacted, ids, nil
}

// Audit runs the four annex checks for one investment.
func (s *Service) Audit(req AuditRequest) (AuditResponse, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return AuditResponse{}, ErrMissingTopic
	}
	return AuditResponse{
		Findings: s.index.Audit(topic, strings.TrimSpace(req.Region), req.Amount),
		Topic:    topic,
		Region:   req.Region,
		Amount:   req.Amount,
	}, nil
}

// Region resolves the physical, effective and final region of a city.
func (s *Service) Region(req RegionRequest) (RegionResponse, error) {
	if _, ok := s.regions.Physical(req.City); !ok {
		return RegionResponse{}, fmt.Errorf("%w: %q", ErrUnknownCity, req.City)
	}
	t := req.Type
	if t == "" {
		t = analysis.TypeUndetermined
	}
	if !t.Valid() {
		return RegionResponse{}, fmt.Errorf("%w: %q", ErrInvalidType, req.Type)
	}
	return RegionResponse{
		RegionResolution: s.regions.Resolve(req.City, t, req.Query, s.cfg.Region),
		Type:             t,
	}, nil
}

// Directives lists the annotations in force on date (YYYY-MM-DD). An empty
// date means today.
func (s *Service) Directives(date string) (DirectivesResponse, error) {
	t, err := parseDate(date)
	if err != nil {
		return DirectivesResponse{}, err
	}
	d := s.rules.ResolveDirectives(t)
	return DirectivesResponse{
		Date:      d.Date.Format(dateLayout),
		Text:      d.Text,
		ChangeIDs: d.ChangeIDs,
		Entries:   d.Entries,
	}, nil
}

// Rules folds the rule versions in force on date. An empty date means today.
func (s *Service) Rules(date string) (RulesResponse, error) {
	t, err := parseDate(date)
	if err != nil {
		return RulesResponse{}, err
	}
	snap := s.rules.FoldVersions(t)
	return RulesResponse{
		Date:            snap.AsOf.Format(dateLayout),
		Rules:           snap,
		GeneralSupports: s.rules.GeneralSupports(),
	}, nil
}

// Run loads a stored analysis.
func (s *Service) Run(ctx context.Context, sessionID string) (*storage.RunRecord, error) {
	rec, err := s.runs.Get(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, sessionID)
	}
	return rec, err
}

// Runs lists stored analyses, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	recs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(recs))
	for _, r := range recs {
		sum := RunSummary{
			SessionID: r.SessionID,
			Query:     r.Query,
			CreatedAt: r.CreatedAt,
			Duration:  r.Duration,
		}
		if c := r.State.Classification; c != nil {
			sum.Type = string(c.Type)
		}
		out = append(out, sum)
	}
	return out, nil
}

// Index chunks a corpus and writes it to Weaviate. An empty path indexes
// the embedded decision text.
func (s *Service) Index(ctx context.Context, path string) (int, error) {
	if s.weaviate == nil {
		return 0, ErrIndexingUnavailable
	}
	docs := retrieval.DefaultCorpus()
	if path != "" {
		var err error
		if docs, err = retrieval.LoadCorpus(path); err != nil {
			return 0, err
		}
	}
	ix := retrieval.NewIndexer(s.weaviate, retrieval.IndexerConfig{ClassName: s.cfg.Retrieval.ClassName}, s.logger)
	if err := ix.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	return ix.Index(ctx, docs)
}

// Backup writes a snapshot of the store (run history, audit trail and
// reasoning cache) to target.
func (s *Service) Backup(ctx context.Context, target backup.Target) (uint64, error) {
	w, err := target.Create(ctx)
	if err != nil {
		return 0, err
	}
	version, err := s.db.Backup(w)
	if err != nil {
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("commit backup to %s: %w", target, err)
	}
	s.logger.Info("store backed up", slog.String("target", target.String()), slog.Uint64("version", version))
	return version, nil
}

// Restore loads a snapshot written by Backup into the store.
func (s *Service) Restore(ctx context.Context, target backup.Target) error {
	r, err := target.Open(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := s.db.Restore(r); err != nil {
		return err
	}
	s.logger.Info("store restored", slog.String("target", target.String()))
	return nil
}

// Extensions returns the auth provider and audit logger in use.
func (s *Service) Extensions() extensions.ServiceOptions {
	return s.ext
}

// Events returns recorded API events, newest first.
func (s *Service) Events(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	return s.ext.AuditLogger.Query(ctx, filter)
}

// Registry returns the Prometheus registry holding the service collectors.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// Config returns the configuration the service was built with.
func (s *Service) Config() config.Config {
	return s.cfg
}

// Health reports the active backends.
func (s *Service) Health() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Version:   ServiceVersion,
		Reasoning: s.client.Name(),
		Retrieval: s.retrievalName,
	}
}

// Close releases the store and the exporter.
func (s *Service) Close() error {
	if s.exporter != nil {
		s.exporter.Close()
	}
	return s.db.Close()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
