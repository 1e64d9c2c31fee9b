package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/nimburion/querykit/pkg/config"
	"github.com/nimburion/querykit/pkg/finder"
	"github.com/nimburion/querykit/pkg/observability/logger"
	"github.com/nimburion/querykit/pkg/observability/metrics"
	"github.com/nimburion/querykit/pkg/observability/tracing"
	"github.com/nimburion/querykit/pkg/query"
	"github.com/nimburion/querykit/pkg/store"
	"github.com/nimburion/querykit/pkg/version"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

func newNormalizeCommand(rt *runtime) *cobra.Command {
	schema := &schemaFlags{}
	cmd := &cobra.Command{
		Use:   "normalize <request>",
		Short: "Print the canonical spec of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseRequest(args[0])
			if err != nil {
				return err
			}
			spec, err := query.New(flagSchema{schema}, raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), renderSpec(spec))
		},
	}
	schema.register(cmd, false)
	return cmd
}

func newComposeCommand(rt *runtime) *cobra.Command {
	schema := &schemaFlags{}
	cmd := &cobra.Command{
		Use:   "compose <request> <request> [request...]",
		Short: "Compose requests left to right and print the resulting spec",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var composed query.Spec
			for i, arg := range args {
				raw, err := parseRequest(arg)
				if err != nil {
					return fmt.Errorf("request %d: %w", i+1, err)
				}
				spec, err := query.New(flagSchema{schema}, raw)
				if err != nil {
					return fmt.Errorf("request %d: %w", i+1, err)
				}
				composed = composed.Compose(spec)
			}
			return writeJSON(cmd.OutOrStdout(), renderSpec(composed))
		},
	}
	schema.register(cmd, false)
	return cmd
}

// windowFlags override the request's pagination and ordering.
type windowFlags struct {
	limit  int
	skip   int
	order  string
	fields []string
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&w.limit, "limit", 0, "maximum number of records (0 = unbounded)")
	cmd.Flags().IntVar(&w.skip, "skip", 0, "records to skip")
	cmd.Flags().StringVar(&w.order, "order", "", `sort order, e.g. "age desc, name"`)
	cmd.Flags().StringSliceVar(&w.fields, "fields", nil, "fields to return")
}

func (w *windowFlags) apply(cmd *cobra.Command, q *finder.Query[store.Record]) *finder.Query[store.Record] {
	flags := cmd.Flags()
	if flags.Changed("fields") {
		q = q.Fields(w.fields...)
	}
	if flags.Changed("order") {
		q = q.Order(w.order)
	}
	if flags.Changed("skip") {
		q = q.Skip(w.skip)
	}
	if flags.Changed("limit") {
		q = q.Limit(w.limit)
	}
	return q
}

func newFindCommand(rt *runtime) *cobra.Command {
	schema := &schemaFlags{}
	window := &windowFlags{}
	cmd := &cobra.Command{
		Use:   "find --collection <name> [request]",
		Short: "Run a request and print matching records as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withQuery(cmd, args, schema, func(ctx context.Context, cfg *config.Config, q *finder.Query[store.Record]) error {
				q, err := boundLimit(cfg.Query, window.apply(cmd, q))
				if err != nil {
					return err
				}
				records, err := q.Records(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	schema.register(cmd, true)
	window.register(cmd)
	registerMetricsFlag(cmd, schema)
	return cmd
}

func newCountCommand(rt *runtime) *cobra.Command {
	schema := &schemaFlags{}
	cmd := &cobra.Command{
		Use:   "count --collection <name> [request]",
		Short: "Count records matching a request, ignoring skip and limit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withQuery(cmd, args, schema, func(ctx context.Context, _ *config.Config, q *finder.Query[store.Record]) error {
				n, err := q.Count(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	schema.register(cmd, true)
	registerMetricsFlag(cmd, schema)
	return cmd
}

func registerMetricsFlag(cmd *cobra.Command, schema *schemaFlags) {
	cmd.Flags().StringVar(&schema.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
}

// boundLimit applies query.default_limit when no limit is set and enforces
// query.max_limit. An unbounded query is clamped to the cap.
func boundLimit(cfg config.QueryConfig, q *finder.Query[store.Record]) (*finder.Query[store.Record], error) {
	opts := q.Spec().Options()
	if !opts.HasLimit() && cfg.DefaultLimit > 0 {
		q = q.Limit(cfg.DefaultLimit)
	}
	limit := q.Spec().Options().Limit()
	if cfg.MaxLimit > 0 {
		switch {
		case limit == 0:
			q = q.Limit(cfg.MaxLimit)
		case limit > cfg.MaxLimit:
			return nil, fmt.Errorf("limit %d exceeds query.max_limit %d", limit, cfg.MaxLimit)
		}
	}
	return q, nil
}

type queryFunc func(ctx context.Context, cfg *config.Config, q *finder.Query[store.Record]) error

// withQuery loads configuration, opens the store and tracing, builds the
// query from the optional request argument and hands it to fn.
func (rt *runtime) withQuery(cmd *cobra.Command, args []string, schema *schemaFlags, fn queryFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := rt.load(cmd.Flags())
	if err != nil {
		return err
	}
	queryID := uuid.NewString()
	ctx = logger.ContextWithQueryID(ctx, queryID)
	log = log.With("query_id", queryID)

	raw := map[string]any{}
	if len(args) == 1 {
		if raw, err = parseRequest(args[0]); err != nil {
			return err
		}
	}

	tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    rt.opts.Name,
		ServiceVersion: version.Current(rt.opts.Name).Version,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	backend, err := rt.opts.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	registry := metrics.NewRegistry()
	model := backend.Collection(schema.collection, schema.collectionSchema())
	q, err := finder.New(model, raw,
		finder.WithLogger(log),
		finder.WithMetrics(registry.Queries()),
		finder.WithSystem(cfg.Store.Type),
	)
	if err != nil {
		return err
	}
	err = fn(ctx, cfg, q)
	if schema.metricsFile != "" {
		if werr := registry.WriteTextfile(schema.metricsFile); werr != nil {
			log.Warn("failed to write metrics", "path", schema.metricsFile, "error", werr)
		}
	}
	return err
}

// OpenStore opens the configured backend. A memory backend is seeded from
// store.data_file when set.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Backend, error) {
	if cfg.Store.Type == config.StoreTypeMongoDB {
		if err := cfg.RequireMongoDB(); err != nil {
			return nil, err
		}
	}
	backend, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Type == config.StoreTypeMemory && cfg.Store.DataFile != "" {
		if err := seed(ctx, backend, cfg.Store.DataFile); err != nil {
			_ = backend.Close()
			return nil, err
		}
	}
	return backend, nil
}

// seed loads a file mapping collection names to document arrays. String
// _id values that are ObjectID hex are stored as ObjectIDs.
func seed(ctx context.Context, backend store.Backend, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read data file: %w", err)
	}
	var data map[string][]map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("parse data file %s: %w", path, err)
	}
	for name, docs := range data {
		records := make([]store.Record, len(docs))
		for i, doc := range docs {
			if s, ok := doc[query.IDField].(string); ok {
				if id, err := primitive.ObjectIDFromHex(s); err == nil {
					doc[query.IDField] = id
				}
			}
			records[i] = doc
		}
		if err := backend.Insert(ctx, name, records); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
	}
	return nil
}
