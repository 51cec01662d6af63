package optimize

import "github.com/samsarahq/queryopt/telemetry"

// Config holds the recognized options from spec.md §6.3. Constructed via
// NewConfig plus functional Option values, grounded on the teacher's own
// functional-options style (sqlgen.NewDB's WithShardLimit/
// WithPanicOnNoIndex) and reinforced by the pack's
// contrib/graphql.ExtensionOption pattern.
type Config struct {
	// QueryCacheKey names the hidden key under which the per-operation
	// cache is attached to schema extensions by the host.
	QueryCacheKey string
	// OptimizerMark names the hint key signifying a queryset is optimized.
	OptimizerMark string
	// PrefetchCountKey names the annotation alias for nested connection
	// size. The compiler does not read it: no per-partition count
	// annotation is emitted, and Optimizer.TotalCount is recorded by the
	// walker but not compiled into any directive.
	PrefetchCountKey string
	// PrefetchPartitionIndexKey names the annotation alias for row number
	// within a partition.
	PrefetchPartitionIndexKey string
	// DisableOnlyFieldsOptimization, if true, skips projection narrowing.
	DisableOnlyFieldsOptimization bool
	// MaxComplexity is the default join/prefetch ceiling (spec.md §4.7).
	MaxComplexity int
	// SkipOptimizationOnError governs SchemaMismatch/UnexpectedInternal
	// handling (spec.md §7): when true, the original unoptimized queryset
	// is returned instead of propagating the error.
	SkipOptimizationOnError bool
	// DefaultFilterSetClass holds a fallback filterset class. The
	// Filter-Info Extractor does not read it: an object type that doesn't
	// register its own filterset class gets no filterset applied.
	DefaultFilterSetClass interface{}

	Logger telemetry.Logger
}

// Option configures a Config.
type Option func(*Config)

// NewConfig builds a Config from defaults plus the given options.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		QueryCacheKey:             "_optimizer_query_cache",
		OptimizerMark:             "_optimizer_optimized",
		PrefetchCountKey:          "_optimizer_count",
		PrefetchPartitionIndexKey: "_optimizer_row_number",
		MaxComplexity:             10,
		Logger:                    telemetry.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithQueryCacheKey(key string) Option {
	return func(c *Config) { c.QueryCacheKey = key }
}

func WithOptimizerMark(key string) Option {
	return func(c *Config) { c.OptimizerMark = key }
}

func WithPrefetchCountKey(key string) Option {
	return func(c *Config) { c.PrefetchCountKey = key }
}

func WithPrefetchPartitionIndexKey(key string) Option {
	return func(c *Config) { c.PrefetchPartitionIndexKey = key }
}

func WithDisableOnlyFieldsOptimization(disable bool) Option {
	return func(c *Config) { c.DisableOnlyFieldsOptimization = disable }
}

func WithMaxComplexity(n int) Option {
	return func(c *Config) { c.MaxComplexity = n }
}

func WithSkipOptimizationOnError(skip bool) Option {
	return func(c *Config) { c.SkipOptimizationOnError = skip }
}

func WithDefaultFilterSetClass(class interface{}) Option {
	return func(c *Config) { c.DefaultFilterSetClass = class }
}

func WithLogger(l telemetry.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
