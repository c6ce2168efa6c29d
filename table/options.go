package table

import (
	"strconv"
	"strings"

	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// configFromOptions builds a *config.Config from a schema's flat option
// map (the same map the options system table surfaces), overriding
// config.DefaultConfig field by field so an option a table never set keeps
// its default rather than zeroing out the whole struct the way a bare YAML
// unmarshal over a zero value would.
func configFromOptions(options map[string]string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if v, ok := options["bucket"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New(ErrConfigInvalid, "bucket must be an integer", err)
		}
		cfg.Bucket = n
	}
	if v, ok := options["bucket-key"]; ok && v != "" {
		cfg.BucketKeys = strings.Split(v, ",")
	}
	if v, ok := options["file.format"]; ok {
		cfg.FileFormat = v
	}
	if v, ok := options["file.compression"]; ok {
		cfg.FileCompression = v
	}
	if v, ok := options["merge-engine"]; ok {
		cfg.MergeEngine = config.MergeEngine(v)
	}
	if v, ok := options["changelog-producer"]; ok {
		cfg.ChangelogProducer = config.ChangelogProducer(v)
	}
	if v, ok := options["sequence.field"]; ok {
		cfg.SequenceField = v
	}
	if v, ok := options["num-levels"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumLevels = n
		}
	}
	if v, ok := options["num-sorted-run.compaction-trigger"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumSortedRunCompactionTrigger = n
		}
	}
	if v, ok := options["num-sorted-run.stop-trigger"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumSortedRunStopTrigger = n
		}
	}
	if v, ok := options["compaction.max-size-amplification-percent"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSizeAmplificationPercent = n
		}
	}
	if v, ok := options["compaction.size-ratio"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SortedRunSizeRatio = n
		}
	}
	if v, ok := options["scan.mode"]; ok {
		cfg.ScanMode = config.ScanMode(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeSpecFor builds the mergefunc.Spec a table's configured merge engine
// needs, reading per-field aggregator options (fields.<name>.aggregate-function)
// off the schema's option map in value-field order.
func mergeSpecFor(cfg *config.Config, options map[string]string, valueType *types.RowType) mergefunc.Spec {
	spec := mergefunc.Spec{
		Engine:                    cfg.MergeEngine,
		NumValueFields:            len(valueType.Fields),
		IgnoreDeletePartialUpdate: options["partial-update.ignore-delete"] == "true",
	}
	if cfg.MergeEngine == config.MergeAggregate {
		aggs := make([]mergefunc.Aggregator, len(valueType.Fields))
		for i, f := range valueType.Fields {
			key := "fields." + f.Name + ".aggregate-function"
			if v, ok := options[key]; ok {
				aggs[i] = mergefunc.Aggregator(v)
			} else {
				aggs[i] = mergefunc.AggLastValue
			}
		}
		spec.Aggregators = aggs
	}
	return spec
}
