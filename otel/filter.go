// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/z5labs/drain/config"

	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogLevelsFromEnv reads minimum log levels per logger name from
// DRAIN_LOG_LEVELS, formatted as comma separated name=level pairs.
func LogLevelsFromEnv() config.Reader[map[string]string] {
	return ParseLogLevels(config.Env("DRAIN_LOG_LEVELS"))
}

// ParseLogLevels parses "name=level,name=level" into a map.
func ParseLogLevels(r config.Reader[string]) config.Reader[map[string]string] {
	return config.Map(config.ListFromString(",", r), func(ctx context.Context, pairs []string) (map[string]string, error) {
		levels := make(map[string]string, len(pairs))
		for _, pair := range pairs {
			name, level, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("otel: invalid log level %q, expected name=level", pair)
			}
			levels[strings.TrimSpace(name)] = strings.TrimSpace(level)
		}
		return levels, nil
	})
}

// filteringProcessor drops records below the minimum level configured for
// the longest matching logger name prefix. Loggers without a match are
// never filtered.
type filteringProcessor struct {
	inner    sdklog.Processor
	levels   map[string]log.Severity
	prefixes []string
}

func newFilteringProcessor(inner sdklog.Processor, levels map[string]string) *filteringProcessor {
	p := &filteringProcessor{
		inner:    inner,
		levels:   make(map[string]log.Severity, len(levels)),
		prefixes: make([]string, 0, len(levels)),
	}
	for name, level := range levels {
		p.levels[name] = parseLogLevel(level)
		p.prefixes = append(p.prefixes, name)
	}
	slices.SortFunc(p.prefixes, func(a, b string) int {
		return len(b) - len(a)
	})
	return p
}

// parseLogLevel defaults to debug for unknown levels.
func parseLogLevel(level string) log.Severity {
	switch strings.ToLower(level) {
	case "info":
		return log.SeverityInfo
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	default:
		return log.SeverityDebug
	}
}

func (p *filteringProcessor) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < p.minimum(record.InstrumentationScope().Name) {
		return nil
	}
	return p.inner.OnEmit(ctx, record)
}

func (p *filteringProcessor) minimum(name string) log.Severity {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(name, prefix) {
			return p.levels[prefix]
		}
	}
	return log.SeverityUndefined
}

func (p *filteringProcessor) Shutdown(ctx context.Context) error {
	return p.inner.Shutdown(ctx)
}

func (p *filteringProcessor) ForceFlush(ctx context.Context) error {
	return p.inner.ForceFlush(ctx)
}
