package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// Lister lists live resources of a kind in a namespace.
type Lister interface {
	List(ctx context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error)
}

// LimitsLookup returns the quota limits of a namespace, nil when unset.
type LimitsLookup interface {
	Limits(ctx context.Context, namespace string) (resource.ResourceQuotaSpec, error)
}

// Service computes usage and admits declarations.
type Service struct {
	resources Lister
	limits    LimitsLookup
	estimator DiskEstimator
	defaults  resource.ResourceQuotaSpec
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEstimator replaces the disk estimator.
func WithEstimator(e DiskEstimator) Option {
	return func(s *Service) { s.estimator = e }
}

// WithDefaults sets the limits applied to namespaces without a ResourceQuota.
func WithDefaults(d resource.ResourceQuotaSpec) Option {
	return func(s *Service) { s.defaults = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(resources Lister, limits LimitsLookup, opts ...Option) *Service {
	s := &Service{
		resources: resources,
		limits:    limits,
		estimator: RetentionEstimator{},
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DeltaFor returns the usage change of replacing existing (nil when absent)
// with incoming (nil for a delete).
func (s *Service) DeltaFor(existing, incoming *resource.Resource) (Delta, error) {
	after, err := s.footprint(incoming)
	if err != nil {
		return Delta{}, err
	}
	before, err := s.footprint(existing)
	if err != nil {
		return Delta{}, err
	}
	return Delta{
		Topics:     after.Topics - before.Topics,
		Partitions: after.Partitions - before.Partitions,
		DiskBytes:  after.DiskBytes - before.DiskBytes,
		Connectors: after.Connectors - before.Connectors,
	}, nil
}

func (s *Service) footprint(r *resource.Resource) (Delta, error) {
	if r == nil {
		return Delta{}, nil
	}
	switch r.Kind {
	case resource.KindTopic:
		spec, err := resource.DecodeSpec[resource.TopicSpec](r)
		if err != nil {
			return Delta{}, fmt.Errorf("decode topic %s: %w", r.Metadata.Name, err)
		}
		return Delta{Topics: 1, Partitions: int64(spec.Partitions), DiskBytes: s.estimator.Estimate(spec)}, nil
	case resource.KindConnector:
		return Delta{Connectors: 1}, nil
	}
	return Delta{}, nil
}

// Admit returns one violation per limit that used+delta would exceed. An
// empty result admits the declaration. Only keys touched by kind are
// checked, and only growing keys can be rejected.
func (s *Service) Admit(ctx context.Context, namespace string, kind resource.Kind, delta Delta) ([]string, error) {
	if !Countable(kind) || delta.IsZero() {
		return nil, nil
	}
	limits, err := s.effectiveLimits(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if len(limits) == 0 {
		return nil, nil
	}
	used, err := s.used(ctx, namespace)
	if err != nil {
		return nil, err
	}

	var violations []string
	for _, k := range keysFor(kind) {
		raw, ok := limits[string(k)]
		if !ok {
			continue
		}
		d := delta.forKey(k)
		if d <= 0 {
			continue
		}
		limit, err := ParseLimit(raw)
		if err != nil {
			s.logger.Warn("ignoring unparseable quota", "namespace", namespace, "key", k, "value", raw)
			continue
		}
		if total := addSat(used.forKey(k), d); total > limit {
			violations = append(violations, violation(k, total, raw))
		}
	}
	return violations, nil
}

// CheckLimits returns one message per key whose current usage already
// exceeds the proposed limits.
func (s *Service) CheckLimits(ctx context.Context, namespace string, spec resource.ResourceQuotaSpec) ([]string, error) {
	used, err := s.used(ctx, namespace)
	if err != nil {
		return nil, err
	}
	var errs []string
	for _, k := range Keys() {
		raw, ok := spec[string(k)]
		if !ok {
			continue
		}
		limit, err := ParseLimit(raw)
		if err != nil {
			continue
		}
		if u := used.forKey(k); u > limit {
			errs = append(errs, fmt.Sprintf("quota already exceeded for %s: %s/%s (used/limit)", k, Render(k, u), raw))
		}
	}
	return errs, nil
}

// Usage returns used and limit per key for namespace. Keys without a limit
// are reported with their usage only.
func (s *Service) Usage(ctx context.Context, namespace string) (map[Key]Usage, error) {
	limits, err := s.effectiveLimits(ctx, namespace)
	if err != nil {
		return nil, err
	}
	used, err := s.used(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make(map[Key]Usage, len(Keys()))
	for _, k := range Keys() {
		u := Usage{Used: used.forKey(k)}
		display := Render(k, u.Used)
		if raw, ok := limits[string(k)]; ok {
			u.RawLimit = raw
			if l, err := ParseLimit(raw); err == nil {
				u.Limit = &l
				display += "/" + Render(k, l)
			}
		}
		u.Display = display
		out[k] = u
	}
	return out, nil
}

func (s *Service) effectiveLimits(ctx context.Context, namespace string) (resource.ResourceQuotaSpec, error) {
	limits, err := s.limits.Limits(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("quota limits for %s: %w", namespace, err)
	}
	if limits == nil {
		return s.defaults, nil
	}
	return limits, nil
}

func (s *Service) used(ctx context.Context, namespace string) (Delta, error) {
	var total Delta
	for _, kind := range []resource.Kind{resource.KindTopic, resource.KindConnector} {
		rs, err := s.resources.List(ctx, kind, namespace)
		if err != nil {
			return Delta{}, fmt.Errorf("list %s in %s: %w", kind, namespace, err)
		}
		for _, r := range rs {
			f, err := s.footprint(r)
			if err != nil {
				return Delta{}, err
			}
			total.Topics = addSat(total.Topics, f.Topics)
			total.Partitions = addSat(total.Partitions, f.Partitions)
			total.DiskBytes = addSat(total.DiskBytes, f.DiskBytes)
			total.Connectors = addSat(total.Connectors, f.Connectors)
		}
	}
	return total, nil
}

func keysFor(kind resource.Kind) []Key {
	switch kind {
	case resource.KindTopic:
		return []Key{CountTopics, CountPartitions, DiskTopics}
	case resource.KindConnector:
		return []Key{CountConnectors}
	}
	return nil
}
