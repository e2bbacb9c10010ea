// Package quota computes the live resource usage of a namespace and admits
// or rejects declarations against the namespace ResourceQuota.
package quota

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	k8sresource "k8s.io/apimachinery/pkg/api/resource"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// Key names a quota limit.
type Key string

const (
	CountTopics          Key = "count/topics"
	CountPartitions      Key = "count/partitions"
	DiskTopics           Key = "disk/topics"
	CountConnectors      Key = "count/connectors"
	UserProducerByteRate Key = "user/producer_byte_rate"
	UserConsumerByteRate Key = "user/consumer_byte_rate"
)

// Keys lists every supported quota key.
func Keys() []Key {
	return []Key{CountTopics, CountPartitions, DiskTopics, CountConnectors, UserProducerByteRate, UserConsumerByteRate}
}

// ValidKey reports whether k is a supported quota key.
func ValidKey(k string) bool {
	return slices.Contains(Keys(), Key(k))
}

func (k Key) isBytes() bool {
	return k == DiskTopics || k == UserProducerByteRate || k == UserConsumerByteRate
}

// ParseLimit parses a limit value. Plain integers and Kubernetes quantities
// are accepted, as well as the "KiB", "MiB", "GiB" and "TiB" spellings.
func ParseLimit(value string) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative quantity %q", value)
		}
		return n, nil
	}
	for _, unit := range []string{"Ki", "Mi", "Gi", "Ti", "Pi"} {
		if trimmed, ok := strings.CutSuffix(v, unit+"B"); ok {
			v = trimmed + unit
			break
		}
	}
	q, err := k8sresource.ParseQuantity(v)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", value, err)
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("negative quantity %q", value)
	}
	return q.Value(), nil
}

// Render formats a used or requested amount for key.
func Render(k Key, v int64) string {
	if k.isBytes() {
		if v < 0 {
			return "-" + humanize.IBytes(uint64(-v))
		}
		return humanize.IBytes(uint64(v))
	}
	return strconv.FormatInt(v, 10)
}

// Delta is the change a declaration would make to the namespace usage.
type Delta struct {
	Topics     int64
	Partitions int64
	DiskBytes  int64
	Connectors int64
}

func (d Delta) forKey(k Key) int64 {
	switch k {
	case CountTopics:
		return d.Topics
	case CountPartitions:
		return d.Partitions
	case DiskTopics:
		return d.DiskBytes
	case CountConnectors:
		return d.Connectors
	}
	return 0
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool { return d == Delta{} }

// Usage is the consumption of one quota key.
type Usage struct {
	Used     int64  `json:"used"`
	Limit    *int64 `json:"limit,omitempty"`
	Display  string `json:"display"`
	RawLimit string `json:"rawLimit,omitempty"`
}

func violation(k Key, value int64, limit string) string {
	return fmt.Sprintf("value %s for configuration %s: limit %s exceeded", Render(k, value), k, limit)
}

// ValidateLimits checks that every key is known and every value parses.
func ValidateLimits(spec resource.ResourceQuotaSpec) []string {
	var errs []string
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !ValidKey(k) {
			errs = append(errs, fmt.Sprintf("invalid quota key %q", k))
			continue
		}
		if _, err := ParseLimit(spec[k]); err != nil {
			errs = append(errs, fmt.Sprintf("invalid value %q for quota %s", spec[k], k))
		}
	}
	return errs
}

// Countable reports whether kind is subject to admission.
func Countable(kind resource.Kind) bool {
	return kind == resource.KindTopic || kind == resource.KindConnector
}
