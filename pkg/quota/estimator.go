package quota

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// DiskEstimator estimates the disk footprint of a topic.
type DiskEstimator interface {
	Estimate(spec resource.TopicSpec) int64
}

// DiskEstimatorFunc adapts a function to DiskEstimator.
type DiskEstimatorFunc func(spec resource.TopicSpec) int64

func (f DiskEstimatorFunc) Estimate(spec resource.TopicSpec) int64 { return f(spec) }

// DefaultRetentionBytes is the per-partition estimate used when a topic has
// no finite retention.bytes.
const DefaultRetentionBytes int64 = 1 << 30

// RetentionEstimator estimates partitions x retention.bytes.
type RetentionEstimator struct {
	// DefaultBytes replaces a missing or unlimited (-1) retention.bytes.
	DefaultBytes int64
}

// Estimate implements DiskEstimator.
func (e RetentionEstimator) Estimate(spec resource.TopicSpec) int64 {
	perPartition := e.DefaultBytes
	if perPartition <= 0 {
		perPartition = DefaultRetentionBytes
	}
	if v, ok := spec.Configs["retention.bytes"]; ok {
		if n, err := ParseRetentionBytes(v); err == nil && n > 0 {
			perPartition = n
		}
	}
	if spec.Partitions <= 0 {
		return 0
	}
	return mulSat(int64(spec.Partitions), perPartition)
}

// ParseRetentionBytes parses a topic retention.bytes value the way the
// broker does: a plain long, -1 meaning unlimited.
func ParseRetentionBytes(v string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid retention.bytes %q: must be a plain integer", v)
	}
	if n < -1 {
		return 0, fmt.Errorf("invalid retention.bytes %q: must be -1 or greater", v)
	}
	return n, nil
}

// mulSat and addSat operate on non-negative values and clamp at MaxInt64.
func mulSat(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func addSat(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
