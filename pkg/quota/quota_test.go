package quota

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

type env struct {
	repo   *store.MemoryRepository
	quotas *store.Quotas
	svc    *Service
}

func newEnv(t *testing.T, limits resource.ResourceQuotaSpec, opts ...Option) *env {
	t.Helper()
	repo := store.NewMemoryRepository()
	e := &env{repo: repo, quotas: store.NewQuotas(repo)}
	if limits != nil {
		q, err := resource.New(resource.KindResourceQuota, "test", "quota", limits)
		require.NoError(t, err)
		require.NoError(t, e.quotas.Replace(context.Background(), q))
	}
	e.svc = NewService(repo, e.quotas, opts...)
	return e
}

func (e *env) topic(t *testing.T, name string, partitions int, configs map[string]string) *resource.Resource {
	t.Helper()
	r, err := resource.New(resource.KindTopic, "test", name, resource.TopicSpec{Partitions: partitions, ReplicationFactor: 3, Configs: configs})
	require.NoError(t, err)
	return r
}

func (e *env) put(t *testing.T, r *resource.Resource) {
	t.Helper()
	require.NoError(t, e.repo.Put(context.Background(), r))
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10", 10, false},
		{" 3 ", 3, false},
		{"100Mi", 100 << 20, false},
		{"50GiB", 50 << 30, false},
		{"1k", 1000, false},
		{"2Ti", 2 << 40, false},
		{"", 0, true},
		{"-5", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLimit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateLimits(t *testing.T) {
	errs := ValidateLimits(resource.ResourceQuotaSpec{
		"count/topics":     "10",
		"disk/topics":      "50GiB",
		"count/widgets":    "1",
		"count/partitions": "many",
	})
	assert.Equal(t, []string{
		`invalid value "many" for quota count/partitions`,
		`invalid quota key "count/widgets"`,
	}, errs)
}

func TestAdmit_TopicCount(t *testing.T) {
	e := newEnv(t, resource.ResourceQuotaSpec{"count/topics": "2"})
	ctx := context.Background()
	e.put(t, e.topic(t, "a", 1, nil))
	e.put(t, e.topic(t, "b", 1, nil))

	third := e.topic(t, "c", 1, nil)
	delta, err := e.svc.DeltaFor(nil, third)
	require.NoError(t, err)
	violations, err := e.svc.Admit(ctx, "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Equal(t, []string{"value 3 for configuration count/topics: limit 2 exceeded"}, violations)

	_, err = e.repo.Delete(ctx, resource.Key{Kind: resource.KindTopic, Namespace: "test", Name: "a"})
	require.NoError(t, err)
	violations, err = e.svc.Admit(ctx, "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestAdmit_UpdateOnlyCountsGrowth(t *testing.T) {
	e := newEnv(t, resource.ResourceQuotaSpec{"count/topics": "1", "count/partitions": "6"})
	ctx := context.Background()
	existing := e.topic(t, "a", 3, nil)
	e.put(t, existing)

	delta, err := e.svc.DeltaFor(existing, e.topic(t, "a", 6, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), delta.Topics)
	violations, err := e.svc.Admit(ctx, "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Empty(t, violations)

	delta, err = e.svc.DeltaFor(existing, e.topic(t, "a", 7, nil))
	require.NoError(t, err)
	violations, err = e.svc.Admit(ctx, "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Equal(t, []string{"value 7 for configuration count/partitions: limit 6 exceeded"}, violations)
}

func TestAdmit_DiskAndAllViolationsTogether(t *testing.T) {
	e := newEnv(t, resource.ResourceQuotaSpec{"count/topics": "0", "disk/topics": "1GiB"})
	incoming := e.topic(t, "big", 2, map[string]string{"retention.bytes": "1073741824"})

	delta, err := e.svc.DeltaFor(nil, incoming)
	require.NoError(t, err)
	violations, err := e.svc.Admit(context.Background(), "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"value 1 for configuration count/topics: limit 0 exceeded",
		"value 2.0 GiB for configuration disk/topics: limit 1GiB exceeded",
	}, violations)
}

func TestAdmit_Connectors(t *testing.T) {
	e := newEnv(t, resource.ResourceQuotaSpec{"count/connectors": "1", "count/topics": "0"})
	ctx := context.Background()
	c, err := resource.New(resource.KindConnector, "test", "sink", resource.ConnectorSpec{ConnectCluster: "local"})
	require.NoError(t, err)

	delta, err := e.svc.DeltaFor(nil, c)
	require.NoError(t, err)
	violations, err := e.svc.Admit(ctx, "test", resource.KindConnector, delta)
	require.NoError(t, err)
	assert.Empty(t, violations, "topic limits do not apply to connectors")

	e.put(t, c)
	c2, err := resource.New(resource.KindConnector, "test", "source", resource.ConnectorSpec{ConnectCluster: "local"})
	require.NoError(t, err)
	delta, err = e.svc.DeltaFor(nil, c2)
	require.NoError(t, err)
	violations, err = e.svc.Admit(ctx, "test", resource.KindConnector, delta)
	require.NoError(t, err)
	assert.Equal(t, []string{"value 2 for configuration count/connectors: limit 1 exceeded"}, violations)
}

func TestAdmit_NoQuotaUsesDefaults(t *testing.T) {
	e := newEnv(t, nil)
	topic := e.topic(t, "a", 1, nil)
	delta, err := e.svc.DeltaFor(nil, topic)
	require.NoError(t, err)

	violations, err := e.svc.Admit(context.Background(), "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Empty(t, violations)

	withDefaults := NewService(e.repo, e.quotas, WithDefaults(resource.ResourceQuotaSpec{"count/topics": "0"}))
	violations, err = withDefaults.Admit(context.Background(), "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Len(t, violations, 1)
}

func TestRetentionEstimator(t *testing.T) {
	est := RetentionEstimator{DefaultBytes: 100}
	assert.Equal(t, int64(300), est.Estimate(resource.TopicSpec{Partitions: 3}))
	assert.Equal(t, int64(3000), est.Estimate(resource.TopicSpec{Partitions: 3, Configs: map[string]string{"retention.bytes": "1000"}}))
	assert.Equal(t, int64(300), est.Estimate(resource.TopicSpec{Partitions: 3, Configs: map[string]string{"retention.bytes": "-1"}}))
	assert.Equal(t, 2*DefaultRetentionBytes, RetentionEstimator{}.Estimate(resource.TopicSpec{Partitions: 2}))
	assert.Equal(t, int64(math.MaxInt64), est.Estimate(resource.TopicSpec{Partitions: 2, Configs: map[string]string{"retention.bytes": "9223372036854775807"}}))
	assert.Equal(t, int64(300), est.Estimate(resource.TopicSpec{Partitions: 3, Configs: map[string]string{"retention.bytes": "100Mi"}}),
		"quantities are not broker values and fall back to the default")
}

func TestParseRetentionBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"104857600", 104857600, false},
		{"-1", -1, false},
		{"0", 0, false},
		{"9223372036854775807", math.MaxInt64, false},
		{"100Mi", 0, true},
		{"1GiB", 0, true},
		{"-2", 0, true},
		{"9223372036854775808", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRetentionBytes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdmit_HugeRetentionDoesNotWrap(t *testing.T) {
	e := newEnv(t, resource.ResourceQuotaSpec{"disk/topics": "10Gi"})
	ctx := context.Background()
	incoming := e.topic(t, "huge", 2, map[string]string{"retention.bytes": "9223372036854775807"})

	delta, err := e.svc.DeltaFor(nil, incoming)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), delta.DiskBytes)

	violations, err := e.svc.Admit(ctx, "test", resource.KindTopic, delta)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "for configuration disk/topics: limit 10Gi exceeded")

	e.put(t, incoming)
	e.put(t, e.topic(t, "huge-2", 4, map[string]string{"retention.bytes": "9223372036854775807"}))
	usage, err := e.svc.Usage(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), usage[DiskTopics].Used, "usage saturates instead of wrapping")

	small := e.topic(t, "small", 1, map[string]string{"retention.bytes": "1"})
	delta, err = e.svc.DeltaFor(nil, small)
	require.NoError(t, err)
	violations, err = e.svc.Admit(ctx, "test", resource.KindTopic, delta)
	require.NoError(t, err)
	assert.Len(t, violations, 1)
}

func TestUsageAndCheckLimits(t *testing.T) {
	fixed := DiskEstimatorFunc(func(spec resource.TopicSpec) int64 { return int64(spec.Partitions) * 1024 })
	e := newEnv(t, resource.ResourceQuotaSpec{"count/topics": "10", "disk/topics": "4Ki"}, WithEstimator(fixed))
	ctx := context.Background()
	e.put(t, e.topic(t, "a", 2, nil))
	e.put(t, e.topic(t, "b", 3, nil))

	usage, err := e.svc.Usage(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage[CountTopics].Used)
	require.NotNil(t, usage[CountTopics].Limit)
	assert.Equal(t, int64(10), *usage[CountTopics].Limit)
	assert.Equal(t, "2/10", usage[CountTopics].Display)
	assert.Equal(t, int64(5), usage[CountPartitions].Used)
	assert.Nil(t, usage[CountPartitions].Limit)
	assert.Equal(t, "5.0 KiB/4.0 KiB", usage[DiskTopics].Display)

	errs, err := e.svc.CheckLimits(ctx, "test", resource.ResourceQuotaSpec{"count/topics": "1", "count/partitions": "5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"quota already exceeded for count/topics: 2/1 (used/limit)"}, errs)
}

func TestUsageHandler(t *testing.T) {
	e := newEnv(t, resource.ResourceQuotaSpec{"count/topics": "2"})
	e.put(t, e.topic(t, "a", 1, nil))

	r := chi.NewRouter()
	r.Get("/api/namespaces/{namespace}/resource-quotas/_usage", UsageHandler(e.svc))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/namespaces/test/resource-quotas/_usage", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]Usage
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "1/2", body["count/topics"].Display)
	assert.Contains(t, body, "count/connectors")
}
