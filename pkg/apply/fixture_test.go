package apply

import (
	"context"
	"sync"
	"testing"

	"github.com/michelin/ns4kafka-go/pkg/acl"
	"github.com/michelin/ns4kafka-go/pkg/audit"
	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/quota"
	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

type eventLog struct {
	mu     sync.Mutex
	events []audit.Event
}

func (l *eventLog) Publish(e audit.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]audit.Event(nil), l.events...)
}

type fixture struct {
	repo   *store.MemoryRepository
	ctrl   *Controller
	events *eventLog
	user   context.Context
	admin  context.Context
}

// newFixture seeds namespaces "test" (owning the test. prefix for topics,
// connectors and groups) and "other" on cluster "local".
func newFixture(opts ...Option) *fixture {
	repo := store.NewMemoryRepository()
	namespaces := store.NewNamespaces(repo)
	aces := store.NewAccessControlEntries(repo)
	matcher := acl.NewMatcher(aces)
	quotas := quota.NewService(repo, store.NewQuotas(repo))
	events := &eventLog{}

	ctx := context.Background()
	for _, name := range []string{"test", "other"} {
		ns, _ := resource.New(resource.KindNamespace, "", name, resource.NamespaceSpec{
			KafkaUser:       "u-" + name,
			ConnectClusters: []string{"connect1"},
		})
		ns.Metadata.Cluster = "local"
		_ = namespaces.Create(ctx, ns)
		for _, t := range []resource.ACLResourceType{resource.ACLTopic, resource.ACLConnect, resource.ACLGroup} {
			_ = aces.Create(ctx, store.AccessControlEntry{
				Name:      name + "-own-" + string(t),
				Namespace: name,
				Spec: resource.AccessControlEntrySpec{
					ResourceType:        t,
					Resource:            name + ".",
					ResourcePatternType: resource.PatternPrefixed,
					Permission:          resource.PermissionOwner,
					GrantedTo:           name,
				},
			})
		}
	}

	opts = append([]Option{WithPublisher(events)}, opts...)
	return &fixture{
		repo:   repo,
		ctrl:   NewController(repo, namespaces, matcher, acl.NewValidator(matcher, namespaces), quotas, opts...),
		events: events,
		user:   principal.WithPrincipal(ctx, principal.New("alice", []string{"team-test"}, false)),
		admin:  principal.WithPrincipal(ctx, principal.New("root", []string{"ns4kafka-admins"}, true)),
	}
}

func topic(t *testing.T, name string, partitions int, configs map[string]string) *resource.Resource {
	t.Helper()
	r, err := resource.New(resource.KindTopic, "", name, resource.TopicSpec{
		Partitions:        partitions,
		ReplicationFactor: 3,
		Configs:           configs,
	})
	if err != nil {
		t.Fatalf("build topic: %v", err)
	}
	return r
}
