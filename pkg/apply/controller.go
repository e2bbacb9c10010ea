// Package apply implements the declarative apply and delete protocol:
// validation, ownership and quota admission, diffing against the stored
// state, persistence (or a dry-run), and audit.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/michelin/ns4kafka-go/pkg/audit"
	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/quota"
	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// State is a step of the apply protocol.
type State int

const (
	StateValidating State = iota
	StateAdmitting
	StateDiffing
	StatePersisting
	StateDryRun
	StateAuditing
	StateDone
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "VALIDATING"
	case StateAdmitting:
		return "ADMITTING"
	case StateDiffing:
		return "DIFFING"
	case StatePersisting:
		return "PERSISTING"
	case StateDryRun:
		return "DRY_RUN"
	case StateAuditing:
		return "AUDITING"
	case StateDone:
		return "DONE"
	default:
		return "REJECTED"
	}
}

// Result is the outcome of an apply or delete.
type Result struct {
	Status   resource.ApplyStatus
	Resource *resource.Resource
	DryRun   bool
}

// NamespaceFinder loads namespaces.
type NamespaceFinder interface {
	FindByName(ctx context.Context, name string) (*resource.Resource, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// OwnershipChecker answers whether a namespace owns a broker resource.
type OwnershipChecker interface {
	IsOwner(ctx context.Context, namespace string, resourceType resource.ACLResourceType, name string) (bool, error)
}

// EntryValidator checks access control entries in the context of the caller.
type EntryValidator interface {
	Validate(ctx context.Context, entry store.AccessControlEntry, isAdmin bool) ([]string, error)
}

// Admitter enforces namespace quotas.
type Admitter interface {
	DeltaFor(existing, incoming *resource.Resource) (quota.Delta, error)
	Admit(ctx context.Context, namespace string, kind resource.Kind, delta quota.Delta) ([]string, error)
	CheckLimits(ctx context.Context, namespace string, spec resource.ResourceQuotaSpec) ([]string, error)
}

// ClusterCatalog answers which Kafka and Connect clusters are managed.
type ClusterCatalog interface {
	HasCluster(name string) bool
	HasConnect(cluster, connect string) bool
}

// Publisher receives audit events. Publish must not block.
type Publisher interface {
	Publish(e audit.Event)
}

// ResultRecorder counts outcomes.
type ResultRecorder interface {
	ApplyResult(kind, status string, dryRun bool)
	ApplyRejected(kind, stage string)
}

// Controller runs the apply protocol against a repository.
type Controller struct {
	repo       store.Repository
	namespaces NamespaceFinder
	owners     OwnershipChecker
	entries    EntryValidator
	quotas     Admitter
	clusters   ClusterCatalog
	validators map[resource.Kind]Validator
	publisher  Publisher
	recorder   ResultRecorder
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sends audit events to p.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithRecorder counts outcomes in r.
func WithRecorder(r ResultRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithClusters checks namespaces and connectors against the managed clusters.
func WithClusters(cc ClusterCatalog) Option {
	return func(c *Controller) { c.clusters = cc }
}

// WithValidator replaces the validator for kind.
func WithValidator(kind resource.Kind, v Validator) Option {
	return func(c *Controller) { c.validators[kind] = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a Controller. owners, entries and quotas may be nil
// to skip the corresponding checks.
func NewController(repo store.Repository, namespaces NamespaceFinder, owners OwnershipChecker, entries EntryValidator, quotas Admitter, opts ...Option) *Controller {
	c := &Controller{
		repo:       repo,
		namespaces: namespaces,
		owners:     owners,
		entries:    entries,
		quotas:     quotas,
		validators: DefaultValidators(),
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns a resource or ErrNotFound.
func (c *Controller) Get(ctx context.Context, kind resource.Kind, namespace, name string) (*resource.Resource, error) {
	r, err := c.repo.Get(ctx, resource.Key{Kind: kind, Namespace: namespace, Name: name})
	if err != nil {
		return nil, fmt.Errorf("get %s %s/%s: %w", kind, namespace, name, err)
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns the resources of kind in namespace.
func (c *Controller) List(ctx context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error) {
	return c.repo.List(ctx, kind, namespace)
}

// Apply declares r in namespace. The path namespace wins over the body.
func (c *Controller) Apply(ctx context.Context, namespace string, r *resource.Resource, dryRun bool) (Result, error) {
	p, _ := principal.FromContext(ctx)
	log := c.logger.With("kind", r.Kind, "namespace", namespace, "name", r.Metadata.Name, "dryRun", dryRun)

	state := StateValidating
	log.Debug("apply", "state", state)
	ns, err := c.namespaces.FindByName(ctx, namespace)
	if err != nil {
		return Result{}, fmt.Errorf("load namespace %s: %w", namespace, err)
	}
	if ns == nil {
		return Result{}, ErrNamespaceNotFound
	}
	envelope := c.checkEnvelope(namespace, r)
	r = r.Clone()
	r.Metadata.Namespace = namespace
	r.Metadata.Cluster = ns.Metadata.Cluster
	if len(envelope) > 0 && (r.Kind == resource.KindNamespace || !r.Kind.Valid()) {
		return Result{}, c.reject(log, r.Kind, StageValidation, envelope)
	}

	existing, err := c.current(ctx, r)
	if err != nil {
		return Result{}, err
	}
	fields, err := c.validate(ctx, p, ns, r, existing)
	if err != nil {
		return Result{}, err
	}
	ownership, err := c.checkOwnership(ctx, namespace, r)
	if err != nil {
		return Result{}, err
	}
	if reasons := slices.Concat(envelope, fields, ownership); len(reasons) > 0 {
		stage := StageValidation
		if len(envelope)+len(fields) == 0 {
			stage = StageOwnership
		}
		return Result{}, c.reject(log, r.Kind, stage, reasons)
	}

	state = StateAdmitting
	log.Debug("apply", "state", state)
	reasons, err := c.admit(ctx, namespace, existing, r)
	if err != nil {
		return Result{}, err
	}
	if len(reasons) > 0 {
		return Result{}, c.reject(log, r.Kind, StageQuota, reasons)
	}

	state = StateDiffing
	log.Debug("apply", "state", state)
	status := diff(existing, r)
	if status == resource.StatusUnchanged && existing.Metadata.Name != r.Metadata.Name {
		status = resource.StatusChanged
	}
	c.stamp(existing, r)

	if dryRun {
		log.Debug("apply", "state", StateDryRun, "status", status)
		c.record(r.Kind, status, true)
		return Result{Status: status, Resource: r, DryRun: true}, nil
	}
	if status == resource.StatusUnchanged {
		c.record(r.Kind, status, false)
		return Result{Status: status, Resource: existing}, nil
	}

	log.Debug("apply", "state", StatePersisting, "status", status)
	if err := c.persist(ctx, r); err != nil {
		return Result{}, err
	}
	persisted, err := c.repo.Get(ctx, r.Key())
	if err != nil || persisted == nil {
		persisted = r
	}

	log.Debug("apply", "state", StateAuditing)
	var before resource.Spec
	if existing != nil {
		before = existing.Spec
	}
	c.audit(p, status, persisted, before, persisted.Spec)
	c.record(r.Kind, status, false)
	log.Info("resource applied", "status", status, "user", p.Username())
	return Result{Status: status, Resource: persisted}, nil
}

// Delete removes a resource. A dry-run reports what would be deleted.
func (c *Controller) Delete(ctx context.Context, kind resource.Kind, namespace, name string, dryRun bool) (Result, error) {
	p, _ := principal.FromContext(ctx)
	key := resource.Key{Kind: kind, Namespace: namespace, Name: name}
	existing, err := c.repo.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", key, err)
	}
	if existing == nil {
		return Result{}, ErrNotFound
	}
	if dryRun {
		c.record(kind, resource.StatusDeleted, true)
		return Result{Status: resource.StatusDeleted, Resource: existing, DryRun: true}, nil
	}
	if _, err := c.repo.Delete(ctx, key); err != nil {
		return Result{}, fmt.Errorf("delete %s: %w", key, err)
	}
	c.audit(p, resource.StatusDeleted, existing, existing.Spec, nil)
	c.record(kind, resource.StatusDeleted, false)
	c.logger.Info("resource deleted", "kind", kind, "namespace", namespace, "name", name, "user", p.Username())
	return Result{Status: resource.StatusDeleted, Resource: existing}, nil
}

// ApplyNamespace declares a namespace. Only admins reach this path.
func (c *Controller) ApplyNamespace(ctx context.Context, ns *resource.Resource, dryRun bool) (Result, error) {
	p, _ := principal.FromContext(ctx)
	ns = ns.Clone()
	ns.Kind = resource.KindNamespace
	ns.APIVersion = resource.APIVersion
	ns.Metadata.Namespace = ""

	reasons := c.validators[resource.KindNamespace].Validate(ctx, ns)
	reasons = append(reasons, c.checkClusters(ns)...)
	if len(reasons) > 0 {
		return Result{}, c.reject(c.logger, ns.Kind, StageValidation, reasons)
	}
	existing, err := c.repo.Get(ctx, ns.Key())
	if err != nil {
		return Result{}, fmt.Errorf("load namespace %s: %w", ns.Metadata.Name, err)
	}
	if existing != nil && existing.Metadata.Cluster != ns.Metadata.Cluster {
		return Result{}, c.reject(c.logger, ns.Kind, StageValidation, []string{
			fmt.Sprintf("invalid value %q for field metadata.cluster: value is immutable", ns.Metadata.Cluster),
		})
	}

	status := diff(existing, ns)
	c.stamp(existing, ns)
	if dryRun {
		c.record(ns.Kind, status, true)
		return Result{Status: status, Resource: ns, DryRun: true}, nil
	}
	if status == resource.StatusUnchanged {
		c.record(ns.Kind, status, false)
		return Result{Status: status, Resource: existing}, nil
	}
	if err := c.repo.Put(ctx, ns); err != nil {
		return Result{}, fmt.Errorf("store namespace %s: %w", ns.Metadata.Name, err)
	}
	var before resource.Spec
	if existing != nil {
		before = existing.Spec
	}
	c.audit(p, status, ns, before, ns.Spec)
	c.record(ns.Kind, status, false)
	return Result{Status: status, Resource: ns}, nil
}

// DeleteNamespace removes an empty namespace.
func (c *Controller) DeleteNamespace(ctx context.Context, name string, dryRun bool) (Result, error) {
	p, _ := principal.FromContext(ctx)
	key := resource.Key{Kind: resource.KindNamespace, Name: name}
	existing, err := c.repo.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("load namespace %s: %w", name, err)
	}
	if existing == nil {
		return Result{}, ErrNotFound
	}

	var reasons []string
	for _, kind := range resource.Kinds() {
		children, err := c.repo.List(ctx, kind, name)
		if err != nil {
			return Result{}, fmt.Errorf("list %s in %s: %w", kind, name, err)
		}
		for _, child := range children {
			reasons = append(reasons, fmt.Sprintf("namespace %s still has %s %s", name, kind, child.Metadata.Name))
		}
	}
	if len(reasons) > 0 {
		return Result{}, c.reject(c.logger, resource.KindNamespace, StageValidation, reasons)
	}

	if dryRun {
		c.record(resource.KindNamespace, resource.StatusDeleted, true)
		return Result{Status: resource.StatusDeleted, Resource: existing, DryRun: true}, nil
	}
	if _, err := c.repo.Delete(ctx, key); err != nil {
		return Result{}, fmt.Errorf("delete namespace %s: %w", name, err)
	}
	c.audit(p, resource.StatusDeleted, existing, existing.Spec, nil)
	c.record(resource.KindNamespace, resource.StatusDeleted, false)
	return Result{Status: resource.StatusDeleted, Resource: existing}, nil
}

// checkClusters requires a namespace to reference managed clusters only.
func (c *Controller) checkClusters(ns *resource.Resource) []string {
	if c.clusters == nil || ns.Metadata.Cluster == "" {
		return nil
	}
	if !c.clusters.HasCluster(ns.Metadata.Cluster) {
		return []string{fmt.Sprintf("invalid value %q for field metadata.cluster: Kafka cluster not found", ns.Metadata.Cluster)}
	}
	spec, err := resource.DecodeSpec[resource.NamespaceSpec](ns)
	if err != nil {
		return nil
	}
	var errs []string
	for _, connect := range spec.ConnectClusters {
		if !c.clusters.HasConnect(ns.Metadata.Cluster, connect) {
			errs = append(errs, fmt.Sprintf("invalid value %q for field spec.connectClusters: not found for Kafka cluster %s", connect, ns.Metadata.Cluster))
		}
	}
	return errs
}

// current returns the stored state r replaces. A namespace holds a single
// ResourceQuota, so a quota under a new name replaces the existing one.
func (c *Controller) current(ctx context.Context, r *resource.Resource) (*resource.Resource, error) {
	if r.Kind == resource.KindResourceQuota {
		existing, err := store.NewQuotas(c.repo).FindForNamespace(ctx, r.Metadata.Namespace)
		if err != nil {
			return nil, fmt.Errorf("load quota of %s: %w", r.Metadata.Namespace, err)
		}
		return existing, nil
	}
	existing, err := c.repo.Get(ctx, r.Key())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.Key(), err)
	}
	return existing, nil
}

func (c *Controller) checkEnvelope(namespace string, r *resource.Resource) []string {
	var errs []string
	if r.APIVersion != "" && r.APIVersion != resource.APIVersion {
		errs = append(errs, fmt.Sprintf("invalid value %q for field apiVersion", r.APIVersion))
	}
	if r.Kind == resource.KindNamespace || !r.Kind.Valid() {
		errs = append(errs, fmt.Sprintf("invalid value %q for field kind", r.Kind))
	}
	if r.Metadata.Namespace != "" && r.Metadata.Namespace != namespace {
		errs = append(errs, fmt.Sprintf("invalid value %q for field metadata.namespace: does not match namespace %s", r.Metadata.Namespace, namespace))
	}
	return errs
}

func (c *Controller) validate(ctx context.Context, p principal.Principal, ns, r, existing *resource.Resource) ([]string, error) {
	var reasons []string
	if v, ok := c.validators[r.Kind]; ok {
		reasons = append(reasons, v.Validate(ctx, r)...)
	}

	switch r.Kind {
	case resource.KindTopic:
		if existing == nil {
			break
		}
		before, err1 := resource.DecodeSpec[resource.TopicSpec](existing)
		after, err2 := resource.DecodeSpec[resource.TopicSpec](r)
		if err1 != nil || err2 != nil {
			break
		}
		if after.Partitions != before.Partitions {
			reasons = append(reasons, fmt.Sprintf("invalid value %d for field spec.partitions: value is immutable (%d)", after.Partitions, before.Partitions))
		}
		if after.ReplicationFactor != before.ReplicationFactor {
			reasons = append(reasons, fmt.Sprintf("invalid value %d for field spec.replicationFactor: value is immutable (%d)", after.ReplicationFactor, before.ReplicationFactor))
		}

	case resource.KindConnector:
		spec, err := resource.DecodeSpec[resource.ConnectorSpec](r)
		if err != nil || spec.ConnectCluster == "" {
			break
		}
		nsSpec, err := resource.DecodeSpec[resource.NamespaceSpec](ns)
		if err != nil {
			return nil, fmt.Errorf("decode namespace %s: %w", ns.Metadata.Name, err)
		}
		allowed := slices.ContainsFunc(nsSpec.ConnectClusters, func(name string) bool {
			return strings.EqualFold(name, spec.ConnectCluster)
		})
		switch {
		case !allowed:
			reasons = append(reasons, fmt.Sprintf("invalid value %q for field spec.connectCluster: not allowed for namespace %s", spec.ConnectCluster, ns.Metadata.Name))
		case c.clusters != nil && !c.clusters.HasConnect(ns.Metadata.Cluster, spec.ConnectCluster):
			reasons = append(reasons, fmt.Sprintf("invalid value %q for field spec.connectCluster: not found for Kafka cluster %s", spec.ConnectCluster, ns.Metadata.Cluster))
		}

	case resource.KindAccessControlEntry:
		if existing != nil && !resource.SpecEqual(existing.Spec, r.Spec) {
			reasons = append(reasons, "invalid modification of access control entry "+r.Metadata.Name+": spec is immutable")
			break
		}
		if c.entries == nil {
			break
		}
		spec, err := resource.DecodeSpec[resource.AccessControlEntrySpec](r)
		if err != nil {
			reasons = append(reasons, "invalid access control entry spec: "+err.Error())
			break
		}
		more, err := c.entries.Validate(ctx, store.AccessControlEntry{Name: r.Metadata.Name, Namespace: r.Metadata.Namespace, Spec: spec}, p.IsAdmin())
		if err != nil {
			return nil, fmt.Errorf("validate access control entry: %w", err)
		}
		reasons = append(reasons, more...)

	case resource.KindRoleBinding:
		spec, err := resource.DecodeSpec[resource.RoleBindingSpec](r)
		if err != nil || p.IsAdmin() {
			break
		}
		if slices.Contains(spec.Role.ResourceTypes, resource.KindRoleBinding.PathType()) {
			reasons = append(reasons, "invalid value \"role-bindings\" for field spec.role.resourceTypes: only admins can delegate role binding management")
		}
	}
	return reasons, nil
}

// checkOwnership requires the namespace to own the broker objects the
// resource maps to.
func (c *Controller) checkOwnership(ctx context.Context, namespace string, r *resource.Resource) ([]string, error) {
	if c.owners == nil {
		return nil, nil
	}
	type need struct {
		typ  resource.ACLResourceType
		name string
	}
	var needs []need
	switch r.Kind {
	case resource.KindTopic:
		needs = []need{{resource.ACLTopic, r.Metadata.Name}}
	case resource.KindConnector:
		needs = []need{{resource.ACLConnect, r.Metadata.Name}}
	case resource.KindKafkaStream:
		needs = []need{{resource.ACLTopic, r.Metadata.Name}, {resource.ACLGroup, r.Metadata.Name}}
	case resource.KindSchema:
		if topic, ok := SchemaTopic(r.Metadata.Name); ok {
			needs = []need{{resource.ACLTopic, topic}}
		}
	}

	var reasons []string
	for _, n := range needs {
		ok, err := c.owners.IsOwner(ctx, namespace, n.typ, n.name)
		if err != nil {
			return nil, fmt.Errorf("check ownership of %s %s: %w", n.typ, n.name, err)
		}
		if !ok {
			reasons = append(reasons, fmt.Sprintf("invalid value %q for field metadata.name: namespace %s is not owner of %s %s", r.Metadata.Name, namespace, n.typ, n.name))
		}
	}
	return reasons, nil
}

func (c *Controller) admit(ctx context.Context, namespace string, existing, r *resource.Resource) ([]string, error) {
	if c.quotas == nil {
		return nil, nil
	}
	if r.Kind == resource.KindResourceQuota {
		spec, err := resource.DecodeSpec[resource.ResourceQuotaSpec](r)
		if err != nil {
			return nil, fmt.Errorf("decode quota: %w", err)
		}
		return c.quotas.CheckLimits(ctx, namespace, spec)
	}
	if !quota.Countable(r.Kind) {
		return nil, nil
	}
	delta, err := c.quotas.DeltaFor(existing, r)
	if err != nil {
		return nil, fmt.Errorf("compute quota delta: %w", err)
	}
	return c.quotas.Admit(ctx, namespace, r.Kind, delta)
}

// stamp sets the server-owned fields on r.
func (c *Controller) stamp(existing, r *resource.Resource) {
	r.APIVersion = resource.APIVersion
	if existing != nil && existing.Metadata.CreationTimestamp != nil {
		ts := *existing.Metadata.CreationTimestamp
		r.Metadata.CreationTimestamp = &ts
		return
	}
	ts := c.now()
	r.Metadata.CreationTimestamp = &ts
}

func (c *Controller) persist(ctx context.Context, r *resource.Resource) error {
	if r.Kind == resource.KindResourceQuota {
		if err := store.NewQuotas(c.repo).Replace(ctx, r); err != nil {
			return fmt.Errorf("store %s: %w", r.Key(), err)
		}
		return nil
	}
	if err := c.repo.Put(ctx, r); err != nil {
		return fmt.Errorf("store %s: %w", r.Key(), err)
	}
	return nil
}

func (c *Controller) audit(p principal.Principal, status resource.ApplyStatus, r *resource.Resource, before, after resource.Spec) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(audit.NewEvent(p.Username(), p.IsAdmin(), status, r, before, after))
}

func (c *Controller) reject(log *slog.Logger, kind resource.Kind, stage Stage, reasons []string) error {
	log.Info("apply rejected", "stage", stage, "state", StateRejected, "reasons", reasons)
	if c.recorder != nil {
		c.recorder.ApplyRejected(string(kind), string(stage))
	}
	return rejected(stage, reasons)
}

func (c *Controller) record(kind resource.Kind, status resource.ApplyStatus, dryRun bool) {
	if c.recorder != nil {
		c.recorder.ApplyResult(string(kind), string(status), dryRun)
	}
}

// diff compares the declared resource with the stored one.
func diff(existing, r *resource.Resource) resource.ApplyStatus {
	switch {
	case existing == nil:
		return resource.StatusCreated
	case resource.SpecEqual(existing.Spec, r.Spec) && maps.Equal(existing.Metadata.Labels, r.Metadata.Labels):
		return resource.StatusUnchanged
	default:
		return resource.StatusChanged
	}
}

func (c *Controller) namespacesList(ctx context.Context) ([]*resource.Resource, error) {
	items, err := c.repo.List(ctx, resource.KindNamespace, "")
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	if items == nil {
		items = []*resource.Resource{}
	}
	return items, nil
}
