package apply

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/twmb/franz-go/pkg/sr"

	"github.com/michelin/ns4kafka-go/pkg/quota"
	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/tenancy"
)

// Validator checks a resource before it is admitted. It returns every
// problem found, or nil.
type Validator interface {
	Validate(ctx context.Context, r *resource.Resource) []string
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, r *resource.Resource) []string

func (f ValidatorFunc) Validate(ctx context.Context, r *resource.Resource) []string {
	return f(ctx, r)
}

const maxTopicNameLength = 249

var (
	topicNamePattern    = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	resourceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	allowedVerbs        = []string{"GET", "POST", "PUT", "DELETE"}
)

// DefaultValidators returns the field validators for every kind.
func DefaultValidators() map[resource.Kind]Validator {
	return map[resource.Kind]Validator{
		resource.KindNamespace:          ValidatorFunc(validateNamespace),
		resource.KindTopic:              ValidatorFunc(validateTopic),
		resource.KindConnector:          ValidatorFunc(validateConnector),
		resource.KindSchema:             ValidatorFunc(validateSchema),
		resource.KindRoleBinding:        ValidatorFunc(validateRoleBinding),
		resource.KindResourceQuota:      ValidatorFunc(validateQuota),
		resource.KindKafkaStream:        ValidatorFunc(validateStream),
		resource.KindAccessControlEntry: ValidatorFunc(validateName),
	}
}

func validateName(_ context.Context, r *resource.Resource) []string {
	name := r.Metadata.Name
	switch {
	case name == "":
		return []string{"field metadata.name must not be empty"}
	case len(name) > maxTopicNameLength:
		return []string{fmt.Sprintf("invalid value %q for field metadata.name: longer than %d characters", name, maxTopicNameLength)}
	case !resourceNamePattern.MatchString(name):
		return []string{fmt.Sprintf("invalid value %q for field metadata.name: must match %s", name, resourceNamePattern)}
	}
	return nil
}

func validateNamespace(ctx context.Context, r *resource.Resource) []string {
	errs := validateName(ctx, r)
	if r.Metadata.Name != "" {
		if err := tenancy.ValidateNamespace(r.Metadata.Name); err != nil {
			errs = append(errs, err.Error())
		}
	}
	spec, err := resource.DecodeSpec[resource.NamespaceSpec](r)
	if err != nil {
		return append(errs, "invalid namespace spec: "+err.Error())
	}
	if spec.KafkaUser == "" {
		errs = append(errs, "field spec.kafkaUser must not be empty")
	}
	if r.Metadata.Cluster == "" {
		errs = append(errs, "field metadata.cluster must not be empty")
	}
	return errs
}

func validateTopic(_ context.Context, r *resource.Resource) []string {
	var errs []string
	name := r.Metadata.Name
	switch {
	case name == "" || name == "." || name == "..":
		errs = append(errs, fmt.Sprintf("invalid value %q for field metadata.name: illegal topic name", name))
	case len(name) > maxTopicNameLength:
		errs = append(errs, fmt.Sprintf("invalid value %q for field metadata.name: longer than %d characters", name, maxTopicNameLength))
	case !topicNamePattern.MatchString(name):
		errs = append(errs, fmt.Sprintf("invalid value %q for field metadata.name: must only contain ASCII alphanumerics, '.', '_' and '-'", name))
	}

	spec, err := resource.DecodeSpec[resource.TopicSpec](r)
	if err != nil {
		return append(errs, "invalid topic spec: "+err.Error())
	}
	if spec.Partitions <= 0 {
		errs = append(errs, fmt.Sprintf("invalid value %d for field spec.partitions: must be greater than 0", spec.Partitions))
	}
	if spec.ReplicationFactor <= 0 {
		errs = append(errs, fmt.Sprintf("invalid value %d for field spec.replicationFactor: must be greater than 0", spec.ReplicationFactor))
	}
	if v, ok := spec.Configs["retention.bytes"]; ok {
		if _, err := quota.ParseRetentionBytes(v); err != nil {
			errs = append(errs, fmt.Sprintf("invalid value %q for configuration retention.bytes: must be -1 or a plain number of bytes", v))
		}
	}
	return errs
}

func validateConnector(ctx context.Context, r *resource.Resource) []string {
	errs := validateName(ctx, r)
	spec, err := resource.DecodeSpec[resource.ConnectorSpec](r)
	if err != nil {
		return append(errs, "invalid connector spec: "+err.Error())
	}
	if spec.ConnectCluster == "" {
		errs = append(errs, "field spec.connectCluster must not be empty")
	}
	if spec.Config["connector.class"] == "" {
		errs = append(errs, "field spec.config.connector.class must not be empty")
	}
	return errs
}

// SchemaTopic returns the topic a subject belongs to under the
// topic-name strategy.
func SchemaTopic(subject string) (string, bool) {
	for _, suffix := range []string{"-key", "-value"} {
		if topic, ok := strings.CutSuffix(subject, suffix); ok && topic != "" {
			return topic, true
		}
	}
	return "", false
}

func validateSchema(_ context.Context, r *resource.Resource) []string {
	var errs []string
	if _, ok := SchemaTopic(r.Metadata.Name); !ok {
		errs = append(errs, fmt.Sprintf("invalid value %q for field metadata.name: subject must end with -key or -value", r.Metadata.Name))
	}
	spec, err := resource.DecodeSpec[resource.SchemaSpec](r)
	if err != nil {
		return append(errs, "invalid schema spec: "+err.Error())
	}
	if strings.TrimSpace(spec.Schema) == "" {
		errs = append(errs, "field spec.schema must not be empty")
	}
	if spec.SchemaType != "" {
		var t sr.SchemaType
		if err := t.UnmarshalText([]byte(spec.SchemaType)); err != nil {
			errs = append(errs, fmt.Sprintf("invalid value %q for field spec.schemaType", spec.SchemaType))
		}
	}
	if spec.Compatibility != "" {
		var c sr.CompatibilityLevel
		if err := c.UnmarshalText([]byte(spec.Compatibility)); err != nil {
			errs = append(errs, fmt.Sprintf("invalid value %q for field spec.compatibility", spec.Compatibility))
		}
	}
	for i, ref := range spec.References {
		if ref.Name == "" || ref.Subject == "" {
			errs = append(errs, fmt.Sprintf("field spec.references[%d] requires name and subject", i))
		}
	}
	return errs
}

func validateRoleBinding(ctx context.Context, r *resource.Resource) []string {
	errs := validateName(ctx, r)
	spec, err := resource.DecodeSpec[resource.RoleBindingSpec](r)
	if err != nil {
		return append(errs, "invalid role binding spec: "+err.Error())
	}
	if len(spec.Role.ResourceTypes) == 0 {
		errs = append(errs, "field spec.role.resourceTypes must not be empty")
	}
	if len(spec.Role.Verbs) == 0 {
		errs = append(errs, "field spec.role.verbs must not be empty")
	}
	for _, v := range spec.Role.Verbs {
		if !slices.Contains(allowedVerbs, strings.ToUpper(v)) {
			errs = append(errs, fmt.Sprintf("invalid value %q for field spec.role.verbs", v))
		}
	}
	switch spec.Subject.SubjectType {
	case resource.SubjectGroup, resource.SubjectUser, "":
	default:
		errs = append(errs, fmt.Sprintf("invalid value %q for field spec.subject.subjectType", spec.Subject.SubjectType))
	}
	if spec.Subject.SubjectName == "" {
		errs = append(errs, "field spec.subject.subjectName must not be empty")
	}
	return errs
}

func validateQuota(ctx context.Context, r *resource.Resource) []string {
	errs := validateName(ctx, r)
	spec, err := resource.DecodeSpec[resource.ResourceQuotaSpec](r)
	if err != nil {
		return append(errs, "invalid resource quota spec: "+err.Error())
	}
	return append(errs, quota.ValidateLimits(spec)...)
}

func validateStream(ctx context.Context, r *resource.Resource) []string {
	return validateName(ctx, r)
}
