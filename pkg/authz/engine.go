package authz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// Engine is the RoleBinding-backed Authorizer.
type Engine struct {
	namespaces NamespaceLookup
	bindings   BindingLookup
	logger     *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(namespaces NamespaceLookup, bindings BindingLookup, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{namespaces: namespaces, bindings: bindings, logger: logger}
}

// Authorize implements Authorizer.
func (e *Engine) Authorize(ctx context.Context, req Request) Decision {
	if req.Principal == nil || req.Principal.Username() == "" {
		return NotApplicable
	}
	target, ok := ParsePath(req.Path)
	if !ok {
		return NotApplicable
	}

	exists, err := e.namespaces.Exists(ctx, target.Namespace)
	if err != nil {
		e.logger.Warn("namespace lookup failed", "namespace", target.Namespace, "error", err)
		return NotApplicable
	}
	if !exists {
		return NotApplicable
	}
	if req.Principal.IsAdmin() {
		return Allow
	}

	bindings, err := e.bindings.FindAllForNamespace(ctx, target.Namespace)
	if err != nil {
		e.logger.Warn("role binding lookup failed", "namespace", target.Namespace, "error", err)
		return NotApplicable
	}
	verb := strings.ToUpper(req.Method)
	for _, b := range bindings {
		if b.Namespace != target.Namespace {
			continue
		}
		if grants(b, req.Principal, target, verb) {
			return Allow
		}
	}
	return NotApplicable
}

func grants(b store.RoleBinding, p *principal.Principal, t Target, verb string) bool {
	if !subjectMatches(b.Spec.Subject, p) {
		return false
	}
	role := b.Spec.Role
	if !contains(role.ResourceTypes, t.ResourceType) {
		return false
	}
	if !containsFold(role.Verbs, verb) {
		return false
	}
	return t.ResourceID == "" || nameAllowed(role.ResourceNames, t.ResourceID)
}

func subjectMatches(s resource.Subject, p *principal.Principal) bool {
	switch s.SubjectType {
	case resource.SubjectUser:
		return s.SubjectName == p.Username()
	case resource.SubjectGroup, "":
		return p.InGroup(s.SubjectName)
	}
	return false
}

// nameAllowed applies the optional resourceNames restriction. An entry
// ending in "*" matches by prefix.
func nameAllowed(names []string, id string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == id {
			return true
		}
		if prefix, ok := strings.CutSuffix(n, "*"); ok && strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
