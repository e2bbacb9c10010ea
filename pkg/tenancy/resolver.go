package tenancy

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
)

// MaxNamespaceLength follows the DNS label limit.
const MaxNamespaceLength = 63

var namespacePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ErrMissingNamespace is returned when a request carries no namespace.
var ErrMissingNamespace = errors.New("namespace is required")

// ValidateNamespace checks that name is a DNS label: lowercase
// alphanumerics and hyphens, starting and ending with an alphanumeric.
func ValidateNamespace(name string) error {
	if len(name) > MaxNamespaceLength {
		return fmt.Errorf("namespace %q exceeds maximum length of %d characters", name, MaxNamespaceLength)
	}
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("namespace %q is invalid: must consist of lowercase alphanumeric characters or hyphens, and must start and end with an alphanumeric character", name)
	}
	return nil
}

// Resolver extracts the target namespace from a request.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// PathResolver reads the namespace from a chi route parameter.
type PathResolver struct {
	Param string
}

// Resolve returns the validated route parameter.
func (p PathResolver) Resolve(r *http.Request) (string, error) {
	param := p.Param
	if param == "" {
		param = "namespace"
	}
	ns := chi.URLParam(r, param)
	if ns == "" {
		return "", ErrMissingNamespace
	}
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	return ns, nil
}
