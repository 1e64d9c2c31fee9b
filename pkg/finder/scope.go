package finder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nimburion/querykit/pkg/query"
)

var (
	// ErrUnknownScope is returned by Call for names that are neither a
	// registered scope nor a scoped_by_<field> helper.
	ErrUnknownScope = errors.New("finder: unknown scope")

	// ErrScopeArguments is returned when a scope rejects its arguments.
	ErrScopeArguments = errors.New("finder: invalid scope arguments")
)

// ScopeFunc builds a raw request from call arguments.
type ScopeFunc func(args ...any) (any, error)

// Scope is either a static raw request or a ScopeFunc.
type Scope struct {
	name    string
	request any
	fn      ScopeFunc
}

// Name returns the scope name.
func (s Scope) Name() string { return s.name }

// Request resolves the scope for args. A static scope merges the first
// argument, when it is a mapping, over its stored request.
func (s Scope) Request(args ...any) (any, error) {
	if s.fn != nil {
		req, err := s.fn(args...)
		if err != nil {
			return nil, fmt.Errorf("%w: scope %s: %v", ErrScopeArguments, s.name, err)
		}
		return req, nil
	}
	if len(args) > 1 {
		return nil, fmt.Errorf("%w: scope %s takes at most one request, got %d", ErrScopeArguments, s.name, len(args))
	}
	if len(args) == 0 || args[0] == nil {
		return s.request, nil
	}
	merged, err := query.MergeRequests(s.request, args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: scope %s: %v", ErrScopeArguments, s.name, err)
	}
	return merged, nil
}

// Scopes is a registry of named scopes. Embed it in a Model to satisfy the
// scope half of the interface. The zero value is ready to use.
type Scopes struct {
	mu     sync.RWMutex
	scopes map[string]Scope
}

// Define registers a static scope.
func (s *Scopes) Define(name string, request any) {
	s.put(Scope{name: name, request: request})
}

// DefineFunc registers a parameterized scope.
func (s *Scopes) DefineFunc(name string, fn ScopeFunc) {
	s.put(Scope{name: name, fn: fn})
}

func (s *Scopes) put(scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scopes == nil {
		s.scopes = map[string]Scope{}
	}
	s.scopes[scope.name] = scope
}

// Lookup returns the scope registered under name.
func (s *Scopes) Lookup(name string) (Scope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scope, ok := s.scopes[name]
	return scope, ok
}

// HasNamedScope reports whether name is registered.
func (s *Scopes) HasNamedScope(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// NamedScopeCriteria resolves a registered scope.
func (s *Scopes) NamedScopeCriteria(name string, args ...any) (any, error) {
	scope, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScope, name)
	}
	return scope.Request(args...)
}
