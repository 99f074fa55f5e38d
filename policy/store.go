// api/policy/store.go
package policy

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	logger "github.com/aegis-governance/aegis/api/logging"
)

// Store holds the currently active rule set behind an atomic pointer.
// Readers take a snapshot once per evaluation and keep using it even if an
// administrative swap lands mid-flight; writers build a fully-formed new set
// and swap the pointer. Neither side ever blocks the other.
type Store struct {
	active atomic.Pointer[RuleSet]
	onSwap func(*RuleSet)
}

func NewStore() *Store {
	return &Store{}
}

// OnSwap registers a hook invoked after each successful activation
// (cache refresh, event publication). Must be set before first use.
func (s *Store) OnSwap(fn func(*RuleSet)) {
	s.onSwap = fn
}

// Active returns the rule set in force for evaluations starting now.
// Returns nil before the first successful Swap.
func (s *Store) Active() *RuleSet {
	return s.active.Load()
}

// ActiveVersion returns the version of the active set, or "".
func (s *Store) ActiveVersion() string {
	if rs := s.active.Load(); rs != nil {
		return rs.Version
	}
	return ""
}

// Swap validates the candidate set and atomically replaces the active one.
// On validation failure the previously active set remains in force; a bad
// set is never partially applied.
func (s *Store) Swap(rs *RuleSet) error {
	if rs == nil {
		return fmt.Errorf("%w: nil rule set", aegis_errors.ErrPolicyLoad)
	}
	if err := rs.Validate(); err != nil {
		return err
	}
	s.active.Store(rs)
	logger.Info("Activated policy rule set",
		zap.String("version", rs.Version),
		zap.Int("rules", len(rs.Rules)))
	if s.onSwap != nil {
		s.onSwap(rs)
	}
	return nil
}

// LoadFile reads a yaml rule-set file, validates it, and activates it.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", aegis_errors.ErrPolicyLoad, err)
	}
	rs, err := Parse(data)
	if err != nil {
		return err
	}
	return s.Swap(rs)
}

// Parse decodes a yaml rule set without activating it.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", aegis_errors.ErrPolicyLoad, err)
	}
	return &rs, nil
}
