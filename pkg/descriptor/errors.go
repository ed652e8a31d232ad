package descriptor

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation matches every *ContractViolation via errors.Is.
	ErrContractViolation = errors.New("listener contract violation")

	// ErrNotInterface is returned when a descriptor is requested for a type
	// that is not an interface.
	ErrNotInterface = errors.New("only interfaces can be used as listeners")

	// ErrGeneric is returned for generic interface declarations.
	ErrGeneric = errors.New("generic listener interfaces are not supported")
)

// ReasonReturnsValue is the violation reason for a method with results.
const ReasonReturnsValue = "listener methods must not return values"

// ContractViolation reports a listener interface that does not satisfy the
// listener contract. Method names the first offending method.
type ContractViolation struct {
	Interface Identity
	Method    string
	Reason    string
}

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("listener interface %s: %s", e.Interface, e.Reason)
	}
	return fmt.Sprintf("listener interface %s: method %s: %s", e.Interface, e.Method, e.Reason)
}

// Is lets errors.Is(err, ErrContractViolation) match.
func (e *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}
