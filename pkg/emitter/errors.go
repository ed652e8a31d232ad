package emitter

import (
	"errors"
	"fmt"

	"github.com/funvibe/emitter/pkg/descriptor"
)

var (
	// ErrUnsupportedInterface matches every *UnsupportedInterfaceError.
	ErrUnsupportedInterface = errors.New("unsupported listener interface")

	// ErrSynthesisFailure matches every *SynthesisError.
	ErrSynthesisFailure = errors.New("dispatcher synthesis failed")

	// ErrInstantiationFailure matches every *InstantiationError.
	ErrInstantiationFailure = errors.New("dispatcher instantiation failed")

	// ErrNoSynthesizer is the cause of an UnsupportedInterfaceError when no
	// compiled dispatcher exists and dynamic synthesis is disabled.
	ErrNoSynthesizer = errors.New("no compiled dispatcher and dynamic synthesis is disabled")

	// ErrNotCompiled is reported by Fire on a dynamically synthesized
	// dispatcher, which has no typed view. Run emittergen for the interface
	// or use Invoke and Func instead.
	ErrNotCompiled = errors.New("dispatcher was not compiled; run emittergen or use Invoke")

	// ErrUnknownMethod is returned by Invoke and Func for a name that is not
	// a method of the listener interface.
	ErrUnknownMethod = errors.New("unknown listener method")

	// ErrArgumentMismatch is returned by Invoke when the arguments do not fit
	// the method's parameters.
	ErrArgumentMismatch = errors.New("arguments do not match method parameters")
)

// UnsupportedInterfaceError is an argument error: no dispatcher can be made
// for the interface. Err is the cause, typically a
// *descriptor.ContractViolation, descriptor.ErrNotInterface or
// ErrNoSynthesizer.
type UnsupportedInterfaceError struct {
	Interface descriptor.Identity
	Err       error
}

func (e *UnsupportedInterfaceError) Error() string {
	return fmt.Sprintf("unsupported listener interface %s: %v", e.Interface, e.Err)
}

func (e *UnsupportedInterfaceError) Unwrap() error { return e.Err }

func (e *UnsupportedInterfaceError) Is(target error) bool {
	return target == ErrUnsupportedInterface
}

// SynthesisError reports that a strategy could not produce a dispatcher type.
type SynthesisError struct {
	Interface descriptor.Identity
	Strategy  Strategy
	Err       error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis of %s: %v", e.Strategy, e.Interface, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesisFailure
}

// InstantiationError reports that a cached dispatcher type could not be
// instantiated.
type InstantiationError struct {
	Interface descriptor.Identity
	Err       error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiating dispatcher for %s: %v", e.Interface, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

func (e *InstantiationError) Is(target error) bool {
	return target == ErrInstantiationFailure
}
