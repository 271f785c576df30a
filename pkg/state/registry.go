package state

import (
	"fmt"
	"sync"
)

// Kinded is implemented by holders that can be recreated from a snapshot when
// the graph being restored does not already carry an instance.
type Kinded interface {
	Holder
	StateKind() string
}

var kinds sync.Map // kind -> func() Holder

// RegisterKind makes a holder kind restorable by name. Registering the same
// kind twice panics, mirroring encoding/gob.Register.
func RegisterKind(kind string, factory func() Holder) {
	if kind == "" || factory == nil {
		panic("state: RegisterKind requires a kind and a factory")
	}
	if _, dup := kinds.LoadOrStore(kind, factory); dup {
		panic(fmt.Sprintf("state: kind %q registered twice", kind))
	}
}

func newHolder(kind string) (Holder, error) {
	f, ok := kinds.Load(kind)
	if !ok {
		return nil, fmt.Errorf("state: unknown holder kind %q", kind)
	}
	return f.(func() Holder)(), nil
}

func kindOf(h Holder) (string, error) {
	k, ok := h.(Kinded)
	if !ok {
		return "", fmt.Errorf("state: holder %T does not report a kind", h)
	}
	return k.StateKind(), nil
}

func init() {
	RegisterKind(HelperKind, func() Holder { return NewHelper() })
}
