package core

import (
	"sync"
)

// RenderDelegate decodes requests into and encodes responses from components
// of one (family, renderer type) pair.
type RenderDelegate interface {
	Decode(rc *RequestContext, c Component) error
	EncodeBegin(rc *RequestContext, c Component) error
	EncodeChildren(rc *RequestContext, c Component) error
	EncodeEnd(rc *RequestContext, c Component) error
	ConvertedValue(rc *RequestContext, c Component, submitted any) (any, error)
	RendersChildren() bool
}

// BaseDelegate implements RenderDelegate with no-ops. Embed it and override
// what the renderer needs.
type BaseDelegate struct{}

func (BaseDelegate) Decode(*RequestContext, Component) error         { return nil }
func (BaseDelegate) EncodeBegin(*RequestContext, Component) error    { return nil }
func (BaseDelegate) EncodeChildren(*RequestContext, Component) error { return nil }
func (BaseDelegate) EncodeEnd(*RequestContext, Component) error      { return nil }
func (BaseDelegate) RendersChildren() bool                           { return false }

func (BaseDelegate) ConvertedValue(rc *RequestContext, c Component, submitted any) (any, error) {
	return ConvertSubmitted(rc, c, submitted)
}

type delegateKey struct {
	family       string
	rendererType string
}

// RenderKit maps (family, renderer type) pairs to delegates.
type RenderKit struct {
	mu        sync.RWMutex
	delegates map[delegateKey]RenderDelegate
	missing   sync.Map // delegateKey -> struct{}
}

// NewRenderKit returns an empty kit.
func NewRenderKit() *RenderKit {
	return &RenderKit{delegates: make(map[delegateKey]RenderDelegate)}
}

// Register installs d, replacing any previous delegate for the pair.
func (k *RenderKit) Register(family, rendererType string, d RenderDelegate) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.delegates[delegateKey{family, rendererType}] = d
}

// Delegate looks up the delegate for a pair.
func (k *RenderKit) Delegate(family, rendererType string) (RenderDelegate, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	d, ok := k.delegates[delegateKey{family, rendererType}]
	return d, ok
}

func (k *RenderKit) reportMissing(log Logger, family, rendererType string) {
	if _, seen := k.missing.LoadOrStore(delegateKey{family, rendererType}, struct{}{}); seen {
		return
	}
	log.Warn("no render delegate registered", "family", family, "rendererType", rendererType)
}

// EncodeAll renders c and its subtree. Components with rendered=false are
// skipped together with their descendants.
func EncodeAll(rc *RequestContext, c Component) error {
	b := c.AsBase()
	if !b.Rendered(rc) {
		return nil
	}
	if err := guard(rc, c, func() error { return c.EncodeBegin(rc) }); err != nil {
		return err
	}
	if b.RendersChildren(rc) || isData(c) {
		if err := guard(rc, c, func() error { return c.EncodeChildren(rc) }); err != nil {
			return err
		}
	} else {
		for _, kid := range b.children {
			if err := EncodeAll(rc, kid); err != nil {
				return err
			}
		}
	}
	return guard(rc, c, func() error { return c.EncodeEnd(rc) })
}

func isData(c Component) bool {
	_, ok := c.(*Data)
	return ok
}
