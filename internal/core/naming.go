package core

import (
	"regexp"
	"strconv"
	"strings"
)

// Separator joins the id segments of a client id.
const Separator = ":"

// GeneratedIDPrefix starts every id the engine assigns on its own.
const GeneratedIDPrefix = "j_id"

var idPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// NamingContainer is implemented by kinds that open a naming scope: the
// client ids of their descendants are prefixed with ContainerClientID.
type NamingContainer interface {
	Component
	ContainerClientID(rc *RequestContext) string
}

// ClientIDConverter may be implemented by a render delegate to rewrite the
// client ids of the components it renders.
type ClientIDConverter interface {
	ConvertClientID(rc *RequestContext, clientID string) string
}

// ClientID returns the id qualified by every enclosing naming scope. The
// result is cached until the id, the ancestry or an enclosing row changes.
func (b *Base) ClientID(rc *RequestContext) string {
	if b.clientID != "" {
		return b.clientID
	}
	id := b.ensureID(rc)
	cid := id
	for p := b.parent; p != nil; p = p.AsBase().parent {
		if nc, ok := p.(NamingContainer); ok {
			cid = nc.ContainerClientID(rc) + Separator + id
			break
		}
	}
	if d := rc.delegateFor(b.self); d != nil {
		if conv, ok := d.(ClientIDConverter); ok {
			cid = conv.ConvertClientID(rc, cid)
		}
	}
	b.clientID = cid
	return cid
}

// ensureID returns the id, generating one from the root's counter when none
// was assigned. The first generated id of a tree is logged as a warning.
func (b *Base) ensureID(rc *RequestContext) string {
	if id := b.ID(); id != "" {
		return id
	}
	rb := b.Root().AsBase()
	seq, _ := rb.helper.Get(keyIDSeq).(int)
	seq++
	rb.helper.Put(keyIDSeq, seq)
	id := GeneratedIDPrefix + strconv.Itoa(seq)
	b.helper.Put(keyID, id)
	if !rb.warnedGeneratedID {
		rb.warnedGeneratedID = true
		rc.logger().Warn("component without id, generated one; generated ids are not stable across view changes",
			"id", id, "family", b.family)
	}
	return id
}

func (b *Base) invalidateClientIDs() {
	visit(b.self, func(c Component) bool {
		c.AsBase().clientID = ""
		return true
	})
}

func (b *Base) invalidateDescendantClientIDs() {
	for _, kid := range b.facetsAndChildren() {
		kid.AsBase().invalidateClientIDs()
	}
}

// FindComponent resolves a search expression. A leading separator searches
// from the tree root; otherwise the search starts at the closest naming
// container enclosing (or being) the component. Each separator-delimited
// segment after the first must name a naming container's descendant.
func (b *Base) FindComponent(rc *RequestContext, expr string) Component {
	if expr == "" {
		return nil
	}
	var base Component
	if strings.HasPrefix(expr, Separator) {
		base = b.Root()
		expr = expr[len(Separator):]
	} else {
		base = b.self
		for {
			if _, ok := base.(NamingContainer); ok {
				break
			}
			parent := base.AsBase().parent
			if parent == nil {
				break
			}
			base = parent
		}
	}
	segments := strings.Split(expr, Separator)
	for i, seg := range segments {
		if i > 0 {
			if _, ok := base.(NamingContainer); !ok {
				rc.logger().Debug("search expression crosses a component that is not a naming container",
					"expr", expr, "segment", seg)
				return nil
			}
		}
		found := findInScope(base, seg)
		if found == nil {
			rc.logger().Debug("component not found", "expr", expr, "segment", seg)
			return nil
		}
		base = found
	}
	return base
}

// findInScope searches scope and its descendants for id without descending
// into nested naming containers.
func findInScope(scope Component, id string) Component {
	if scope.AsBase().ID() == id {
		return scope
	}
	for _, kid := range scope.AsBase().facetsAndChildren() {
		if kid.AsBase().ID() == id {
			return kid
		}
		if _, ok := kid.(NamingContainer); ok {
			continue
		}
		if found := findInScope(kid, id); found != nil {
			return found
		}
	}
	return nil
}

// CheckUniqueClientIDs walks the tree below root and reports the first client
// id shared by two components.
func CheckUniqueClientIDs(rc *RequestContext, root Component) error {
	seen := make(map[string]struct{})
	var dup error
	visit(root, func(c Component) bool {
		if dup != nil {
			return false
		}
		cid := c.AsBase().ClientID(rc)
		if _, ok := seen[cid]; ok {
			dup = DuplicateClientIDError{ClientID: cid}
			return false
		}
		seen[cid] = struct{}{}
		return true
	})
	return dup
}

// InvokeOnComponent finds the component rendering clientID below c and calls
// fn on it with any enclosing rows positioned as they were when the client id
// was rendered. It reports whether the component was found.
func InvokeOnComponent(rc *RequestContext, c Component, clientID string, fn func(Component) error) (bool, error) {
	if d, ok := c.(*Data); ok {
		return d.invokeOnComponent(rc, clientID, fn)
	}
	if c.AsBase().ClientID(rc) == clientID {
		return true, guard(rc, c, func() error { return fn(c) })
	}
	for _, kid := range c.AsBase().facetsAndChildren() {
		found, err := InvokeOnComponent(rc, kid, clientID, fn)
		if found || err != nil {
			return found, err
		}
	}
	return false, nil
}
