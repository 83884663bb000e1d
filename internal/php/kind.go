// Package php implements the PHP language domain: signature parsing,
// canonical naming, the per-build symbol tables and reference resolution.
package php

import "slices"

// NS is the PHP namespace separator.
const NS = `\`

// Kind is the kind of a declared PHP entity.
type Kind string

const (
	KindGlobal       Kind = "global"
	KindNamespace    Kind = "namespace"
	KindFunction     Kind = "function"
	KindConst        Kind = "const"
	KindClass        Kind = "class"
	KindInterface    Kind = "interface"
	KindTrait        Kind = "trait"
	KindEnum         Kind = "enum"
	KindCase         Kind = "case"
	KindMethod       Kind = "method"
	KindStaticMethod Kind = "staticmethod" // deprecated alias of method
	KindAttr         Kind = "attr"
	KindException    Kind = "exception" // deprecated alias of class

	// KindAny is used by references that accept any kind (the obj role).
	KindAny Kind = "obj"
)

// Kinds lists every declarable kind in a stable order.
var Kinds = []Kind{
	KindGlobal, KindNamespace, KindFunction, KindConst,
	KindClass, KindInterface, KindTrait, KindEnum, KindCase,
	KindMethod, KindStaticMethod, KindAttr, KindException,
}

var labels = map[Kind]string{
	KindGlobal:       "global variable",
	KindNamespace:    "namespace",
	KindFunction:     "function",
	KindConst:        "constant",
	KindClass:        "class",
	KindInterface:    "interface",
	KindTrait:        "trait",
	KindEnum:         "enum",
	KindCase:         "enum case",
	KindMethod:       "method",
	KindStaticMethod: "static method",
	KindAttr:         "property",
	KindException:    "exception",
}

// ParseKind returns the declarable kind named s.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, slices.Contains(Kinds, k)
}

// Label is the human readable name of the kind.
func (k Kind) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Separator joins an owning type and a member name. Namespace-level kinds
// return "" and are joined to their namespace with NS instead.
func (k Kind) Separator() string {
	switch k {
	case KindMethod, KindStaticMethod, KindConst, KindCase:
		return "::"
	case KindAttr:
		return "::$"
	}
	return ""
}

// ClassLike reports whether declarations of k open a class body.
func (k Kind) ClassLike() bool {
	switch k {
	case KindClass, KindInterface, KindTrait, KindEnum, KindException:
		return true
	}
	return false
}

// Callable reports whether references to k may be written with trailing
// parentheses and may fall back to object:: lookups.
func (k Kind) Callable() bool {
	switch k {
	case KindFunction, KindMethod, KindStaticMethod:
		return true
	}
	return false
}

// roles maps reference role names to the kind they look up.
var roles = map[string]Kind{
	"function":  KindFunction,
	"func":      KindFunction,
	"global":    KindGlobal,
	"class":     KindClass,
	"exc":       KindClass,
	"method":    KindMethod,
	"meth":      KindMethod,
	"attr":      KindAttr,
	"const":     KindConst,
	"namespace": KindNamespace,
	"ns":        KindNamespace,
	"obj":       KindAny,
	"interface": KindInterface,
	"trait":     KindTrait,
	"enum":      KindEnum,
	"case":      KindCase,
}

// RoleKind returns the kind looked up by a reference role.
func RoleKind(role string) (Kind, bool) {
	k, ok := roles[role]
	return k, ok
}

// objectRoles maps an object kind to the role that references it.
var objectRoles = map[Kind]string{
	KindFunction:     "func",
	KindGlobal:       "global",
	KindConst:        "const",
	KindClass:        "class",
	KindException:    "exc",
	KindMethod:       "meth",
	KindStaticMethod: "meth",
	KindAttr:         "attr",
	KindNamespace:    "ns",
	KindInterface:    "interface",
	KindTrait:        "trait",
	KindEnum:         "enum",
	KindCase:         "case",
}

// Role returns the reference role for objects of kind k.
func (k Kind) Role() string {
	if r, ok := objectRoles[k]; ok {
		return r
	}
	return "obj"
}

// roleOrder is the order ResolveAny tries roles in.
var roleOrder = []string{
	"function", "func", "global", "class", "exc", "method", "meth", "attr",
	"const", "namespace", "ns", "obj", "interface", "trait", "enum", "case",
}

// Roles returns every role name in lookup order.
func Roles() []string {
	return slices.Clone(roleOrder)
}
