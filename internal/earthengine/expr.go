// Package earthengine talks to the Earth Engine REST API. Computations are
// described as expression graphs built from Values and sent whole to the
// platform; nothing is evaluated locally.
package earthengine

import (
	"sort"
	"strconv"
)

type valueKind int

const (
	kindConstant valueKind = iota
	kindInvocation
	kindArgument
	kindFunction
	kindArray
	kindDictionary
)

// Value is one node of an expression graph.
type Value struct {
	kind     valueKind
	constant any
	function string
	args     map[string]*Value
	argName  string
	params   []string
	body     *Value
	items    []*Value
	entries  map[string]*Value
}

// Args are named arguments of a function invocation. Entries may be
// *Value, []*Value or plain JSON-encodable constants. Nil entries are
// dropped so optional arguments can be passed unconditionally.
type Args map[string]any

// Call invokes a platform algorithm by name.
func Call(function string, args Args) *Value {
	v := &Value{kind: kindInvocation, function: function, args: make(map[string]*Value, len(args))}
	for k, a := range args {
		if w := wrap(a); w != nil {
			v.args[k] = w
		}
	}
	return v
}

// Const wraps a JSON-encodable constant.
func Const(x any) *Value {
	return &Value{kind: kindConstant, constant: x}
}

// Ref refers to a parameter of the enclosing Lambda.
func Ref(name string) *Value {
	return &Value{kind: kindArgument, argName: name}
}

// Lambda defines a server-side function, as used by Collection.map.
func Lambda(params []string, body *Value) *Value {
	return &Value{kind: kindFunction, params: params, body: body}
}

// Array builds a list whose items may themselves be expressions.
func Array(items ...any) *Value {
	v := &Value{kind: kindArray, items: make([]*Value, 0, len(items))}
	for _, it := range items {
		v.items = append(v.items, wrapOrNull(it))
	}
	return v
}

// Dict builds a dictionary whose values may themselves be expressions.
func Dict(m map[string]any) *Value {
	v := &Value{kind: kindDictionary, entries: make(map[string]*Value, len(m))}
	for k, x := range m {
		v.entries[k] = wrapOrNull(x)
	}
	return v
}

func wrap(x any) *Value {
	switch t := x.(type) {
	case nil:
		return nil
	case *Value:
		return t
	case []*Value:
		items := make([]any, len(t))
		for i, it := range t {
			items[i] = it
		}
		return Array(items...)
	default:
		return Const(x)
	}
}

func wrapOrNull(x any) *Value {
	if w := wrap(x); w != nil {
		return w
	}
	return Const(nil)
}

// FunctionName returns the invoked algorithm, or "" for non-invocations.
func (v *Value) FunctionName() string {
	if v == nil || v.kind != kindInvocation {
		return ""
	}
	return v.function
}

// Arg returns a named argument of an invocation.
func (v *Value) Arg(name string) *Value {
	if v == nil || v.kind != kindInvocation {
		return nil
	}
	return v.args[name]
}

// ConstantValue returns the wrapped constant, or nil.
func (v *Value) ConstantValue() any {
	if v == nil || v.kind != kindConstant {
		return nil
	}
	return v.constant
}

// Walk visits v and every node beneath it depth first until fn returns false.
func (v *Value) Walk(fn func(*Value) bool) bool {
	if v == nil {
		return true
	}
	if !fn(v) {
		return false
	}
	switch v.kind {
	case kindInvocation:
		for _, k := range sortedKeys(v.args) {
			if !v.args[k].Walk(fn) {
				return false
			}
		}
	case kindFunction:
		return v.body.Walk(fn)
	case kindArray:
		for _, it := range v.items {
			if !it.Walk(fn) {
				return false
			}
		}
	case kindDictionary:
		for _, k := range sortedKeys(v.entries) {
			if !v.entries[k].Walk(fn) {
				return false
			}
		}
	}
	return true
}

// Uses reports whether the graph invokes the named algorithm anywhere.
func (v *Value) Uses(function string) bool {
	found := false
	v.Walk(func(n *Value) bool {
		if n.FunctionName() == function {
			found = true
			return false
		}
		return true
	})
	return found
}

// Expression is the wire form of a Value graph.
type Expression struct {
	Result string         `json:"result"`
	Values map[string]any `json:"values"`
}

// Encode serializes v. Function bodies are hoisted into the value table and
// everything else is inlined; key order is fixed so equal graphs encode to
// equal bytes.
func Encode(v *Value) Expression {
	e := &encoder{values: make(map[string]any)}
	root := e.node(v)
	return Expression{Result: e.add(root), Values: e.values}
}

type encoder struct {
	values map[string]any
	next   int
}

func (e *encoder) add(node map[string]any) string {
	id := strconv.Itoa(e.next)
	e.next++
	e.values[id] = node
	return id
}

func (e *encoder) node(v *Value) map[string]any {
	if v == nil {
		return map[string]any{"constantValue": nil}
	}
	switch v.kind {
	case kindInvocation:
		args := make(map[string]any, len(v.args))
		for _, k := range sortedKeys(v.args) {
			args[k] = e.node(v.args[k])
		}
		return map[string]any{"functionInvocationValue": map[string]any{
			"functionName": v.function,
			"arguments":    args,
		}}
	case kindArgument:
		return map[string]any{"argumentReference": v.argName}
	case kindFunction:
		body := e.add(e.node(v.body))
		return map[string]any{"functionDefinitionValue": map[string]any{
			"argumentNames": v.params,
			"body":          body,
		}}
	case kindArray:
		items := make([]any, len(v.items))
		for i, it := range v.items {
			items[i] = e.node(it)
		}
		return map[string]any{"arrayValue": map[string]any{"values": items}}
	case kindDictionary:
		entries := make(map[string]any, len(v.entries))
		for _, k := range sortedKeys(v.entries) {
			entries[k] = e.node(v.entries[k])
		}
		return map[string]any{"dictionaryValue": map[string]any{"values": entries}}
	default:
		return map[string]any{"constantValue": v.constant}
	}
}

func sortedKeys(m map[string]*Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
