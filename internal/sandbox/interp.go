package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

// value is the interpreter's own runtime representation. Numbers are
// float64 throughout, matching the target language's single numeric type;
// the boundary conversion back to model.Value (see valueToModel) is where
// integer/fractional kinds are told apart.
type value interface{}

type jsNull struct{}
type jsUndefined struct{}

type jsObject struct {
	keys []string
	vals map[string]value
}

func newObject() *jsObject { return &jsObject{vals: map[string]value{}} }

func (o *jsObject) set(k string, v value) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

type jsArray struct{ items []value }

type funcValue struct {
	name    string
	params  []string
	body    *syntax.Node
	closure *env
	native  func(this value, args []value) (value, error)
	source  []byte
}

// env is a lexical scope: a flat map with a parent pointer, matching the
// closures the assembled program relies on for hoisting helper definitions
// into one shared scope so forward references between helpers resolve.
type env struct {
	vars   map[string]value
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: map[string]value{}, parent: parent}
}

func (e *env) get(name string) (value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *env) define(name string, v value) { e.vars[name] = v }

func (e *env) assign(name string, v value) {
	for cur := e; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
	}
	// implicit global, matching non-strict-mode assignment to an undeclared name
	root := e
	for root.parent != nil {
		root = root.parent
	}
	root.vars[name] = v
}

// throwPanic carries a JS-level thrown value, caught by an interpreted
// try/catch; an uncaught one is recovered by run, which then returns no
// results, no trace entries, and no error.
type throwPanic struct{ v value }

type returnSignal struct{ v value }
type breakSignal struct{}
type continueSignal struct{}

// interp runs one assembled program to completion inside the worker
// process. It is deliberately small: enough of the target language to
// execute the arithmetic- and string-shaped helpers the pattern this system
// deobfuscates actually contains, not a general-purpose engine.
type interp struct {
	source []byte
	global *env
	trace  []TraceEntry
}

func newInterp(source []byte) *interp {
	it := &interp{source: source, global: newEnv(nil)}
	it.installGlobals()
	return it
}

func (it *interp) installGlobals() {
	console := newObject()
	noop := &funcValue{native: func(value, []value) (value, error) { return jsUndefined{}, nil }}
	console.set("log", noop)
	console.set("warn", noop)
	console.set("error", noop)
	it.global.define("console", console)

	it.global.define("require", &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) == 0 {
			return jsUndefined{}, nil
		}
		return args[0], nil
	}})

	date := newObject()
	date.set("now", &funcValue{native: func(value, []value) (value, error) {
		return float64(time.Now().UnixMilli()), nil
	}})
	it.global.define("Date", date)

	math := newObject()
	math.set("floor", nativeMath(math1(math.Floor)))
	math.set("ceil", nativeMath(math1(math.Ceil)))
	math.set("round", nativeMath(math1(math.Round)))
	math.set("abs", nativeMath(math1(math.Abs)))
	math.set("sqrt", nativeMath(math1(math.Sqrt)))
	math.set("pow", &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) < 2 {
			return math0, nil
		}
		return math.Pow(toNumber(args[0]), toNumber(args[1])), nil
	}})
	math.set("max", &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) == 0 {
			return math.Inf(-1), nil
		}
		m := toNumber(args[0])
		for _, a := range args[1:] {
			if n := toNumber(a); n > m {
				m = n
			}
		}
		return m, nil
	}})
	math.set("min", &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) == 0 {
			return math.Inf(1), nil
		}
		m := toNumber(args[0])
		for _, a := range args[1:] {
			if n := toNumber(a); n < m {
				m = n
			}
		}
		return m, nil
	}})
	it.global.define("Math", math)

	it.global.define("NaN", math.NaN())
	it.global.define("Infinity", math.Inf(1))
	it.global.define("undefined", jsUndefined{})

	it.global.define("String", &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) == 0 {
			return "", nil
		}
		return toStringValue(args[0]), nil
	}})
	it.global.define("Number", &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) == 0 {
			return math0, nil
		}
		return toNumber(args[0]), nil
	}})
	it.global.define("Boolean", &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) == 0 {
			return false, nil
		}
		return toBool(args[0]), nil
	}})
}

var math0 = 0.0

func math1(f func(float64) float64) func(float64) float64 { return f }

func nativeMath(f func(float64) float64) *funcValue {
	return &funcValue{native: func(_ value, args []value) (value, error) {
		if len(args) == 0 {
			return math0, nil
		}
		return f(toNumber(args[0])), nil
	}}
}

// run executes program (already parsed with the same grammar used
// elsewhere in the pipeline) in the global scope, returning the results
// map assembled by safe_call.
func (it *interp) run(root *syntax.Node) (map[string]model.Value, []TraceEntry, error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(throwPanic); ok {
				return
			}
			panic(r)
		}
	}()

	if err := it.execBlockChildren(root, it.global); err != nil {
		return nil, it.trace, err
	}

	resultsVal, ok := it.global.get("__results")
	results := map[string]model.Value{}
	if ok {
		if obj, ok := resultsVal.(*jsObject); ok {
			for _, k := range obj.keys {
				mv, ok := valueToModel(obj.vals[k])
				if ok {
					results[k] = mv
				}
			}
		}
	}

	if traceVal, ok := it.global.get("__trace"); ok {
		if arr, ok := traceVal.(*jsArray); ok {
			it.trace = traceEntriesFromValue(arr)
		}
	}

	return results, it.trace, nil
}

func (it *interp) execBlockChildren(n *syntax.Node, e *env) (err error) {
	// Hoist function declarations so statements earlier in the block can
	// call helpers defined after them.
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "function_declaration" {
			if err := it.execStatement(child, e); err != nil {
				return err
			}
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if err := it.execStatement(n.NamedChild(i), e); err != nil {
			return err
		}
	}
	return nil
}

// execStatement evaluates one statement. Control-flow (return/break/
// continue) is signalled via panic/recover, matching a common shape for
// small tree-walking interpreters where plumbing a signal through every
// nested return is otherwise all boilerplate.
func (it *interp) execStatement(n *syntax.Node, e *env) error {
	switch n.Type() {
	case "expression_statement":
		if n.NamedChildCount() == 0 {
			return nil
		}
		_, err := it.eval(n.NamedChild(0), e)
		return err

	case "variable_declaration", "lexical_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			nameNode := decl.ChildByFieldName("name")
			valueNode := decl.ChildByFieldName("value")
			var v value = jsUndefined{}
			if valueNode != nil {
				var err error
				v, err = it.eval(valueNode, e)
				if err != nil {
					return err
				}
			}
			if nameNode != nil {
				e.define(syntax.Print(nameNode, it.source), v)
			}
		}
		return nil

	case "function_declaration":
		name := ""
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name = syntax.Print(nameNode, it.source)
		}
		fv := it.makeFunction(n, e, name)
		e.define(name, fv)
		return nil

	case "return_statement":
		var v value = jsUndefined{}
		if n.NamedChildCount() > 0 {
			var err error
			v, err = it.eval(n.NamedChild(0), e)
			if err != nil {
				return err
			}
		}
		panic(returnSignal{v})

	case "if_statement":
		cond := n.ChildByFieldName("condition")
		cv, err := it.eval(unwrapParenField(cond), e)
		if err != nil {
			return err
		}
		if toBool(cv) {
			return it.execStatement(n.ChildByFieldName("consequence"), e)
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			return it.execStatement(alt, e)
		}
		return nil

	case "statement_block":
		block := newEnv(e)
		return it.execBlockChildren(n, block)

	case "while_statement":
		return it.execWhile(n, e)

	case "do_statement":
		return it.execDoWhile(n, e)

	case "for_statement":
		return it.execFor(n, e)

	case "break_statement":
		panic(breakSignal{})

	case "continue_statement":
		panic(continueSignal{})

	case "throw_statement":
		v, err := it.eval(n.NamedChild(0), e)
		if err != nil {
			return err
		}
		panic(throwPanic{v})

	case "try_statement":
		return it.execTry(n, e)

	case "empty_statement":
		return nil

	default:
		// Statement shapes outside this small interpreter's coverage are
		// skipped rather than treated as fatal, matching the shrink-only
		// posture: better to under-evaluate a helper (it simply drops out
		// of R) than to abort the whole harness run over one construct.
		return nil
	}
}

func unwrapParenField(n *syntax.Node) *syntax.Node {
	if n == nil {
		return n
	}
	if n.Type() == "parenthesized_expression" && n.NamedChildCount() > 0 {
		return n.NamedChild(0)
	}
	return n
}

func (it *interp) execWhile(n *syntax.Node, e *env) (err error) {
	cond := n.ChildByFieldName("condition")
	body := n.ChildByFieldName("body")
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(breakSignal); ok {
				return
			}
			panic(r)
		}
	}()
	for {
		cv, cerr := it.eval(unwrapParenField(cond), e)
		if cerr != nil {
			return cerr
		}
		if !toBool(cv) {
			return nil
		}
		if err := it.runLoopBody(body, e); err != nil {
			return err
		}
	}
}

func (it *interp) execDoWhile(n *syntax.Node, e *env) (err error) {
	cond := n.ChildByFieldName("condition")
	body := n.ChildByFieldName("body")
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(breakSignal); ok {
				return
			}
			panic(r)
		}
	}()
	for {
		if err := it.runLoopBody(body, e); err != nil {
			return err
		}
		cv, cerr := it.eval(unwrapParenField(cond), e)
		if cerr != nil {
			return cerr
		}
		if !toBool(cv) {
			return nil
		}
	}
}

func (it *interp) execFor(n *syntax.Node, e *env) (err error) {
	loopEnv := newEnv(e)
	if init := n.ChildByFieldName("initializer"); init != nil {
		if init.Type() == "variable_declaration" || init.Type() == "lexical_declaration" {
			if err := it.execStatement(init, loopEnv); err != nil {
				return err
			}
		} else {
			if _, err := it.eval(init, loopEnv); err != nil {
				return err
			}
		}
	}
	cond := n.ChildByFieldName("condition")
	update := n.ChildByFieldName("increment")
	body := n.ChildByFieldName("body")

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(breakSignal); ok {
				return
			}
			panic(r)
		}
	}()

	for {
		if cond != nil {
			cv, cerr := it.eval(cond, loopEnv)
			if cerr != nil {
				return cerr
			}
			if !toBool(cv) {
				return nil
			}
		}
		if err := it.runLoopBody(body, loopEnv); err != nil {
			return err
		}
		if update != nil {
			if _, err := it.eval(update, loopEnv); err != nil {
				return err
			}
		}
	}
}

func (it *interp) runLoopBody(body *syntax.Node, e *env) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(continueSignal); ok {
				return
			}
			panic(r)
		}
	}()
	return it.execStatement(body, e)
}

func (it *interp) execTry(n *syntax.Node, e *env) error {
	var tryErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if tp, ok := r.(throwPanic); ok {
					if catch := n.ChildByFieldName("handler"); catch != nil {
						catchEnv := newEnv(e)
						if param := catch.ChildByFieldName("parameter"); param != nil {
							catchEnv.define(syntax.Print(param, it.source), tp.v)
						}
						body := catch.ChildByFieldName("body")
						tryErr = it.execStatement(body, catchEnv)
						return
					}
				}
				panic(r)
			}
		}()
		body := n.ChildByFieldName("body")
		tryErr = it.execStatement(body, e)
	}()

	if finalizer := n.ChildByFieldName("finalizer"); finalizer != nil {
		if ferr := it.execStatement(finalizer, e); ferr != nil {
			return ferr
		}
	}
	return tryErr
}

// makeFunction builds a closure from a function/arrow-function/function-
// expression node, capturing e as the lexical scope so a helper's forward
// references to sibling helpers resolve once both are defined.
func (it *interp) makeFunction(n *syntax.Node, e *env, name string) *funcValue {
	params := it.paramNames(n)
	body := n.ChildByFieldName("body")
	return &funcValue{name: name, params: params, body: body, closure: e, source: it.source}
}

func (it *interp) paramNames(n *syntax.Node) []string {
	pnode := n.ChildByFieldName("parameters")
	if pnode == nil {
		// arrow function with a single bare identifier parameter
		if n.Type() == "arrow_function" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() == "identifier" {
					return []string{syntax.Print(c, it.source)}
				}
			}
		}
		return nil
	}
	var names []string
	for i := 0; i < int(pnode.NamedChildCount()); i++ {
		p := pnode.NamedChild(i)
		switch p.Type() {
		case "identifier":
			names = append(names, syntax.Print(p, it.source))
		case "assignment_pattern":
			if left := p.ChildByFieldName("left"); left != nil {
				names = append(names, syntax.Print(left, it.source))
			}
		default:
			names = append(names, syntax.Print(p, it.source))
		}
	}
	return names
}

// call invokes fv with the given arguments, catching the returnSignal panic
// its body raises for `return` and translating a native/interpreter error
// into a Go error the caller (ultimately execStatement/eval) can propagate.
func (it *interp) call(fv *funcValue, this value, args []value) (result value, err error) {
	if fv.native != nil {
		return fv.native(this, args)
	}

	callEnv := newEnv(fv.closure)
	for i, p := range fv.params {
		if i < len(args) {
			callEnv.define(p, args[i])
		} else {
			callEnv.define(p, jsUndefined{})
		}
	}
	argsArr := &jsArray{items: append([]value{}, args...)}
	callEnv.define("arguments", argsArr)

	result = jsUndefined{}
	defer func() {
		if r := recover(); r != nil {
			if rs, ok := r.(returnSignal); ok {
				result = rs.v
				return
			}
			panic(r)
		}
	}()

	if fv.body == nil {
		return jsUndefined{}, nil
	}
	if fv.body.Type() == "statement_block" {
		err = it.execBlockChildren(fv.body, callEnv)
		return result, err
	}
	// arrow function with an expression body
	result, err = it.eval(fv.body, callEnv)
	return result, err
}

// eval evaluates an expression node to a value.
func (it *interp) eval(n *syntax.Node, e *env) (value, error) {
	switch n.Type() {
	case "number":
		return parseNumberLiteral(syntax.Print(n, it.source)), nil
	case "string":
		return unquoteString(syntax.Print(n, it.source)), nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return jsNull{}, nil
	case "identifier":
		text := syntax.Print(n, it.source)
		if text == "undefined" {
			return jsUndefined{}, nil
		}
		if v, ok := e.get(text); ok {
			return v, nil
		}
		panic(throwPanic{v: "ReferenceError: " + text + " is not defined"})
	case "this":
		if v, ok := e.get("this"); ok {
			return v, nil
		}
		return jsUndefined{}, nil
	case "parenthesized_expression":
		return it.eval(n.NamedChild(0), e)
	case "array":
		arr := &jsArray{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			v, err := it.eval(n.NamedChild(i), e)
			if err != nil {
				return nil, err
			}
			arr.items = append(arr.items, v)
		}
		return arr, nil
	case "object":
		obj := newObject()
		for i := 0; i < int(n.NamedChildCount()); i++ {
			p := n.NamedChild(i)
			switch p.Type() {
			case "pair":
				keyNode := p.ChildByFieldName("key")
				valNode := p.ChildByFieldName("value")
				key := propertyKeyText(keyNode, it.source)
				v, err := it.eval(valNode, e)
				if err != nil {
					return nil, err
				}
				obj.set(key, v)
			case "shorthand_property_identifier":
				name := syntax.Print(p, it.source)
				v, _ := e.get(name)
				obj.set(name, v)
			}
		}
		return obj, nil
	case "function", "function_expression", "arrow_function":
		name := ""
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name = syntax.Print(nameNode, it.source)
		}
		return it.makeFunction(n, e, name), nil
	case "unary_expression":
		return it.evalUnary(n, e)
	case "update_expression":
		return it.evalUpdate(n, e)
	case "binary_expression":
		return it.evalBinary(n, e)
	case "logical_expression":
		return it.evalLogical(n, e)
	case "assignment_expression":
		return it.evalAssignment(n, e)
	case "sequence_expression":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left != nil {
			if _, err := it.eval(left, e); err != nil {
				return nil, err
			}
		}
		return it.eval(right, e)
	case "ternary_expression":
		cond, err := it.eval(n.ChildByFieldName("condition"), e)
		if err != nil {
			return nil, err
		}
		if toBool(cond) {
			return it.eval(n.ChildByFieldName("consequence"), e)
		}
		return it.eval(n.ChildByFieldName("alternative"), e)
	case "member_expression":
		obj, prop, err := it.evalMemberTarget(n, e)
		if err != nil {
			return nil, err
		}
		return getProperty(obj, prop), nil
	case "subscript_expression":
		objNode := n.ChildByFieldName("object")
		idxNode := n.ChildByFieldName("index")
		obj, err := it.eval(objNode, e)
		if err != nil {
			return nil, err
		}
		idx, err := it.eval(idxNode, e)
		if err != nil {
			return nil, err
		}
		return getProperty(obj, toPropertyKey(idx)), nil
	case "call_expression":
		return it.evalCall(n, e)
	case "template_string":
		return it.evalTemplate(n, e)
	default:
		return jsUndefined{}, nil
	}
}

func propertyKeyText(n *syntax.Node, source []byte) string {
	if n.Type() == "string" {
		return unquoteString(syntax.Print(n, source))
	}
	return syntax.Print(n, source)
}

func (it *interp) evalTemplate(n *syntax.Node, e *env) (value, error) {
	var b strings.Builder
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "template_substitution":
			if c.NamedChildCount() == 0 {
				continue
			}
			v, err := it.eval(c.NamedChild(0), e)
			if err != nil {
				return nil, err
			}
			b.WriteString(toStringValue(v))
		case "`":
			continue
		default:
			b.WriteString(c.Content(it.source))
		}
	}
	return b.String(), nil
}

func (it *interp) evalUnary(n *syntax.Node, e *env) (value, error) {
	op := syntax.Print(n.ChildByFieldName("operator"), it.source)
	arg := n.ChildByFieldName("argument")
	v, err := it.eval(arg, e)
	if err != nil {
		return nil, err
	}
	switch op {
	case "-":
		return -toNumber(v), nil
	case "+":
		return toNumber(v), nil
	case "!":
		return !toBool(v), nil
	case "typeof":
		return typeOf(v), nil
	case "void":
		return jsUndefined{}, nil
	default:
		return jsUndefined{}, nil
	}
}

func (it *interp) evalUpdate(n *syntax.Node, e *env) (value, error) {
	op := syntax.Print(n.ChildByFieldName("operator"), it.source)
	target := n.ChildByFieldName("argument")
	if target == nil {
		target = n.ChildByFieldName("operand")
	}
	cur, err := it.eval(target, e)
	if err != nil {
		return nil, err
	}
	old := toNumber(cur)
	next := old + 1
	if op == "--" {
		next = old - 1
	}
	if err := it.assignTo(target, next, e); err != nil {
		return nil, err
	}
	prefix := n.Child(0).Type() == op
	if prefix {
		return next, nil
	}
	return old, nil
}

func (it *interp) evalBinary(n *syntax.Node, e *env) (value, error) {
	op := syntax.Print(n.ChildByFieldName("operator"), it.source)
	l, err := it.eval(n.ChildByFieldName("left"), e)
	if err != nil {
		return nil, err
	}
	r, err := it.eval(n.ChildByFieldName("right"), e)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		if _, ok := l.(string); ok {
			return toStringValue(l) + toStringValue(r), nil
		}
		if _, ok := r.(string); ok {
			return toStringValue(l) + toStringValue(r), nil
		}
		return toNumber(l) + toNumber(r), nil
	case "-":
		return toNumber(l) - toNumber(r), nil
	case "*":
		return toNumber(l) * toNumber(r), nil
	case "/":
		return toNumber(l) / toNumber(r), nil
	case "%":
		return math.Mod(toNumber(l), toNumber(r)), nil
	case "**":
		return math.Pow(toNumber(l), toNumber(r)), nil
	case "==", "===":
		return looseEqual(l, r), nil
	case "!=", "!==":
		return !looseEqual(l, r), nil
	case "<":
		return compare(l, r) < 0, nil
	case "<=":
		return compare(l, r) <= 0, nil
	case ">":
		return compare(l, r) > 0, nil
	case ">=":
		return compare(l, r) >= 0, nil
	case "&":
		return float64(int64(toNumber(l)) & int64(toNumber(r))), nil
	case "|":
		return float64(int64(toNumber(l)) | int64(toNumber(r))), nil
	case "^":
		return float64(int64(toNumber(l)) ^ int64(toNumber(r))), nil
	case "<<":
		return float64(int64(toNumber(l)) << uint(int64(toNumber(r)))), nil
	case ">>":
		return float64(int64(toNumber(l)) >> uint(int64(toNumber(r)))), nil
	default:
		return jsUndefined{}, nil
	}
}

func (it *interp) evalLogical(n *syntax.Node, e *env) (value, error) {
	op := syntax.Print(n.ChildByFieldName("operator"), it.source)
	l, err := it.eval(n.ChildByFieldName("left"), e)
	if err != nil {
		return nil, err
	}
	switch op {
	case "&&":
		if !toBool(l) {
			return l, nil
		}
		return it.eval(n.ChildByFieldName("right"), e)
	case "||":
		if toBool(l) {
			return l, nil
		}
		return it.eval(n.ChildByFieldName("right"), e)
	case "??":
		if _, ok := l.(jsUndefined); ok {
			return it.eval(n.ChildByFieldName("right"), e)
		}
		if _, ok := l.(jsNull); ok {
			return it.eval(n.ChildByFieldName("right"), e)
		}
		return l, nil
	default:
		return jsUndefined{}, nil
	}
}

func (it *interp) evalAssignment(n *syntax.Node, e *env) (value, error) {
	op := syntax.Print(n.ChildByFieldName("operator"), it.source)
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	rv, err := it.eval(right, e)
	if err != nil {
		return nil, err
	}
	if op != "=" {
		cur, err := it.eval(left, e)
		if err != nil {
			return nil, err
		}
		switch op {
		case "+=":
			if _, ok := cur.(string); ok {
				rv = toStringValue(cur) + toStringValue(rv)
			} else {
				rv = toNumber(cur) + toNumber(rv)
			}
		case "-=":
			rv = toNumber(cur) - toNumber(rv)
		case "*=":
			rv = toNumber(cur) * toNumber(rv)
		case "/=":
			rv = toNumber(cur) / toNumber(rv)
		}
	}
	if err := it.assignTo(left, rv, e); err != nil {
		return nil, err
	}
	return rv, nil
}

func (it *interp) assignTo(target *syntax.Node, v value, e *env) error {
	switch target.Type() {
	case "identifier":
		e.assign(syntax.Print(target, it.source), v)
		return nil
	case "member_expression":
		obj, prop, err := it.evalMemberTarget(target, e)
		if err != nil {
			return err
		}
		setProperty(obj, prop, v)
		return nil
	case "subscript_expression":
		objNode := target.ChildByFieldName("object")
		idxNode := target.ChildByFieldName("index")
		obj, err := it.eval(objNode, e)
		if err != nil {
			return err
		}
		idx, err := it.eval(idxNode, e)
		if err != nil {
			return err
		}
		setProperty(obj, toPropertyKey(idx), v)
		return nil
	default:
		return nil
	}
}

func (it *interp) evalMemberTarget(n *syntax.Node, e *env) (value, string, error) {
	objNode := n.ChildByFieldName("object")
	propNode := n.ChildByFieldName("property")
	obj, err := it.eval(objNode, e)
	if err != nil {
		return nil, "", err
	}
	prop := syntax.Print(propNode, it.source)
	return obj, prop, nil
}

func (it *interp) evalCall(n *syntax.Node, e *env) (value, error) {
	calleeNode := n.ChildByFieldName("function")
	argsNode := n.ChildByFieldName("arguments")

	var args []value
	if argsNode != nil {
		for i := 0; i < int(argsNode.NamedChildCount()); i++ {
			v, err := it.eval(argsNode.NamedChild(i), e)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}

	if calleeNode.Type() == "member_expression" {
		obj, prop, err := it.evalMemberTarget(calleeNode, e)
		if err != nil {
			return nil, err
		}
		if builtin, ok := methodOn(obj, prop, it); ok {
			return builtin(args)
		}
		fv, ok := getProperty(obj, prop).(*funcValue)
		if !ok {
			panic(throwPanic{v: "TypeError: " + prop + " is not a function"})
		}
		return it.call(fv, obj, args)
	}

	callee, err := it.eval(calleeNode, e)
	if err != nil {
		return nil, err
	}
	fv, ok := callee.(*funcValue)
	if !ok {
		panic(throwPanic{v: "TypeError: value is not a function"})
	}
	return it.call(fv, jsUndefined{}, args)
}

// methodOn resolves `.apply`/`.call` on function values (used by the
// preamble's safe_call wrapper) and the small set of String/Array
// prototype methods a constant-folded helper realistically calls.
func methodOn(obj value, name string, it *interp) (func([]value) (value, error), bool) {
	switch t := obj.(type) {
	case *funcValue:
		switch name {
		case "apply":
			return func(args []value) (value, error) {
				var this value = jsUndefined{}
				var callArgs []value
				if len(args) > 0 {
					this = args[0]
				}
				if len(args) > 1 {
					if arr, ok := args[1].(*jsArray); ok {
						callArgs = arr.items
					}
				}
				return it.call(t, this, callArgs)
			}, true
		case "call":
			return func(args []value) (value, error) {
				var this value = jsUndefined{}
				var callArgs []value
				if len(args) > 0 {
					this = args[0]
				}
				if len(args) > 1 {
					callArgs = args[1:]
				}
				return it.call(t, this, callArgs)
			}, true
		}
	case string:
		return stringMethod(t, name), true
	case *jsArray:
		return arrayMethod(t, name, it), true
	}
	return nil, false
}

func stringMethod(s string, name string) func([]value) (value, error) {
	switch name {
	case "split":
		return func(args []value) (value, error) {
			sep := ""
			if len(args) > 0 {
				sep = toStringValue(args[0])
			}
			var parts []string
			if sep == "" {
				for _, r := range s {
					parts = append(parts, string(r))
				}
			} else {
				parts = strings.Split(s, sep)
			}
			arr := &jsArray{}
			for _, p := range parts {
				arr.items = append(arr.items, p)
			}
			return arr, nil
		}
	case "toUpperCase":
		return func([]value) (value, error) { return strings.ToUpper(s), nil }
	case "toLowerCase":
		return func([]value) (value, error) { return strings.ToLower(s), nil }
	case "trim":
		return func([]value) (value, error) { return strings.TrimSpace(s), nil }
	case "charAt":
		return func(args []value) (value, error) {
			i := 0
			if len(args) > 0 {
				i = int(toNumber(args[0]))
			}
			r := []rune(s)
			if i < 0 || i >= len(r) {
				return "", nil
			}
			return string(r[i]), nil
		}
	case "indexOf":
		return func(args []value) (value, error) {
			if len(args) == 0 {
				return float64(-1), nil
			}
			return float64(strings.Index(s, toStringValue(args[0]))), nil
		}
	case "slice", "substring":
		return func(args []value) (value, error) {
			r := []rune(s)
			start, end := sliceBounds(len(r), args)
			return string(r[start:end]), nil
		}
	case "concat":
		return func(args []value) (value, error) {
			b := s
			for _, a := range args {
				b += toStringValue(a)
			}
			return b, nil
		}
	case "replace":
		return func(args []value) (value, error) {
			if len(args) < 2 {
				return s, nil
			}
			return strings.Replace(s, toStringValue(args[0]), toStringValue(args[1]), 1), nil
		}
	case "repeat":
		return func(args []value) (value, error) {
			n := 0
			if len(args) > 0 {
				n = int(toNumber(args[0]))
			}
			if n < 0 {
				n = 0
			}
			return strings.Repeat(s, n), nil
		}
	default:
		return func([]value) (value, error) { return jsUndefined{}, nil }
	}
}

func arrayMethod(a *jsArray, name string, it *interp) func([]value) (value, error) {
	switch name {
	case "reverse":
		return func([]value) (value, error) {
			n := len(a.items)
			for i := 0; i < n/2; i++ {
				a.items[i], a.items[n-1-i] = a.items[n-1-i], a.items[i]
			}
			return a, nil
		}
	case "join":
		return func(args []value) (value, error) {
			sep := ","
			if len(args) > 0 {
				sep = toStringValue(args[0])
			}
			parts := make([]string, len(a.items))
			for i, v := range a.items {
				parts[i] = toStringValue(v)
			}
			return strings.Join(parts, sep), nil
		}
	case "push":
		return func(args []value) (value, error) {
			a.items = append(a.items, args...)
			return float64(len(a.items)), nil
		}
	case "pop":
		return func([]value) (value, error) {
			if len(a.items) == 0 {
				return jsUndefined{}, nil
			}
			last := a.items[len(a.items)-1]
			a.items = a.items[:len(a.items)-1]
			return last, nil
		}
	case "slice":
		return func(args []value) (value, error) {
			start, end := sliceBounds(len(a.items), args)
			out := make([]value, end-start)
			copy(out, a.items[start:end])
			return &jsArray{items: out}, nil
		}
	case "concat":
		return func(args []value) (value, error) {
			out := append([]value{}, a.items...)
			for _, arg := range args {
				if other, ok := arg.(*jsArray); ok {
					out = append(out, other.items...)
				} else {
					out = append(out, arg)
				}
			}
			return &jsArray{items: out}, nil
		}
	case "indexOf":
		return func(args []value) (value, error) {
			if len(args) == 0 {
				return float64(-1), nil
			}
			for i, v := range a.items {
				if looseEqual(v, args[0]) {
					return float64(i), nil
				}
			}
			return float64(-1), nil
		}
	case "map":
		return func(args []value) (value, error) {
			if len(args) == 0 {
				return &jsArray{}, nil
			}
			fv, ok := args[0].(*funcValue)
			if !ok {
				return &jsArray{}, nil
			}
			out := make([]value, len(a.items))
			for i, v := range a.items {
				r, err := it.call(fv, jsUndefined{}, []value{v, float64(i), a})
				if err != nil {
					return nil, err
				}
				out[i] = r
			}
			return &jsArray{items: out}, nil
		}
	case "filter":
		return func(args []value) (value, error) {
			if len(args) == 0 {
				return &jsArray{}, nil
			}
			fv, ok := args[0].(*funcValue)
			if !ok {
				return &jsArray{}, nil
			}
			var out []value
			for i, v := range a.items {
				r, err := it.call(fv, jsUndefined{}, []value{v, float64(i), a})
				if err != nil {
					return nil, err
				}
				if toBool(r) {
					out = append(out, v)
				}
			}
			return &jsArray{items: out}, nil
		}
	case "sort":
		return func(args []value) (value, error) {
			sort.SliceStable(a.items, func(i, j int) bool {
				return toStringValue(a.items[i]) < toStringValue(a.items[j])
			})
			return a, nil
		}
	default:
		return func([]value) (value, error) { return jsUndefined{}, nil }
	}
}

func sliceBounds(n int, args []value) (int, int) {
	start, end := 0, n
	if len(args) > 0 {
		start = normalizeIndex(int(toNumber(args[0])), n)
	}
	if len(args) > 1 {
		end = normalizeIndex(int(toNumber(args[1])), n)
	}
	if end < start {
		end = start
	}
	return start, end
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i
}

func getProperty(obj value, prop string) value {
	if prop == "length" {
		switch t := obj.(type) {
		case string:
			return float64(len([]rune(t)))
		case *jsArray:
			return float64(len(t.items))
		}
	}
	switch t := obj.(type) {
	case *jsObject:
		if v, ok := t.vals[prop]; ok {
			return v
		}
		return jsUndefined{}
	case *jsArray:
		if idx, err := strconv.Atoi(prop); err == nil {
			if idx >= 0 && idx < len(t.items) {
				return t.items[idx]
			}
		}
		return jsUndefined{}
	default:
		return jsUndefined{}
	}
}

func setProperty(obj value, prop string, v value) {
	switch t := obj.(type) {
	case *jsObject:
		t.set(prop, v)
	case *jsArray:
		if idx, err := strconv.Atoi(prop); err == nil {
			for idx >= len(t.items) {
				t.items = append(t.items, jsUndefined{})
			}
			if idx >= 0 {
				t.items[idx] = v
			}
		}
	}
}

func toPropertyKey(v value) string {
	if n, ok := v.(float64); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return toStringValue(v)
}

func typeOf(v value) string {
	switch v.(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case jsUndefined:
		return "undefined"
	case *funcValue:
		return "function"
	case jsNull:
		return "object"
	default:
		return "object"
	}
}

func toBool(v value) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case jsNull, jsUndefined:
		return false
	case nil:
		return false
	default:
		return true
	}
}

func toNumber(v value) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case jsNull:
		return 0
	default:
		return math.NaN()
	}
}

func toStringValue(v value) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatNumber(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case jsNull:
		return "null"
	case jsUndefined, nil:
		return "undefined"
	case *jsArray:
		parts := make([]string, len(t.items))
		for i, e := range t.items {
			parts[i] = toStringValue(e)
		}
		return strings.Join(parts, ",")
	case *jsObject:
		return "[object Object]"
	case *funcValue:
		return "function " + t.name + "() { [native code] }"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func looseEqual(a, b value) bool {
	if _, ok := a.(jsUndefined); ok {
		_, bok := b.(jsUndefined)
		_, bnull := b.(jsNull)
		return bok || bnull
	}
	if _, ok := a.(jsNull); ok {
		_, bok := b.(jsUndefined)
		_, bnull := b.(jsNull)
		return bok || bnull
	}
	switch av := a.(type) {
	case float64:
		return av == toNumber(b)
	case string:
		if bs, ok := b.(string); ok {
			return av == bs
		}
		return toNumber(a) == toNumber(b)
	case bool:
		if bb, ok := b.(bool); ok {
			return av == bb
		}
		return toNumber(a) == toNumber(b)
	default:
		return a == b
	}
}

func compare(a, b value) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	an, bn := toNumber(a), toNumber(b)
	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	default:
		return 0
	}
}

func parseNumberLiteral(text string) float64 {
	f, err := strconv.ParseFloat(text, 64)
	if err == nil {
		return f
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err == nil {
		return float64(i)
	}
	return math.NaN()
}

func unquoteString(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	body := raw[1 : len(raw)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch esc := body[i]; esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(esc)
		}
	}
	return b.String()
}

// traceEntriesFromValue converts the __trace array the preamble's
// safe_call wrapper builds (plain JS objects) into the Go-side TraceEntry
// shape the harness and the debug trace output need.
func traceEntriesFromValue(arr *jsArray) []TraceEntry {
	entries := make([]TraceEntry, 0, len(arr.items))
	for _, item := range arr.items {
		obj, ok := item.(*jsObject)
		if !ok {
			continue
		}
		entry := TraceEntry{
			Call:      toStringValue(obj.vals["call"]),
			ElapsedMs: int64(toNumber(obj.vals["elapsedMs"])),
		}
		if argsVal, ok := obj.vals["args"]; ok {
			if argsArr, ok := argsVal.(*jsArray); ok {
				for _, a := range argsArr.items {
					if mv, ok := valueToModel(a); ok {
						entry.Args = append(entry.Args, mv)
					}
				}
			}
		}
		if errVal, ok := obj.vals["error"]; ok {
			entry.Error = toStringValue(errVal)
		} else if resVal, ok := obj.vals["result"]; ok {
			if mv, ok := valueToModel(resVal); ok {
				entry.Result = &mv
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// valueToModel converts an interpreter value back to model.Value at the
// results-map boundary: values of a representable kind convert directly;
// anything else is unrepresentable and simply omitted by the caller.
func valueToModel(v value) (model.Value, bool) {
	switch t := v.(type) {
	case string:
		return model.String(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			// encoding/json cannot carry these across the worker boundary.
			return model.Unrepresentable(), false
		}
		if t == math.Trunc(t) && !math.IsInf(t, 0) && math.Abs(t) < 1e15 {
			return model.Integer(int64(t)), true
		}
		return model.Fractional(t), true
	case bool:
		return model.Boolean(t), true
	case jsNull:
		return model.Null(), true
	case jsUndefined:
		return model.Absent(), true
	default:
		return model.Unrepresentable(), false
	}
}
