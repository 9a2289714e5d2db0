package planner

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wbrown/janus-odata/odata/query"
)

// Function implements a built-in function over evaluated arguments. Null
// arguments are handled by the caller: any null argument yields null.
type Function func(args []interface{}) (interface{}, error)

type functionDef struct {
	minArgs int
	maxArgs int
	fn      Function
}

var builtinFunctions = map[string]functionDef{
	"contains":   {2, 2, stringPredicate(strings.Contains)},
	"startswith": {2, 2, stringPredicate(strings.HasPrefix)},
	"endswith":   {2, 2, stringPredicate(strings.HasSuffix)},
	"tolower":    {1, 1, stringMap(strings.ToLower)},
	"toupper":    {1, 1, stringMap(strings.ToUpper)},
	"trim":       {1, 1, stringMap(strings.TrimSpace)},
	"length":     {1, 1, length},
	"indexof":    {2, 2, indexOf},
	"substring":  {2, 3, substring},
	"concat":     {2, 2, concat},
	"year":       {1, 1, datePart(func(t time.Time) int { return t.Year() })},
	"month":      {1, 1, datePart(func(t time.Time) int { return int(t.Month()) })},
	"day":        {1, 1, datePart(func(t time.Time) int { return t.Day() })},
	"hour":       {1, 1, datePart(func(t time.Time) int { return t.Hour() })},
	"minute":     {1, 1, datePart(func(t time.Time) int { return t.Minute() })},
	"second":     {1, 1, datePart(func(t time.Time) int { return t.Second() })},
	"round":      {1, 1, rounding(math.Round)},
	"floor":      {1, 1, rounding(math.Floor)},
	"ceiling":    {1, 1, rounding(math.Ceil)},
}

// customFunctions is a registry for functions added at runtime
var customFunctions = make(map[string]functionDef)
var customFuncMutex sync.RWMutex

// RegisterFunction registers a function callable from filter expressions.
// Built-in names cannot be overridden.
func RegisterFunction(name string, minArgs, maxArgs int, fn Function) error {
	if _, ok := builtinFunctions[name]; ok {
		return fmt.Errorf("function %s is built in", name)
	}
	customFuncMutex.Lock()
	defer customFuncMutex.Unlock()
	customFunctions[name] = functionDef{minArgs, maxArgs, fn}
	return nil
}

func lookupFunction(name string) (functionDef, bool) {
	if def, ok := builtinFunctions[name]; ok {
		return def, true
	}
	customFuncMutex.RLock()
	defer customFuncMutex.RUnlock()
	def, ok := customFunctions[name]
	return def, ok
}

func (x *exprCompiler) function(node *query.FunctionCall) (Expr, error) {
	def, ok := lookupFunction(node.Name)
	if !ok {
		return nil, fmt.Errorf("unknown function %s", node.Name)
	}
	if len(node.Args) < def.minArgs || len(node.Args) > def.maxArgs {
		return nil, fmt.Errorf("function %s takes %d to %d arguments, got %d",
			node.Name, def.minArgs, def.maxArgs, len(node.Args))
	}

	args := make([]Expr, len(node.Args))
	for i, arg := range node.Args {
		expr, err := x.compile(arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", node.Name, i+1, err)
		}
		args[i] = expr
	}

	name := node.Name
	return func(env *Env) (interface{}, error) {
		values := make([]interface{}, len(args))
		for i, arg := range args {
			v, err := arg(env)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, nil
			}
			values[i] = v
		}
		out, err := def.fn(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return out, nil
	}, nil
}

func asString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func stringPredicate(pred func(s, sub string) bool) Function {
	return func(args []interface{}) (interface{}, error) {
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		sub, err := asString(args[1])
		if err != nil {
			return nil, err
		}
		return pred(s, sub), nil
	}
}

func stringMap(fn func(string) string) Function {
	return func(args []interface{}) (interface{}, error) {
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

func length(args []interface{}) (interface{}, error) {
	s, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	return int32(utf8.RuneCountInString(s)), nil
}

func indexOf(args []interface{}) (interface{}, error) {
	s, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	sub, err := asString(args[1])
	if err != nil {
		return nil, err
	}
	i := strings.Index(s, sub)
	if i < 0 {
		return int32(-1), nil
	}
	return int32(utf8.RuneCountInString(s[:i])), nil
}

// substring counts in characters; out of range bounds are clamped
func substring(args []interface{}) (interface{}, error) {
	s, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	start, err := asInt(args[1])
	if err != nil {
		return nil, err
	}
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := len(runes)
	if len(args) == 3 {
		n, err := asInt(args[2])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			n = 0
		}
		if start+n < end {
			end = start + n
		}
	}
	return string(runes[start:end]), nil
}

func concat(args []interface{}) (interface{}, error) {
	a, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asString(args[1])
	if err != nil {
		return nil, err
	}
	return a + b, nil
}

func datePart(part func(time.Time) int) Function {
	return func(args []interface{}) (interface{}, error) {
		t, ok := args[0].(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected DateTimeOffset, got %T", args[0])
		}
		return int32(part(t)), nil
	}
}

func rounding(fn func(float64) float64) Function {
	return func(args []interface{}) (interface{}, error) {
		switch v := args[0].(type) {
		case float32:
			return float32(fn(float64(v))), nil
		case float64:
			return fn(v), nil
		}
		if i, err := asInt(args[0]); err == nil {
			return float64(i), nil
		}
		return nil, fmt.Errorf("expected number, got %T", args[0])
	}
}
