package query

import (
	"strconv"
	"strings"

	"github.com/wbrown/janus-odata/odata"
)

// LiteralKind identifies where a parameterizable literal lives
type LiteralKind uint8

const (
	LiteralConstant  LiteralKind = iota + 1 // a Constant node
	LiteralSkip                             // $skip of a Request or ExpandItem
	LiteralTop                              // $top of a Request or ExpandItem
	LiteralSkipToken                        // one $skiptoken pair of a Request
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralConstant:
		return "constant"
	case LiteralSkip:
		return "skip"
	case LiteralTop:
		return "top"
	case LiteralSkipToken:
		return "skiptoken"
	default:
		return "?"
	}
}

// Position identifies one parameterizable literal of a specific AST.
// Owner is the *Constant, *Request or *ExpandItem holding the literal;
// Index is the pair index for skip tokens and zero otherwise.
type Position struct {
	Kind  LiteralKind
	Owner interface{}
	Index int
}

// LiteralFormatter renders the literal at pos whose value is v
type LiteralFormatter func(pos Position, v interface{}) string

// formatter renders requests in OData URL syntax
type formatter struct {
	literal LiteralFormatter
	sb      strings.Builder
}

// String renders the request in OData URL syntax with literal values inline
func (r *Request) String() string {
	return r.Format(nil)
}

// Format renders the request, passing every parameterizable literal through
// lit. A nil lit renders values inline.
func (r *Request) Format(lit LiteralFormatter) string {
	f := &formatter{literal: lit}
	f.request(r)
	return f.sb.String()
}

// FormatNode renders a single expression with literal values inline
func FormatNode(n Node) string {
	f := &formatter{}
	f.node(n, 0)
	return f.sb.String()
}

func (f *formatter) lit(pos Position, v interface{}) string {
	if f.literal != nil {
		return f.literal(pos, v)
	}
	return odata.FormatLiteral(v)
}

func (f *formatter) request(r *Request) {
	if r.EntitySet != nil {
		f.sb.WriteString(r.EntitySet.Name)
	}
	for _, seg := range r.Path {
		if seg.Navigation != nil {
			f.sb.WriteString("/")
			f.sb.WriteString(seg.Navigation.Name)
		}
		if seg.Filter != nil {
			f.sb.WriteString("/$filter(")
			f.node(seg.Filter, 0)
			f.sb.WriteString(")")
		}
	}

	var opts []func()
	if r.Filter != nil {
		opts = append(opts, func() { f.sb.WriteString("$filter="); f.node(r.Filter, 0) })
	}
	if len(r.Apply) > 0 {
		opts = append(opts, func() { f.sb.WriteString("$apply="); f.transformations(r.Apply, "/") })
	}
	if r.SelectExpand != nil {
		if sel := selectList(r.SelectExpand); sel != "" {
			opts = append(opts, func() { f.sb.WriteString("$select=" + sel) })
		}
		if hasExpand(r.SelectExpand) {
			opts = append(opts, func() { f.sb.WriteString("$expand="); f.expandList(r.SelectExpand) })
		}
	}
	if r.OrderBy != nil {
		opts = append(opts, func() { f.sb.WriteString("$orderby="); f.orderBy(r.OrderBy) })
	}
	if r.Skip != nil {
		opts = append(opts, func() {
			f.sb.WriteString("$skip=" + f.lit(Position{Kind: LiteralSkip, Owner: r}, *r.Skip))
		})
	}
	if r.Top != nil {
		opts = append(opts, func() {
			f.sb.WriteString("$top=" + f.lit(Position{Kind: LiteralTop, Owner: r}, *r.Top))
		})
	}
	if r.SkipToken != nil {
		opts = append(opts, func() {
			f.sb.WriteString("$skiptoken=")
			for i, pair := range r.SkipToken {
				if i > 0 {
					f.sb.WriteString(",")
				}
				f.sb.WriteString(pair.Property.Name + ":")
				f.sb.WriteString(f.lit(Position{Kind: LiteralSkipToken, Owner: r, Index: i}, pair.Value))
			}
		})
	}
	if r.Count {
		opts = append(opts, func() { f.sb.WriteString("$count=true") })
	}

	for i, opt := range opts {
		if i == 0 {
			f.sb.WriteString("?")
		} else {
			f.sb.WriteString("&")
		}
		opt()
	}
}

func (f *formatter) orderBy(o *OrderBy) {
	for i := 0; o != nil; o, i = o.ThenBy, i+1 {
		if i > 0 {
			f.sb.WriteString(",")
		}
		f.node(o.Expression, 0)
		if o.Direction == Descending {
			f.sb.WriteString(" desc")
		}
	}
}

func (f *formatter) transformations(ts []Transformation, sep string) {
	for i, t := range ts {
		if i > 0 {
			f.sb.WriteString(sep)
		}
		switch tr := t.(type) {
		case *FilterTransformation:
			f.sb.WriteString("filter(")
			f.node(tr.Expression, 0)
			f.sb.WriteString(")")
		case *GroupByTransformation:
			f.sb.WriteString("groupby((")
			for j, g := range tr.Properties {
				if j > 0 {
					f.sb.WriteString(",")
				}
				f.sb.WriteString(g.Name())
			}
			f.sb.WriteString(")")
			if len(tr.Transformations) > 0 {
				f.sb.WriteString(",")
				f.transformations(tr.Transformations, "/")
			}
			f.sb.WriteString(")")
		case *AggregateTransformation:
			f.sb.WriteString("aggregate(")
			for j, e := range tr.Expressions {
				if j > 0 {
					f.sb.WriteString(",")
				}
				if e.Method == AggregateCount {
					f.sb.WriteString("$count as " + e.Alias)
					continue
				}
				f.node(e.Expression, 0)
				f.sb.WriteString(" with " + e.Method.String() + " as " + e.Alias)
			}
			f.sb.WriteString(")")
		case *ComputeTransformation:
			f.sb.WriteString("compute(")
			for j, e := range tr.Expressions {
				if j > 0 {
					f.sb.WriteString(",")
				}
				f.node(e.Expression, 0)
				f.sb.WriteString(" as " + e.Alias)
			}
			f.sb.WriteString(")")
		}
	}
}

func selectList(se *SelectExpand) string {
	var names []string
	for _, item := range se.Items {
		if p, ok := item.(*PathSelectItem); ok {
			names = append(names, p.Property.Name)
		}
	}
	return strings.Join(names, ",")
}

func hasExpand(se *SelectExpand) bool {
	for _, item := range se.Items {
		if _, ok := item.(*ExpandItem); ok {
			return true
		}
	}
	return false
}

func (f *formatter) expandList(se *SelectExpand) {
	first := true
	for _, item := range se.Items {
		e, ok := item.(*ExpandItem)
		if !ok {
			continue
		}
		if !first {
			f.sb.WriteString(",")
		}
		first = false
		f.sb.WriteString(e.Navigation.Name)

		var opts []func()
		if e.Filter != nil {
			opts = append(opts, func() { f.sb.WriteString("$filter="); f.node(e.Filter, 0) })
		}
		if e.OrderBy != nil {
			opts = append(opts, func() { f.sb.WriteString("$orderby="); f.orderBy(e.OrderBy) })
		}
		if e.Skip != nil {
			opts = append(opts, func() {
				f.sb.WriteString("$skip=" + f.lit(Position{Kind: LiteralSkip, Owner: e}, *e.Skip))
			})
		}
		if e.Top != nil {
			opts = append(opts, func() {
				f.sb.WriteString("$top=" + f.lit(Position{Kind: LiteralTop, Owner: e}, *e.Top))
			})
		}
		if e.Count {
			opts = append(opts, func() { f.sb.WriteString("$count=true") })
		}
		if e.SelectExpand != nil {
			if sel := selectList(e.SelectExpand); sel != "" {
				opts = append(opts, func() { f.sb.WriteString("$select=" + sel) })
			}
			if hasExpand(e.SelectExpand) {
				opts = append(opts, func() { f.sb.WriteString("$expand="); f.expandList(e.SelectExpand) })
			}
		}
		if len(opts) == 0 {
			continue
		}
		f.sb.WriteString("(")
		for i, opt := range opts {
			if i > 0 {
				f.sb.WriteString(";")
			}
			opt()
		}
		f.sb.WriteString(")")
	}
}

// precedence of binary operators, higher binds tighter
func precedence(op BinaryOperatorKind) int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpAdd, OpSubtract:
		return 4
	case OpMultiply, OpDivide, OpModulo:
		return 5
	default:
		return 3
	}
}

func (f *formatter) source(src Node) {
	if src == nil {
		return
	}
	if rv, ok := src.(*RangeVariable); ok && rv.Name == ItVariable {
		return
	}
	f.node(src, 6)
	f.sb.WriteString("/")
}

func (f *formatter) node(n Node, parentPrec int) {
	switch node := n.(type) {
	case nil:
		f.sb.WriteString("null")
	case *BinaryOperator:
		prec := precedence(node.Operator)
		if prec < parentPrec {
			f.sb.WriteString("(")
		}
		f.node(node.Left, prec)
		f.sb.WriteString(" " + node.Operator.String() + " ")
		f.node(node.Right, prec+1)
		if prec < parentPrec {
			f.sb.WriteString(")")
		}
	case *UnaryOperator:
		if node.Operator == OpNot {
			f.sb.WriteString("not ")
		} else {
			f.sb.WriteString("-")
		}
		f.node(node.Operand, 6)
	case *Convert:
		f.sb.WriteString("cast(")
		f.node(node.Source, 0)
		f.sb.WriteString("," + node.TypeRef.String() + ")")
	case *Constant:
		f.sb.WriteString(f.lit(Position{Kind: LiteralConstant, Owner: node}, node.Value))
	case *PropertyAccess:
		f.source(node.Source)
		f.sb.WriteString(node.Property.Name)
	case *CollectionNavigation:
		f.source(node.Source)
		f.sb.WriteString(node.Navigation.Name)
	case *SingleNavigation:
		f.source(node.Source)
		f.sb.WriteString(node.Navigation.Name)
	case *OpenPropertyAccess:
		f.source(node.Source)
		f.sb.WriteString(node.Name)
	case *FunctionCall:
		f.sb.WriteString(node.Name + "(")
		for i, arg := range node.Args {
			if i > 0 {
				f.sb.WriteString(",")
			}
			f.node(arg, 0)
		}
		f.sb.WriteString(")")
	case *Lambda:
		f.source(node.Source)
		f.sb.WriteString(node.Quantifier.String() + "(")
		if node.Body != nil {
			f.sb.WriteString(node.Variable + ":")
			f.node(node.Body, 0)
		}
		f.sb.WriteString(")")
	case *Count:
		f.source(node.Source)
		f.sb.WriteString("$count")
	case *RangeVariable:
		f.sb.WriteString(node.Name)
	default:
		f.sb.WriteString("<" + strconv.Itoa(int(n.Kind())) + ">")
	}
}
