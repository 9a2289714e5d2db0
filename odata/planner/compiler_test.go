package planner

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/query"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

func compile(t *testing.T, req *query.Request) (*Plan, []interface{}) {
	t.Helper()
	plan, bindings, err := NewCompiler(DefaultPlannerOptions()).Compile(req)
	require.NoError(t, err)
	params, err := plan.Params(bindings)
	require.NoError(t, err)
	return plan, params
}

func TestCompileSlotsAndText(t *testing.T) {
	s := demo.NewSchema()
	q, _ := demo.Lookup("big-orders")
	plan, params := compile(t, q.Request(s, demo.Args{"min": 250.0, "top": 7}))

	require.Len(t, plan.Slots, 2)
	assert.Equal(t, "Orders?$filter=Amount gt @p0&$orderby=Amount desc&$top=@p1&$count=true", plan.Text)
	assert.Equal(t, []interface{}{250.0, int64(7)}, params)
	assert.Equal(t, s.Order, plan.ResultType)
	assert.True(t, plan.Count)
	assert.False(t, HasSlot(plan.Skip))
	assert.Equal(t, 1, plan.Top)
	assert.NotEqual(t, plan.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Contains(t, plan.String(), "@p0 Edm.Double")
}

func TestCompileFilterEvaluation(t *testing.T) {
	s := demo.NewSchema()
	data := demo.Dataset()

	tests := []struct {
		name   string
		set    *odata.EntitySet
		filter query.Node
		want   int // matching rows
	}{
		{
			name:   "key equality",
			set:    s.Customers,
			filter: query.Eq(query.Prop(s.CustomerID), query.TypedConst(7, odata.Int32)),
			want:   1,
		},
		{
			name:   "null city",
			set:    s.Customers,
			filter: query.Eq(query.Prop(s.CustomerCity), query.Null()),
			want:   3,
		},
		{
			name: "any line over 40",
			set:  s.Orders,
			filter: query.Any(query.Nav(s.OrderLines), "l",
				query.Gt(query.PropOf(query.Var("l", s.OrderLine), s.LinePrice), query.Const(43.0))),
			want: countOrders(data, func(o odata.Entity) bool {
				for _, l := range o["Lines"].([]odata.Entity) {
					if l["Price"].(float64) > 43 {
						return true
					}
				}
				return false
			}),
		},
		{
			name:   "all lines",
			set:    s.Orders,
			filter: query.All(query.Nav(s.OrderLines), "l", query.Ge(query.PropOf(query.Var("l", s.OrderLine), s.LineUnits), query.Const(1))),
			want:   demo.CustomerCount * demo.OrdersPerCustomer,
		},
		{
			name:   "line count",
			set:    s.Orders,
			filter: query.Eq(query.CountOf(query.Nav(s.OrderLines)), query.Const(int64(demo.LinesPerOrder))),
			want:   demo.CustomerCount * demo.OrdersPerCustomer,
		},
		{
			name:   "single navigation",
			set:    s.Orders,
			filter: query.Eq(query.PropOf(query.Nav(s.OrderCustomer), s.CustomerID), query.Const(3)),
			want:   demo.OrdersPerCustomer,
		},
		{
			name: "functions",
			set:  s.Customers,
			filter: query.And(
				query.Call("startswith", query.Call("toupper", query.Prop(s.CustomerName)), query.Const("CUSTOMER 0")),
				query.Eq(query.Call("length", query.Prop(s.CustomerName)), query.Const(11)),
			),
			want: 9,
		},
		{
			name:   "arithmetic and negation",
			set:    s.Customers,
			filter: query.Lt(query.Negate(query.Add(query.Prop(s.CustomerID), query.Const(1))), query.Const(-24)),
			want:   2,
		},
		{
			name:   "not",
			set:    s.Customers,
			filter: query.Not(query.Le(query.Prop(s.CustomerID), query.Const(20))),
			want:   5,
		},
		{
			name:   "open property",
			set:    s.Customers,
			filter: query.Ne(query.Open("Nickname"), query.Null()),
			want:   5,
		},
		{
			name:   "cast",
			set:    s.Customers,
			filter: query.Eq(query.Cast(query.Prop(s.CustomerID), odata.String), query.Const("12")),
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := query.NewRequest(tt.set)
			req.Filter = tt.filter
			plan, params := compile(t, req)

			env := NewEnv(params)
			matched := 0
			for _, row := range data[tt.set.Name] {
				v, err := plan.Filter(env.Row(row))
				require.NoError(t, err)
				if Truthy(v) {
					matched++
				}
			}
			assert.Equal(t, tt.want, matched)
		})
	}
}

func countOrders(data map[string][]odata.Entity, pred func(odata.Entity) bool) int {
	n := 0
	for _, o := range data["Orders"] {
		if pred(o) {
			n++
		}
	}
	return n
}

func TestCompileErrors(t *testing.T) {
	s := demo.NewSchema()
	c := NewCompiler(DefaultPlannerOptions())

	tests := []struct {
		name  string
		build func() *query.Request
	}{
		{"no entity set", func() *query.Request { return &query.Request{} }},
		{"unknown function", func() *query.Request {
			req := query.NewRequest(s.Customers)
			req.Filter = query.Call("soundex", query.Prop(s.CustomerName))
			return req
		}},
		{"wrong arity", func() *query.Request {
			req := query.NewRequest(s.Customers)
			req.Filter = query.Call("contains", query.Prop(s.CustomerName))
			return req
		}},
		{"foreign property", func() *query.Request {
			req := query.NewRequest(s.Customers)
			req.Filter = query.Gt(query.Prop(s.OrderAmount), query.Const(1.0))
			return req
		}},
		{"open property on closed type", func() *query.Request {
			req := query.NewRequest(s.Orders)
			req.Filter = query.Eq(query.Open("Note"), query.Const("x"))
			return req
		}},
		{"unbound range variable", func() *query.Request {
			req := query.NewRequest(s.Orders)
			req.Filter = query.Gt(query.PropOf(query.Var("x", s.OrderLine), s.LinePrice), query.Const(1.0))
			return req
		}},
		{"has operator", func() *query.Request {
			req := query.NewRequest(s.Customers)
			req.Filter = query.Binary(query.OpHas, query.Prop(s.CustomerTier), query.Const(1))
			return req
		}},
		{"path navigation mismatch", func() *query.Request {
			req := query.NewRequest(s.Customers)
			req.Path = []query.Segment{{Navigation: s.OrderLines}}
			return req
		}},
		{"select after apply", func() *query.Request {
			req := query.NewRequest(s.Orders)
			req.Apply = []query.Transformation{query.Aggregate(query.AggregateOf(nil, query.AggregateCount, "N"))}
			req.SelectExpand = query.Items(query.Select(s.OrderID)...)
			return req
		}},
		{"single expand with options", func() *query.Request {
			req := query.NewRequest(s.Orders)
			req.SelectExpand = query.Items(&query.ExpandItem{Navigation: s.OrderCustomer, Top: query.Int64(1)})
			return req
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, _, err := c.Compile(tt.build())
			assert.Error(t, err)
			assert.Nil(t, plan)
		})
	}
}

func TestCompileExpandDepth(t *testing.T) {
	s := demo.NewSchema()
	opts := DefaultPlannerOptions()
	opts.MaxExpandDepth = 1

	nested := func(depth int) *query.Request {
		inner := query.Items(query.Expand(s.OrderLines))
		for i := 1; i < depth; i++ {
			e := query.Expand(s.CustomerOrders)
			e.SelectExpand = inner
			o := query.Expand(s.OrderCustomer)
			o.SelectExpand = query.Items(e)
			inner = query.Items(o)
		}
		req := query.NewRequest(s.Orders)
		req.SelectExpand = inner
		return req
	}

	_, _, err := NewCompiler(opts).Compile(nested(1))
	assert.NoError(t, err)
	_, _, err = NewCompiler(opts).Compile(nested(3))
	assert.Error(t, err)
}

func TestCompileSkipTokenDirections(t *testing.T) {
	s := demo.NewSchema()
	req := query.NewRequest(s.Customers)
	req.OrderBy = query.Chain(query.Desc(query.Prop(s.CustomerName)), query.Asc(query.Prop(s.CustomerID)))
	req.SkipToken = []query.SkipTokenPair{
		{Property: s.CustomerName, Value: nil},
		{Property: s.CustomerID, Value: 4},
	}

	plan, params := compile(t, req)
	require.Len(t, plan.SkipToken, 2)
	assert.True(t, plan.SkipToken[0].Descending)
	assert.False(t, HasSlot(plan.SkipToken[0].Slot))
	assert.False(t, plan.SkipToken[1].Descending)
	assert.Equal(t, int32(4), params[plan.SkipToken[1].Slot])
	assert.Contains(t, plan.Text, "$skiptoken=Name:null,Id:@p0")
}

func TestCompileCoercesLiterals(t *testing.T) {
	s := demo.NewSchema()
	ref := "6f1a3c52-9d0e-4b7a-8c21-5e4f3a2b1d09"

	req := query.NewRequest(s.Customers)
	req.Filter = query.And(
		query.Eq(query.Prop(s.CustomerRef), query.TypedConst(ref, odata.Guid)),
		query.Eq(query.Prop(s.CustomerID), query.TypedConst(int64(9), odata.Int32)),
	)
	_, params := compile(t, req)
	assert.Equal(t, []interface{}{uuid.MustParse(ref), int32(9)}, params)

	// The same bindings a cache hit produces
	slots := uricompare.RegisterSlots(req)
	p, ok := uricompare.Compare(req, req)
	require.True(t, ok)
	bound, err := p.Bind(slots)
	require.NoError(t, err)
	for i, b := range bound {
		assert.Equal(t, b.Value, params[i])
	}
}

func TestCompileBindingError(t *testing.T) {
	s := demo.NewSchema()

	tests := []struct {
		name  string
		value interface{}
		typ   odata.TypeRef
		prop  *odata.Property
	}{
		{"int32 overflow", int64(1) << 40, odata.Int32, s.CustomerID},
		{"malformed guid", "not-a-guid", odata.Guid, s.CustomerRef},
		{"malformed timestamp", "yesterday", odata.DateTimeOffset, s.CustomerSince},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := query.NewRequest(s.Customers)
			req.Filter = query.Eq(query.Prop(tt.prop), query.TypedConst(tt.value, tt.typ))

			plan, bindings, err := NewCompiler(DefaultPlannerOptions()).Compile(req)
			var bindErr *uricompare.BindingError
			require.ErrorAs(t, err, &bindErr)
			assert.Nil(t, plan)
			assert.Nil(t, bindings)
			assert.Equal(t, "p0", bindErr.Slot.Name)
			assert.Equal(t, tt.value, bindErr.Value)
		})
	}
}

func TestRegisterFunction(t *testing.T) {
	s := demo.NewSchema()
	require.Error(t, RegisterFunction("contains", 2, 2, nil))
	require.NoError(t, RegisterFunction("initial", 1, 1, func(args []interface{}) (interface{}, error) {
		return args[0].(string)[:1], nil
	}))

	req := query.NewRequest(s.Customers)
	req.Filter = query.Eq(query.Call("initial", query.Prop(s.CustomerName)), query.Const("C"))
	plan, params := compile(t, req)

	v, err := plan.Filter(NewEnv(params).Row(odata.Entity{"Name": "Customer 01"}))
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want interface{}
	}{
		{"indexof", []interface{}{"héllo", "llo"}, int32(2)},
		{"indexof", []interface{}{"hello", "z"}, int32(-1)},
		{"substring", []interface{}{"héllo", 1}, "éllo"},
		{"substring", []interface{}{"hello", 1, 2}, "el"},
		{"substring", []interface{}{"hello", 9}, ""},
		{"concat", []interface{}{"a", "b"}, "ab"},
		{"trim", []interface{}{"  a "}, "a"},
		{"round", []interface{}{2.5}, 3.0},
		{"floor", []interface{}{float32(2.7)}, float32(2)},
		{"ceiling", []interface{}{2.1}, 3.0},
		{"endswith", []interface{}{"hello", "lo"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, ok := lookupFunction(tt.name)
			require.True(t, ok)
			got, err := def.fn(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArithmetic(t *testing.T) {
	v, err := arithmetic(query.OpAdd, int32(2), int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = arithmetic(query.OpDivide, 7, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = arithmetic(query.OpMultiply, nil, 2)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = arithmetic(query.OpModulo, 1, 0)
	assert.Error(t, err)
	_, err = arithmetic(query.OpAdd, "a", 1)
	assert.Error(t, err)
}
