package demo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
)

// Args are the literal values of a named query
type Args map[string]interface{}

// NamedQuery is a parameterized request shape. Build produces a fresh AST
// for every call, as a parser would for every incoming request.
type NamedQuery struct {
	Name        string
	Description string
	Defaults    Args
	Build       func(s *Schema, args Args) *query.Request
}

// Invocation is one step of a workload
type Invocation struct {
	Query string
	Args  Args
}

// lit declares a literal with the type of the property it is compared to
func lit(p *odata.Property, v interface{}) *query.Constant {
	return query.TypedConst(v, p.Type)
}

// Queries returns the named queries of the demo workload, sorted by name
func Queries() []NamedQuery {
	qs := []NamedQuery{
		{
			Name:        "customer-by-id",
			Description: "Customers?$filter=Id eq {id}",
			Defaults:    Args{"id": 7},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Customers)
				req.Filter = query.Eq(query.Prop(s.CustomerID), lit(s.CustomerID, a["id"]))
				return req
			},
		},
		{
			Name:        "customers-in-city",
			Description: "Customers?$filter=City eq {city}&$orderby=Name&$top={top}",
			Defaults:    Args{"city": "Lisbon", "top": 3},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Customers)
				req.Filter = query.Eq(query.Prop(s.CustomerCity), lit(s.CustomerCity, a["city"]))
				req.OrderBy = query.Asc(query.Prop(s.CustomerName))
				req.Top = query.Int64(toInt64(a["top"]))
				return req
			},
		},
		{
			Name:        "big-orders",
			Description: "Orders?$filter=Amount gt {min}&$orderby=Amount desc&$top={top}&$count=true",
			Defaults:    Args{"min": 400.0, "top": 5},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Orders)
				req.Filter = query.Gt(query.Prop(s.OrderAmount), lit(s.OrderAmount, a["min"]))
				req.OrderBy = query.Desc(query.Prop(s.OrderAmount))
				req.Top = query.Int64(toInt64(a["top"]))
				req.Count = true
				return req
			},
		},
		{
			Name:        "customer-orders",
			Description: "Customers({id})/Orders?$filter=Status eq {status}",
			Defaults:    Args{"id": 3, "status": "shipped"},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Customers)
				req.Path = []query.Segment{
					{Filter: query.Eq(query.Prop(s.CustomerID), lit(s.CustomerID, a["id"]))},
					{Navigation: s.CustomerOrders},
				}
				req.Filter = query.Eq(query.Prop(s.OrderStatus), lit(s.OrderStatus, a["status"]))
				return req
			},
		},
		{
			Name:        "expand-orders",
			Description: "Customers?$filter=Tier ge {tier}&$select=Id,Name&$expand=Orders($filter=Amount gt {min};$orderby=Amount desc;$top={n};$count=true)",
			Defaults:    Args{"tier": 2, "min": 300.0, "n": 2},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Customers)
				req.Filter = query.Ge(query.Prop(s.CustomerTier), lit(s.CustomerTier, a["tier"]))
				items := query.Select(s.CustomerID, s.CustomerName)
				items = append(items, &query.ExpandItem{
					Navigation:   s.CustomerOrders,
					Filter:       query.Gt(query.Prop(s.OrderAmount), lit(s.OrderAmount, a["min"])),
					OrderBy:      query.Desc(query.Prop(s.OrderAmount)),
					Top:          query.Int64(toInt64(a["n"])),
					Count:        true,
					SelectExpand: query.Items(query.Select(s.OrderID, s.OrderAmount)...),
				})
				req.SelectExpand = query.Items(items...)
				req.OrderBy = query.Asc(query.Prop(s.CustomerID))
				return req
			},
		},
		{
			Name:        "line-search",
			Description: "Orders?$filter=Lines/any(l:contains(l/Product,{term}))&$select=Id,Amount",
			Defaults:    Args{"term": "ll"},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Orders)
				l := query.Var("l", s.OrderLine)
				req.Filter = query.Any(query.Nav(s.OrderLines), "l",
					query.Call("contains", query.PropOf(l, s.LineProduct), lit(s.LineProduct, a["term"])))
				req.SelectExpand = query.Items(query.Select(s.OrderID, s.OrderAmount)...)
				req.OrderBy = query.Asc(query.Prop(s.OrderID))
				return req
			},
		},
		{
			Name:        "revenue-by-city",
			Description: "Orders?$apply=filter(Amount gt {min})/groupby((Customer/City),aggregate(Amount with sum as Revenue,$count as Orders))&$orderby=Revenue desc",
			Defaults:    Args{"min": 100.0},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Orders)
				req.Apply = []query.Transformation{
					&query.FilterTransformation{
						Expression: query.Gt(query.Prop(s.OrderAmount), lit(s.OrderAmount, a["min"])),
					},
					&query.GroupByTransformation{
						Properties: []query.GroupingProperty{{Navigation: s.OrderCustomer, Property: s.CustomerCity}},
						Transformations: []query.Transformation{
							query.Aggregate(
								query.AggregateOf(query.Prop(s.OrderAmount), query.AggregateSum, "Revenue"),
								query.AggregateOf(nil, query.AggregateCount, "Orders"),
							),
						},
					},
				}
				req.OrderBy = query.Desc(query.Open("Revenue"))
				return req
			},
		},
		{
			Name:        "page",
			Description: "Customers?$orderby=Name,Id&$skiptoken=Name:{name},Id:{id}&$top={top}",
			Defaults:    Args{"name": "Customer 10", "id": 10, "top": 4},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Customers)
				req.OrderBy = query.Chain(query.Asc(query.Prop(s.CustomerName)), query.Asc(query.Prop(s.CustomerID)))
				req.SkipToken = []query.SkipTokenPair{
					{Property: s.CustomerName, Value: a["name"]},
					{Property: s.CustomerID, Value: a["id"]},
				}
				req.Top = query.Int64(toInt64(a["top"]))
				req.SelectExpand = query.Items(query.Select(s.CustomerID, s.CustomerName)...)
				return req
			},
		},
		{
			Name:        "name-prefix",
			Description: "Customers?$filter=startswith(tolower(Name),{prefix})&$count=true&$top=0",
			Defaults:    Args{"prefix": "customer 1"},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Customers)
				req.Filter = query.Call("startswith",
					query.Call("tolower", query.Prop(s.CustomerName)),
					lit(s.CustomerName, a["prefix"]))
				req.Count = true
				req.Top = query.Int64(0)
				return req
			},
		},
		{
			Name:        "orders-in-year",
			Description: "Orders?$filter=year(Placed) eq {year}&$orderby=Id&$skip={skip}&$top={top}",
			Defaults:    Args{"year": 2023, "skip": 0, "top": 5},
			Build: func(s *Schema, a Args) *query.Request {
				req := query.NewRequest(s.Orders)
				req.Filter = query.Eq(query.Call("year", query.Prop(s.OrderPlaced)), query.TypedConst(a["year"], odata.Int32))
				req.OrderBy = query.Asc(query.Prop(s.OrderID))
				req.Skip = query.Int64(toInt64(a["skip"]))
				req.Top = query.Int64(toInt64(a["top"]))
				return req
			},
		},
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Name < qs[j].Name })
	return qs
}

// Lookup finds a named query
func Lookup(name string) (NamedQuery, bool) {
	for _, q := range Queries() {
		if q.Name == name {
			return q, true
		}
	}
	return NamedQuery{}, false
}

// Request builds the request of q with overrides applied to its defaults
func (q NamedQuery) Request(s *Schema, overrides Args) *query.Request {
	args := make(Args, len(q.Defaults))
	for k, v := range q.Defaults {
		args[k] = v
	}
	for k, v := range overrides {
		args[k] = v
	}
	return q.Build(s, args)
}

// ParseArg converts a command-line value to the type of the argument's
// default value
func (q NamedQuery) ParseArg(name, raw string) (interface{}, error) {
	def, ok := q.Defaults[name]
	if !ok {
		return nil, fmt.Errorf("query %s has no argument %q", q.Name, name)
	}
	if raw == "null" {
		return nil, nil
	}
	switch def.(type) {
	case int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		if n >= -1<<31 && n <= 1<<31-1 {
			return int(n), nil
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		return f, nil
	default:
		return strings.Trim(raw, "'"), nil
	}
}

// Workload is the invocation sequence replayed by the run command. Most
// invocations repeat a shape with new literals; one passes an id too large
// for Edm.Int32 so the binding failure path is exercised.
func Workload() []Invocation {
	return []Invocation{
		{"customer-by-id", Args{"id": 1}},
		{"customer-by-id", Args{"id": 2}},
		{"customer-by-id", Args{"id": 12}},
		{"customers-in-city", Args{"city": "Berlin", "top": 2}},
		{"customers-in-city", Args{"city": "Osaka", "top": 5}},
		{"big-orders", Args{"min": 500.0, "top": 3}},
		{"big-orders", Args{"min": 250.0, "top": 10}},
		{"customer-orders", Args{"id": 4, "status": "open"}},
		{"customer-orders", Args{"id": 9, "status": "returned"}},
		{"expand-orders", Args{"tier": 1, "min": 200.0, "n": 1}},
		{"expand-orders", Args{"tier": 2, "min": 350.0, "n": 3}},
		{"line-search", Args{"term": "ri"}},
		{"line-search", Args{"term": "Fu"}},
		{"revenue-by-city", Args{"min": 150.0}},
		{"revenue-by-city", Args{"min": 450.0}},
		{"page", Args{"name": "Customer 05", "id": 5, "top": 3}},
		{"page", Args{"name": "Customer 20", "id": 20, "top": 3}},
		{"name-prefix", Args{"prefix": "customer 2"}},
		{"orders-in-year", Args{"year": 2023, "skip": 5, "top": 5}},
		{"orders-in-year", Args{"year": 2024, "skip": 0, "top": 2}},
		{"customer-by-id", Args{"id": int64(1) << 40}},
		{"customer-by-id", Args{"id": 25}},
	}
}

func toInt64(v interface{}) int64 {
	if n, ok := odata.AsInt64(v); ok {
		return n
	}
	return 0
}
