package uricompare

import (
	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
)

// schema is a small customer/order/item model shared by the tests
type schema struct {
	model     *odata.Model
	customers *odata.EntitySet
	orders    *odata.EntitySet

	customer *odata.EntityType
	order    *odata.EntityType
	item     *odata.EntityType

	custID     *odata.Property
	custName   *odata.Property
	custCity   *odata.Property
	custOrders *odata.NavigationProperty
	custItems  *odata.NavigationProperty

	orderID       *odata.Property
	orderAmount   *odata.Property
	orderCustomer *odata.NavigationProperty
	orderItems    *odata.NavigationProperty

	itemID    *odata.Property
	itemPrice *odata.Property
}

func newSchema() *schema {
	m := odata.NewModel("Test.Sales")
	s := &schema{model: m}

	s.customer = m.AddEntityType("Customer", true)
	s.order = m.AddEntityType("Order", false)
	s.item = m.AddEntityType("Item", false)

	s.custID = s.customer.AddKey("Id", odata.Int32)
	s.custName = s.customer.AddProperty("Name", odata.String.AsNullable())
	s.custCity = s.customer.AddProperty("City", odata.String.AsNullable())
	s.custOrders = s.customer.AddNavigation("Orders", s.order, true)
	s.custItems = s.customer.AddNavigation("Items", s.item, true)

	s.orderID = s.order.AddKey("Id", odata.Int32)
	s.orderAmount = s.order.AddProperty("Amount", odata.Double)
	s.orderCustomer = s.order.AddNavigation("Customer", s.customer, false)
	s.orderItems = s.order.AddNavigation("Items", s.item, true)

	s.itemID = s.item.AddKey("Id", odata.Int32)
	s.itemPrice = s.item.AddProperty("Price", odata.Double)

	s.customers = m.AddEntitySet("Customers", s.customer)
	s.orders = m.AddEntitySet("Orders", s.order)
	return s
}

// filterByID returns Customers?$filter=Id eq id
func (s *schema) filterByID(id interface{}) *query.Request {
	req := query.NewRequest(s.customers)
	req.Filter = query.Eq(query.Prop(s.custID), query.Const(id))
	return req
}

// rich returns a request touching every clause, with literals taken from v
func (s *schema) rich(v int) *query.Request {
	req := query.NewRequest(s.customers)
	req.Path = []query.Segment{
		{Filter: query.Eq(query.Prop(s.custID), query.Const(v))},
		{Navigation: s.custOrders},
	}
	req.Filter = query.And(
		query.Gt(query.Prop(s.orderAmount), query.Const(float64(v)*1.5)),
		query.Any(query.Nav(s.orderItems), "i",
			query.Lt(query.PropOf(query.Var("i", s.item), s.itemPrice), query.Const(float64(v)))),
		query.Not(query.Call("contains", query.Cast(query.Prop(s.orderID), odata.String), query.Const("x"))),
	)
	req.SelectExpand = query.Items(
		&query.PathSelectItem{Property: s.orderID},
		&query.PathSelectItem{Property: s.orderAmount},
		&query.ExpandItem{
			Navigation: s.orderItems,
			Filter:     query.Ge(query.Prop(s.itemPrice), query.Const(float64(v))),
			OrderBy:    query.Desc(query.Prop(s.itemPrice)),
			Top:        query.Int64(int64(v)),
			Count:      true,
		},
	)
	req.OrderBy = query.Chain(query.Desc(query.Prop(s.orderAmount)), query.Asc(query.Prop(s.orderID)))
	req.Skip = query.Int64(int64(v))
	req.Top = query.Int64(int64(v) * 10)
	req.SkipToken = []query.SkipTokenPair{{Property: s.orderID, Value: int32(v)}}
	req.Count = true
	req.Metadata = query.Metadata{Level: query.MetadataFull, Charset: "utf-8"}
	return req
}

// aggregated returns an $apply request grouping orders by customer city
func (s *schema) aggregated(floor float64, alias string) *query.Request {
	req := query.NewRequest(s.orders)
	req.Apply = []query.Transformation{
		&query.FilterTransformation{Expression: query.Gt(query.Prop(s.orderAmount), query.Const(floor))},
		query.Compute(query.ComputeOf(query.Mul(query.Prop(s.orderAmount), query.Const(2.0)), "Double")),
		&query.GroupByTransformation{
			Properties: []query.GroupingProperty{{Navigation: s.orderCustomer, Property: s.custCity}},
			Transformations: []query.Transformation{
				query.Aggregate(
					query.AggregateOf(query.Prop(s.orderAmount), query.AggregateSum, alias),
					query.AggregateOf(nil, query.AggregateCount, "Orders"),
				),
			},
		},
	}
	return req
}
