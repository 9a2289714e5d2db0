// Package demo provides a small sales model, a deterministic dataset over it
// and a named workload of parameterized requests. The CLI and the tests of
// the planner, executor and storage packages share it.
package demo

import (
	"github.com/wbrown/janus-odata/odata"
)

// Namespace of the demo model
const Namespace = "Demo.Sales"

// Schema is the demo model with direct handles on its elements
type Schema struct {
	Model *odata.Model

	Customers *odata.EntitySet
	Orders    *odata.EntitySet

	Customer  *odata.EntityType
	Order     *odata.EntityType
	OrderLine *odata.EntityType

	CustomerID     *odata.Property
	CustomerName   *odata.Property
	CustomerCity   *odata.Property
	CustomerTier   *odata.Property
	CustomerSince  *odata.Property
	CustomerRef    *odata.Property
	CustomerOrders *odata.NavigationProperty

	OrderID       *odata.Property
	OrderAmount   *odata.Property
	OrderQuantity *odata.Property
	OrderStatus   *odata.Property
	OrderPlaced   *odata.Property
	OrderCustomer *odata.NavigationProperty
	OrderLines    *odata.NavigationProperty

	LineID      *odata.Property
	LineProduct *odata.Property
	LinePrice   *odata.Property
	LineUnits   *odata.Property
}

// NewSchema builds the demo model
func NewSchema() *Schema {
	m := odata.NewModel(Namespace)
	s := &Schema{Model: m}

	s.Customer = m.AddEntityType("Customer", true)
	s.Order = m.AddEntityType("Order", false)
	s.OrderLine = m.AddEntityType("OrderLine", false)

	s.CustomerID = s.Customer.AddKey("Id", odata.Int32)
	s.CustomerName = s.Customer.AddProperty("Name", odata.String)
	s.CustomerCity = s.Customer.AddProperty("City", odata.String.AsNullable())
	s.CustomerTier = s.Customer.AddProperty("Tier", odata.Int16)
	s.CustomerSince = s.Customer.AddProperty("Since", odata.DateTimeOffset)
	s.CustomerRef = s.Customer.AddProperty("Ref", odata.Guid)
	s.CustomerOrders = s.Customer.AddNavigation("Orders", s.Order, true)

	s.OrderID = s.Order.AddKey("Id", odata.Int32)
	s.OrderAmount = s.Order.AddProperty("Amount", odata.Double)
	s.OrderQuantity = s.Order.AddProperty("Quantity", odata.Int32)
	s.OrderStatus = s.Order.AddProperty("Status", odata.String)
	s.OrderPlaced = s.Order.AddProperty("Placed", odata.DateTimeOffset)
	s.OrderCustomer = s.Order.AddNavigation("Customer", s.Customer, false)
	s.OrderLines = s.Order.AddNavigation("Lines", s.OrderLine, true)

	s.LineID = s.OrderLine.AddKey("Id", odata.Int32)
	s.LineProduct = s.OrderLine.AddProperty("Product", odata.String)
	s.LinePrice = s.OrderLine.AddProperty("Price", odata.Double)
	s.LineUnits = s.OrderLine.AddProperty("Units", odata.Int32)

	s.Customers = m.AddEntitySet("Customers", s.Customer)
	s.Orders = m.AddEntitySet("Orders", s.Order)

	if err := m.Validate(); err != nil {
		panic(err)
	}
	return s
}
