package demo

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/janus-odata/odata"
)

var (
	cities   = []string{"Berlin", "Lisbon", "Osaka", "Quito", "Tallinn"}
	products = []string{"Anvil", "Bolt", "Cable", "Drill", "Epoxy", "Fuse"}
	statuses = []string{"open", "shipped", "returned"}

	// refSpace seeds the deterministic customer reference guids
	refSpace = uuid.MustParse("3f1c2a9e-5b7d-4e0f-9a61-2c8d4b7e1f30")
	epoch    = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Dataset sizes
const (
	CustomerCount     = 25
	OrdersPerCustomer = 4
	LinesPerOrder     = 3
)

// Dataset returns the demo entities by entity set name. Customers embed their
// orders and orders embed their lines; every order also embeds a shallow copy
// of its customer. The result is the same on every call.
func Dataset() map[string][]odata.Entity {
	var customers, orders []odata.Entity
	orderID, lineID := int32(1000), int32(50000)

	for c := 1; c <= CustomerCount; c++ {
		customer := odata.Entity{
			"Id":    int32(c),
			"Name":  fmt.Sprintf("Customer %02d", c),
			"Tier":  int16(c % 3),
			"Since": epoch.AddDate(0, -c, 0),
			"Ref":   uuid.NewSHA1(refSpace, []byte(fmt.Sprint(c))),
		}
		// Every seventh customer has no city on file
		if c%7 == 0 {
			customer["City"] = nil
		} else {
			customer["City"] = cities[c%len(cities)]
		}
		if c%5 == 0 {
			customer["Nickname"] = fmt.Sprintf("vip-%d", c)
		}
		shallow := copyEntity(customer)

		var owned []odata.Entity
		for o := 0; o < OrdersPerCustomer; o++ {
			orderID++
			var lines []odata.Entity
			amount := 0.0
			quantity := int32(0)
			for l := 0; l < LinesPerOrder; l++ {
				lineID++
				units := int32(1 + (c+o+l)%5)
				price := float64(5 + (c*7+o*3+l*11)%40)
				lines = append(lines, odata.Entity{
					"Id":      lineID,
					"Product": products[(c+o*2+l)%len(products)],
					"Price":   price,
					"Units":   units,
				})
				amount += price * float64(units)
				quantity += units
			}
			order := odata.Entity{
				"Id":       orderID,
				"Amount":   amount,
				"Quantity": quantity,
				"Status":   statuses[(c+o)%len(statuses)],
				"Placed":   epoch.AddDate(0, o*4, c),
				"Lines":    lines,
			}
			owned = append(owned, order)

			withCustomer := copyEntity(order)
			withCustomer["Customer"] = shallow
			orders = append(orders, withCustomer)
		}
		customer["Orders"] = owned
		customers = append(customers, customer)
	}

	return map[string][]odata.Entity{
		"Customers": customers,
		"Orders":    orders,
	}
}

func copyEntity(e odata.Entity) odata.Entity {
	out := make(odata.Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
