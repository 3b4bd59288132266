package flow

import (
	"fmt"
	"strings"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/nlu"
)

// priceEntry is one row of the clinic's price list. Prices are per tooth in
// Iraqi dinars.
type priceEntry struct {
	service models.Service
	price   int
}

// defaultPrices is the clinic's current price list, in display order.
var defaultPrices = []priceEntry{
	{models.ServiceZirconCrown, 75000},
	{models.ServicePorcelainCrown, 50000},
	{models.ServiceCosmeticFilling, 35000},
	{models.ServiceFilling, 25000},
	{models.ServiceExtraction, 15000},
	{models.ServiceWhitening, 100000},
	{models.ServiceCleaning, 25000},
	{models.ServiceOrthodontics, 500000},
	{models.ServiceImplant, 400000},
}

// PriceTable answers price questions from a fixed per-service price list.
type PriceTable struct {
	prices []priceEntry
	index  map[models.Service]int
}

// NewPriceTable creates a price table from the clinic's default price list.
func NewPriceTable() *PriceTable {
	t := &PriceTable{prices: defaultPrices, index: make(map[models.Service]int)}
	for _, entry := range t.prices {
		t.index[entry.service] = entry.price
	}
	return t
}

// Price returns the per-tooth price for a service in Iraqi dinars.
func (t *PriceTable) Price(service models.Service) (int, bool) {
	price, ok := t.index[service]
	return price, ok
}

// Answer composes a price reply for the given service and tooth count. A
// quantity of zero or one answers with the unit price; larger quantities get
// a multiplied total. An unspecified service falls back to the full list.
func (t *PriceTable) Answer(service models.Service, quantity int) string {
	price, ok := t.index[service]
	if !ok {
		return t.FullList()
	}

	name := nlu.ServiceDisplayName(service)
	if quantity > 1 {
		total := price * quantity
		return fmt.Sprintf("سعر %s %s دينار للسن الواحد 🦷\nلـ %d اسنان يطلع المجموع %s دينار.\nاذا تحب تحجز موعد، دزلي كلمة حجز 😊",
			name, formatPrice(price), quantity, formatPrice(total))
	}
	return fmt.Sprintf("سعر %s %s دينار للسن الواحد 🦷\nاذا تحب تحجز موعد، دزلي كلمة حجز 😊",
		name, formatPrice(price))
}

// FullList returns the whole price list as one message.
func (t *PriceTable) FullList() string {
	var b strings.Builder
	b.WriteString("هاي اسعارنا الحالية 🦷✨\n")
	for _, entry := range t.prices {
		fmt.Fprintf(&b, "• %s: %s دينار\n", nlu.ServiceDisplayName(entry.service), formatPrice(entry.price))
	}
	b.WriteString("اذا تحب تحجز موعد، دزلي كلمة حجز 😊")
	return b.String()
}

// formatPrice renders an amount with thousands separators, e.g. 75,000.
func formatPrice(amount int) string {
	s := fmt.Sprintf("%d", amount)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
