package session

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"teamorders/internal/core"
)

// Form field prefixes posted by the order page. Each menu option row has a
// quantity input qty_<key> and a hidden meta_<key> of item|||option|||price.
const (
	QtyPrefix  = "qty_"
	MetaPrefix = "meta_"
)

// Cart is the member's pending order, one line per option with a positive quantity.
type Cart []core.OrderLine

// CartFromForm keeps the posted rows whose quantity is a positive integer
// and whose meta value parses. It returns the cart and the number of rows
// dropped for malformed meta.
func CartFromForm(form url.Values) (Cart, int) {
	var keys []string
	for k := range form {
		if strings.HasPrefix(k, MetaPrefix) {
			keys = append(keys, strings.TrimPrefix(k, MetaPrefix))
		}
	}
	sort.Strings(keys)

	var (
		cart    Cart
		skipped int
	)
	for _, key := range keys {
		qty, ok := positiveInt(form.Get(QtyPrefix + key))
		if !ok {
			continue
		}
		item, option, price, err := core.ParseCartMeta(form.Get(MetaPrefix + key))
		if err != nil {
			skipped++
			continue
		}
		cart = append(cart, core.OrderLine{Key: key, Item: item, Option: option, Price: price, Quantity: qty})
	}
	return cart, skipped
}

// positiveInt accepts only plain digit strings greater than zero.
func positiveInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Quantity returns the cart quantity for a form key, or 0.
func (c Cart) Quantity(key string) int {
	for _, l := range c {
		if l.Key == key {
			return l.Quantity
		}
	}
	return 0
}

// Total is the sum of line subtotals.
func (c Cart) Total() core.Money {
	var t core.Money
	for _, l := range c {
		t = t.Add(l.Subtotal())
	}
	return t
}

// Lines returns the cart as order lines.
func (c Cart) Lines() []core.OrderLine {
	return []core.OrderLine(c)
}

// FormKey derives the qty_/meta_ suffix for a menu option.
func FormKey(item, option string) string {
	r := strings.NewReplacer(" ", "_", "|", "_", "&", "and", "'", "", "\"", "")
	if option == "" {
		return r.Replace(item)
	}
	return r.Replace(item + "_" + option)
}
