package smsman

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type price struct {
	cost  decimal.Decimal
	count int
}

var (
	serviceIDFields = []string{"application_id", "app_id", "id", "service_id"}
	costFields      = []string{"cost", "price", "amount"}
	countFields     = []string{"count", "quantity", "available"}
)

// parsePrices понимает оба формата get-prices: список объектов и словарь,
// где цены лежат либо сразу под id сервиса, либо на уровень глубже.
func parsePrices(raw interface{}) map[int]price {
	prices := make(map[int]price)

	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			id, ok := firstInt(obj, serviceIDFields)
			if !ok {
				continue
			}
			addPrice(prices, id, obj)
		}
	case map[string]interface{}:
		for key, value := range v {
			obj, ok := value.(map[string]interface{})
			if !ok {
				continue
			}
			if hasAny(obj, costFields[:2]) {
				if id, ok := asInt(key); ok {
					addPrice(prices, id, obj)
				}
				continue
			}
			for key2, value2 := range obj {
				inner, ok := value2.(map[string]interface{})
				if !ok {
					continue
				}
				if id, ok := asInt(key2); ok {
					addPrice(prices, id, inner)
				}
			}
		}
	}

	return prices
}

func addPrice(prices map[int]price, id int, obj map[string]interface{}) {
	if id <= 0 {
		return
	}
	cost, ok := firstDecimal(obj, costFields)
	if !ok || !cost.IsPositive() {
		return
	}
	count, _ := firstInt(obj, countFields)
	prices[id] = price{cost: cost, count: count}
}

// parseNamed reads {id: {title|name}} or {id: "name"} maps, and lists of {id, title|name}.
func parseNamed(raw interface{}) map[int]string {
	named := make(map[int]string)

	switch v := raw.(type) {
	case map[string]interface{}:
		for key, value := range v {
			id, ok := asInt(key)
			if !ok {
				continue
			}
			if name := nameOf(value); len(name) > 1 {
				named[id] = name
			}
		}
	case []interface{}:
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			id, ok := firstInt(obj, []string{"id"})
			if !ok {
				continue
			}
			if name := nameOf(obj); len(name) > 1 {
				named[id] = name
			}
		}
	}

	return named
}

func nameOf(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]interface{}:
		for _, field := range []string{"title", "name"} {
			if s, ok := asString(v[field]); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func hasAny(obj map[string]interface{}, fields []string) bool {
	for _, f := range fields {
		if _, ok := obj[f]; ok {
			return true
		}
	}
	return false
}

func firstInt(obj map[string]interface{}, fields []string) (int, bool) {
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			if n, ok := asInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func firstDecimal(obj map[string]interface{}, fields []string) (decimal.Decimal, bool) {
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			if d, ok := asDecimal(v); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

func asInt(v interface{}) (int, bool) {
	s, ok := asString(v)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func asDecimal(v interface{}) (decimal.Decimal, bool) {
	s, ok := asString(v)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// asString accepts strings and json.Number, since SMS-Man mixes both.
func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

var countryCodes = map[string]string{
	"russia": "RU", "india": "IN", "ukraine": "UA", "china": "CN",
	"kazakhstan": "KZ", "usa": "US", "uk": "GB", "germany": "DE",
	"france": "FR", "italy": "IT", "japan": "JP", "brazil": "BR",
	"indonesia": "ID", "kenya": "KE",
}

func countryCode(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if code, ok := countryCodes[name]; ok {
		return code
	}
	words := strings.Fields(name)
	if len(words) >= 2 {
		return strings.ToUpper(words[0][:1] + words[1][:1])
	}
	if len(name) >= 2 {
		return strings.ToUpper(name[:2])
	}
	return "XX"
}

var dialCodes = map[int]string{
	1: "1", 7: "7", 14: "254", 16: "63", 44: "44", 49: "49", 86: "86", 91: "91", 254: "254",
}

// FormatPhone prefixes the country dial code unless the number already carries it.
func FormatPhone(countryID int, number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, "+") {
		return number
	}
	code, ok := dialCodes[countryID]
	if !ok {
		code = strconv.Itoa(countryID)
	}
	if strings.HasPrefix(number, code) && len(number) > 10 {
		return "+" + number
	}
	return "+" + code + number
}
