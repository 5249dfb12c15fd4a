package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

// FormatDecimal renders d with a fixed number of places and thousands separators.
func FormatDecimal(d decimal.Decimal, places int32) string {
	return AddCommas(d.StringFixed(places))
}

// DecimalToFloat64 is for plotting only; precision loss is acceptable there.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ShortAddress abbreviates a 0x address as 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ExplorerTxURL links a transaction on a block explorer. An empty base yields "".
func ExplorerTxURL(base, txHash string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || txHash == "" {
		return ""
	}
	return base + "/tx/" + txHash
}

// ExplorerAddressURL links an address on a block explorer.
func ExplorerAddressURL(base, addr string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || addr == "" {
		return ""
	}
	return base + "/address/" + addr
}
