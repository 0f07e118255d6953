// internal/pkg/money/money.go
package money

import "github.com/shopspring/decimal"

// Places 是所有对外金额的小数位数
const Places = 2

var hundred = decimal.NewFromInt(100)

// Zero 返回 0.00
func Zero() decimal.Decimal { return decimal.Zero }

// Round2 按"四舍五入、远离零"的规则保留两位小数。
// decimal.Round 本身就是 half away from zero，与银行家舍入不同。
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// FromString 解析一个金额字符串，结果不做舍入
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString 仅用于常量和测试
func MustFromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Percent 计算 base × pct / 100 并在边界处舍入
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// Times 计算 price × qty 并舍入
func Times(price decimal.Decimal, qty int) decimal.Decimal {
	return Round2(price.Mul(decimal.NewFromInt(int64(qty))))
}

// NonNegative 把负数截到 0
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// InPercentRange 判断百分比是否在 [0,100]
func InPercentRange(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}

// Format 输出固定两位小数的字符串，供日志和小票使用
func Format(d decimal.Decimal) string {
	return Round2(d).StringFixed(Places)
}
