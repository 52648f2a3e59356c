package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// 金额在系统内部一律使用整数分。decimal 仅用于网关侧
// 十进制字符串（如支付宝 total_amount="12.50"）与分之间的换算。

// CentsFromDecimalString 将网关十进制金额字符串换算为分
func CentsFromDecimalString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// CentsToDecimalString 将分换算为 2 位小数的金额字符串
func CentsToDecimalString(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
