package service

import (
	"math/big"
	"regexp"
)

var (
	letterRevision  = regexp.MustCompile(`^([A-C])(\d*)$`)
	numericRevision = regexp.MustCompile(`^\d+$`)
)

// NextRevision 计算下一个版次
//
//	""      → "A"
//	"B"     → "B1"，"B1" → "B2"（字母不进位）
//	"7"     → "8"
//	其他格式原样返回
func NextRevision(current string) string {
	if current == "" {
		return "A"
	}
	if m := letterRevision.FindStringSubmatch(current); m != nil {
		if m[2] == "" {
			return m[1] + "1"
		}
		return m[1] + increment(m[2])
	}
	if numericRevision.MatchString(current) {
		return increment(current)
	}
	return current
}

// increment 十进制字符串加一，去掉前导零
func increment(digits string) string {
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return digits
	}
	return n.Add(n, big.NewInt(1)).String()
}
