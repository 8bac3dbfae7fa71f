package mrz

import "fmt"

var checkWeights = [3]int{7, 3, 1}

func charValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	case c == Filler:
		return 0, true
	}
	return 0, false
}

// CheckDigit computes the ICAO 9303 7-3-1 check digit of s.
func CheckDigit(s string) (byte, error) {
	sum := 0
	for i := 0; i < len(s); i++ {
		v, ok := charValue(s[i])
		if !ok {
			return 0, fmt.Errorf("invalid character %q at %d", s[i], i)
		}
		sum += v * checkWeights[i%3]
	}
	return byte('0' + sum%10), nil
}

// verifyCheckDigit treats a filler check digit as zero.
func verifyCheckDigit(data string, check byte) bool {
	if check == Filler {
		check = '0'
	}
	if check < '0' || check > '9' {
		return false
	}
	digit, err := CheckDigit(data)
	return err == nil && digit == check
}
