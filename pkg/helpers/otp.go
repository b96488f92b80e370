package helpers

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// GenOTPCode generates a uniformly random decimal code of the given length.
func GenOTPCode(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("otp length %d out of range", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// OTPEqual compares two codes in constant time.
func OTPEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
