package service

import (
	"crypto/rand"
	"math/big"
)

const (
	randomKeyLength = 20
	alphanumeric    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// RandomGenerator produce cadenas para contraseñas y claves de activación/reset.
type RandomGenerator func() (string, error)

// GenerateRandomKey devuelve una cadena alfanumérica de 20 caracteres.
func GenerateRandomKey() (string, error) {
	return randomAlphanumeric(randomKeyLength)
}

func randomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}
