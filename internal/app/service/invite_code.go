package service

import (
	"crypto/rand"
	"math/big"
	"strings"

	"innovate_api/internal/domain/model"
)

const inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateInviteCode draws each character uniformly from [A-Z0-9].
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	code := make([]byte, model.InviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
