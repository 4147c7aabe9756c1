package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

const (
	nicknameMaxLen   = 20
	fallbackNickname = "user"
)

// ResolveNickname returns base if no account uses it, otherwise base
// followed by the smallest positive integer that is free ("kim", "kim1",
// "kim2", ...). Base is cut short when needed to keep the result within the
// nickname length limit.
func ResolveNickname(ctx context.Context, repo users.Repository, base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = fallbackNickname
	}

	for n := 0; ; n++ {
		suffix := ""
		if n > 0 {
			suffix = strconv.Itoa(n)
		}
		candidate := truncateRunes(base, nicknameMaxLen-len(suffix)) + suffix

		taken, err := repo.ExistsByNickname(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
