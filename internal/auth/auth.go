// Package auth resolves and validates the caller of a request.
package auth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
)

var (
	ErrMissingCaller = errors.New("missing caller address")
	ErrInvalidCaller = errors.New("invalid caller address")
)

var addressRe = regexp.MustCompile(`^[a-zA-Z0-9]{3,128}$`)

func ValidateAddress(addr string) error {
	if !addressRe.MatchString(addr) {
		return ErrInvalidCaller
	}
	return nil
}

// CallerFromRequest reads the caller address from the X-Caller-Address header.
func CallerFromRequest(r *http.Request) (string, error) {
	addr := strings.TrimSpace(r.Header.Get(constants.HeaderCaller))
	if addr == "" {
		return "", ErrMissingCaller
	}
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return addr, nil
}
