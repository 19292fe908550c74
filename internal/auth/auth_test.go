package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	_, err := CallerFromRequest(req)
	assert.ErrorIs(t, err, ErrMissingCaller)

	req.Header.Set(constants.HeaderCaller, "  erd1alice ")
	caller, err := CallerFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "erd1alice", caller)

	req.Header.Set(constants.HeaderCaller, "erd1:alice")
	_, err = CallerFromRequest(req)
	assert.ErrorIs(t, err, ErrInvalidCaller)
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("erd1qyu5wthldzr8wx5c9ucg8kjagg0jfs53s8nr3zpz3hypefsdd8ssycr6th"))
	for _, addr := range []string{"", "ab", "has space", "semi;colon"} {
		assert.ErrorIs(t, ValidateAddress(addr), ErrInvalidCaller, "address %q", addr)
	}
}
