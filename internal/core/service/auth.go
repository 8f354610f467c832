package service

import (
	"crypto/subtle"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type TokenAuthorizer struct {
	allowlist []string
}

// NewAuthorizer reads the bearer tokens allowed to call the HTTP API. An empty allowlist leaves the API open.
func NewAuthorizer() (*TokenAuthorizer, error) {
	var list []string

	err := viper.UnmarshalKey("server.api_tokens", &list)
	if err != nil {
		return nil, errors.New("failed to load api tokens")
	}

	if len(list) == 0 {
		log.Warn().Msg("no api tokens configured, http api is open")
	}

	return &TokenAuthorizer{
		allowlist: list,
	}, nil
}

func (a *TokenAuthorizer) IsAuthorized(token string) bool {
	if len(a.allowlist) == 0 {
		return true
	}

	for _, allowed := range a.allowlist {
		if subtle.ConstantTimeCompare([]byte(allowed), []byte(token)) == 1 {
			return true
		}
	}

	log.Debug().Msg("rejected api token")

	return false
}
