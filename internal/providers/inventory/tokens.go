package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Tokens stores approved custom tokens by token id
type Tokens struct {
	mu     sync.RWMutex
	byID   map[string]types.CustomErc20Token
	logger *logging.Logger
}

// NewTokens creates an empty token registry
func NewTokens(logger *logging.Logger) *Tokens {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tokens{
		byID:   make(map[string]types.CustomErc20Token),
		logger: logger.Named("tokens"),
	}
}

// AddToken stores token, replacing any token with the same id
func (t *Tokens) AddToken(ctx context.Context, token types.CustomErc20Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token.ID == "" {
		return fmt.Errorf("token id is required")
	}

	t.mu.Lock()
	t.byID[token.ID] = token
	t.mu.Unlock()

	t.logger.Info("Token added", zap.String("token", token.ID), zap.String("symbol", token.Symbol))
	return nil
}

// Get returns the token with id
func (t *Tokens) Get(id string) (types.CustomErc20Token, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	token, ok := t.byID[id]
	return token, ok
}

// List returns all tokens ordered by id
func (t *Tokens) List() []types.CustomErc20Token {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.CustomErc20Token, 0, len(t.byID))
	for _, token := range t.byID {
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
