package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(TurnOrder, "not your turn")
	wrapped := fmt.Errorf("bet on game 4: %w", base)

	assert.Equal(t, TurnOrder, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, Internal, KindOf(errors.New("db down")))
	assert.Equal(t, "turn-order", TurnOrder.String())
}
