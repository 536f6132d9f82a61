package health

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

func TestRunAllOK(t *testing.T) {
	c := NewChecker()
	c.Register("compressed", func(context.Context) error { return nil })
	c.Register("plain", func(context.Context) error { return fmt.Errorf("no plain store: %w", ErrSkipped) })

	report := c.Run(context.Background())
	assert.Equal(t, StatusOK, report.Status)
	assert.Equal(t, StatusOK, report.Components["compressed"].Status)
	assert.Equal(t, StatusSkipped, report.Components["plain"].Status)
	assert.NoError(t, report.Err())
}

func TestRunFailure(t *testing.T) {
	c := NewChecker()
	c.Register("compressed", func(context.Context) error {
		return apperrors.New(apperrors.ErrCorruptStore, "checksum mismatch")
	})
	c.Register("stats", func(context.Context) error { return nil })

	report := c.Run(context.Background())
	require.Equal(t, StatusFailed, report.Status)
	assert.Contains(t, report.Components["compressed"].Message, "checksum mismatch")

	err := report.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCorruptStore))
	assert.Contains(t, err.Error(), "compressed:")
}

func TestRunEmpty(t *testing.T) {
	report := NewChecker().Run(context.Background())
	assert.Equal(t, StatusOK, report.Status)
	assert.Empty(t, report.Components)
}
