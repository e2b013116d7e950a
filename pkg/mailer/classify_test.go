package mailer

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsConnectionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"econnrefused", syscall.ECONNREFUSED, true},
		{"econnreset wrapped", fmt.Errorf("send: %w", syscall.ECONNRESET), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"refused message", errors.New("dial tcp 10.0.0.1:587: connection refused"), true},
		{"reset message", errors.New("read tcp: connection reset by peer"), true},
		{"io timeout message", errors.New("read tcp: i/o timeout"), true},
		{"unknown host", errors.New("dial tcp: lookup smtp.example.com: no such host"), true},
		{"permanent rejection", errors.New("550 5.1.1 recipient address rejected"), false},
		{"auth failure", errors.New("535 authentication credentials invalid"), false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}
