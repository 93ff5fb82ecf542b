package surface

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"deadline is soft", context.DeadlineExceeded, false},
		{"wrapped deadline is soft", fmt.Errorf("wait: %w", context.DeadlineExceeded), false},
		{"cancellation", context.Canceled, true},
		{"wrapped cancellation", fmt.Errorf("navigate: %w", context.Canceled), true},
		{"target closed", errors.New("page load: target closed"), true},
		{"websocket drop", errors.New("websocket: close 1006"), true},
		{"plain selector miss", errors.New(`click: no element matches "a"`), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.fatal, IsFatal(tc.err))
		})
	}
}
