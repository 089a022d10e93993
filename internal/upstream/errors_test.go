package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/upstream"
)

func TestUserMessageIsBounded(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ошибка ", 100)
	err := upstream.NewError(upstream.KindParseFailed, long, nil)

	msg := upstream.UserMessage(err)
	assert.Equal(t, upstream.MaxUserMessageLen, utf8.RuneCountInString(msg))
	assert.True(t, strings.HasPrefix(long, msg))
}

func TestUserMessageHidesCause(t *testing.T) {
	t.Parallel()

	err := upstream.NewError(upstream.KindUnreachable, "login: timed out", errors.New("dial tcp 10.0.0.1:443"))
	assert.Equal(t, "login: timed out", upstream.UserMessage(err))
	assert.Empty(t, upstream.UserMessage(nil))
}

func TestSnapshotIsBounded(t *testing.T) {
	t.Parallel()

	err := upstream.NewError(upstream.KindParseFailed, "bad", nil).
		WithSnapshot([]byte(strings.Repeat("x", 2000)))
	assert.Len(t, upstream.SnapshotOf(err), upstream.MaxSnapshotLen)
}

func TestKindOfWrapped(t *testing.T) {
	t.Parallel()

	inner := upstream.NewError(upstream.KindAuthFailed, "login rejected", nil)
	wrapped := fmt.Errorf("attempt 2: %w", inner)

	kind, ok := upstream.KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, upstream.KindAuthFailed, kind)

	_, ok = upstream.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "auth", err: upstream.NewError(upstream.KindAuthFailed, "x", nil), want: true},
		{name: "unreachable", err: upstream.NewError(upstream.KindUnreachable, "x", nil), want: true},
		{name: "parse", err: upstream.NewError(upstream.KindParseFailed, "x", nil), want: true},
		{name: "config", err: upstream.NewError(upstream.KindConfigMissing, "x", nil), want: false},
		{name: "busy", err: upstream.ErrBusy, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "foreign", err: errors.New("boom"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, upstream.Retryable(tt.err))
		})
	}
}

func TestCountersJSONOmitsAbsentFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(upstream.Counters{Waiting: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"waiting":4}`, string(data))

	data, err = json.Marshal(upstream.Counters{
		Inside:  mo.Some(12),
		Waiting: 5,
		Total:   mo.Some(40),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"inside":12,"waiting":5,"total":40}`, string(data))
}

func TestCountersValidateRejectsNegatives(t *testing.T) {
	t.Parallel()

	requireKind(t, upstream.Counters{Waiting: -1}.Validate(), upstream.KindParseFailed)
	requireKind(t, upstream.Counters{Total: mo.Some(-3)}.Validate(), upstream.KindParseFailed)
	assert.NoError(t, upstream.Counters{Waiting: 0, Inside: mo.Some(0)}.Validate())
}
