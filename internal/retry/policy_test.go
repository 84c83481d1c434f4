package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdxflatten/internal/config"
)

func TestFromConfig_ZeroValuesFallBack(t *testing.T) {
	p := FromConfig(config.RetryConfig{})
	require.Equal(t, DefaultPolicy(), p)
	require.NoError(t, p.Validate())
}

func TestFromConfig_UnknownModeKeepsDefault(t *testing.T) {
	p := FromConfig(config.RetryConfig{Mode: "bogus"})
	require.Equal(t, config.RetryBackoffLinear, p.Mode)
}

func TestDelay_Modes(t *testing.T) {
	fixed := Policy{Mode: config.RetryBackoffFixed, Initial: time.Second, Max: time.Minute}
	require.Equal(t, time.Second, fixed.Delay(1))
	require.Equal(t, time.Second, fixed.Delay(5))

	linear := Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 3 * time.Second}
	require.Equal(t, time.Second, linear.Delay(1))
	require.Equal(t, 2*time.Second, linear.Delay(2))
	require.Equal(t, 3*time.Second, linear.Delay(10)) // capped

	exp := Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: 5 * time.Second}
	require.Equal(t, time.Second, exp.Delay(1))
	require.Equal(t, 2*time.Second, exp.Delay(2))
	require.Equal(t, 4*time.Second, exp.Delay(3))
	require.Equal(t, 5*time.Second, exp.Delay(4)) // capped
}

func TestDelay_ZeroForNonPositiveAttempt(t *testing.T) {
	require.Equal(t, time.Duration(0), DefaultPolicy().Delay(0))
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 3}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 2}

	boom := errors.New("boom")
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls) // initial attempt plus two retries
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Minute, Max: time.Minute, MaxRetries: 1}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func() error { return errors.New("transient") })
	require.ErrorIs(t, err, context.Canceled)
}
