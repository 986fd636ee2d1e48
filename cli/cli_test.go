package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/mqtt/mocks"
	"github.com/absmach/fedavg/pkg/sdk"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeSDK struct {
	sdk.SDK
	rounds map[int]sdk.Round
	offset uint64
	limit  uint64
}

func (f *fakeSDK) Status() (sdk.Status, error) {
	return sdk.Status{RunID: "run-1", Phase: "running", Round: 2, Rounds: 5}, nil
}

func (f *fakeSDK) ListRounds(offset, limit uint64) (sdk.RoundPage, error) {
	f.offset, f.limit = offset, limit

	return sdk.RoundPage{Offset: offset, Limit: limit, Total: uint64(len(f.rounds))}, nil
}

func (f *fakeSDK) GetRound(round int) (sdk.Round, error) {
	r, ok := f.rounds[round]
	if !ok {
		return sdk.Round{}, &sdk.APIError{StatusCode: 404, Message: "entity not found"}
	}

	return r, nil
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	return stdout.String(), stderr.String()
}

func TestStatusCmd(t *testing.T) {
	SetSDK(&fakeSDK{})

	out, _ := execute(t, NewStatusCmd())
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "running")

	out, _ = execute(t, NewStatusCmd(), "extra")
	assert.Contains(t, out, "usage")
}

func TestRoundsCmd(t *testing.T) {
	fake := &fakeSDK{rounds: map[int]sdk.Round{
		1: {Round: 1, Participants: []string{"alice"}, TotalSamples: 100},
	}}
	SetSDK(fake)

	cases := []struct {
		desc   string
		args   []string
		stdout string
		stderr string
	}{
		{desc: "view existing round", args: []string{"view", "1"}, stdout: "alice"},
		{desc: "view missing round", args: []string{"view", "7"}, stderr: "entity not found"},
		{desc: "view non numeric round", args: []string{"view", "one"}, stderr: "invalid syntax"},
		{desc: "view without round", args: []string{"view"}, stdout: "usage"},
		{desc: "list with paging", args: []string{"list", "--offset", "2", "--limit", "3"}, stdout: "total"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			stdout, stderr := execute(t, NewRoundsCmd(), tc.args...)
			if tc.stdout != "" {
				assert.Contains(t, stdout, tc.stdout)
			}
			if tc.stderr != "" {
				assert.Contains(t, stderr, tc.stderr)
			}
		})
	}

	assert.Equal(t, uint64(2), fake.offset)
	assert.Equal(t, uint64(3), fake.limit)
}

func TestWatch(t *testing.T) {
	ps := new(mocks.MockPubSub)
	orig := newPubSub
	newPubSub = func(cfg mqtt.Config) (mqtt.PubSub, error) {
		assert.NotEmpty(t, cfg.ClientID)

		return ps, nil
	}
	t.Cleanup(func() { newPubSub = orig })

	rounds, runs := mqtt.RoundsTopic("fedavg"), mqtt.RunsTopic("fedavg")
	ps.On("Subscribe", mock.Anything, rounds, mock.Anything).Run(func(args mock.Arguments) {
		handler := args.Get(2).(mqtt.Handler)
		_ = handler(rounds, map[string]any{"run_id": "run-1", "round": 1.0})
	}).Return(nil)
	ps.On("Subscribe", mock.Anything, runs, mock.Anything).Run(func(args mock.Arguments) {
		handler := args.Get(2).(mqtt.Handler)
		_ = handler(runs, map[string]any{"run_id": "run-1", "reason": "max_rounds"})
	}).Return(nil)
	ps.On("Unsubscribe", mock.Anything, mock.Anything).Return(nil)
	ps.On("Disconnect", mock.Anything).Return(nil)

	var stdout bytes.Buffer
	cmd := cobra.Command{}
	cmd.SetOut(&stdout)

	require.NoError(t, watch(context.Background(), cmd))
	assert.Contains(t, stdout.String(), "max_rounds")
	ps.AssertNumberOfCalls(t, "Unsubscribe", 2)
	ps.AssertCalled(t, "Disconnect", mock.Anything)
}

func TestWatchBrokerFailure(t *testing.T) {
	orig := newPubSub
	newPubSub = func(mqtt.Config) (mqtt.PubSub, error) {
		return nil, errors.New("connection refused")
	}
	t.Cleanup(func() { newPubSub = orig })

	err := watch(context.Background(), cobra.Command{})
	assert.ErrorContains(t, err, "connection refused")
}
