package exposure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakedash/chain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func eraSnapshot() []chain.Exposure {
	return []chain.Exposure{
		{
			Validator: "A",
			Total:     d("200"),
			Own:       d("100"),
			Others: []chain.IndividualExposure{
				{Who: "alice", Value: d("50")},
				{Who: "bob", Value: d("50")},
			},
		},
		{
			Validator: "alice",
			Total:     d("1000"),
			Own:       d("900"),
			Others: []chain.IndividualExposure{
				{Who: "carol", Value: d("100")},
			},
		},
		{
			Validator: "C",
			Total:     d("300"),
			Own:       d("300"),
		},
	}
}

func TestProcessEraForExposure(t *testing.T) {

	exposed := ProcessEraForExposure("alice", eraSnapshot())
	require.Len(t, exposed, 2)

	nominated := exposed["A"]
	assert.True(t, nominated.Staked.Equal(d("50")))
	assert.True(t, nominated.Total.Equal(d("200")))
	assert.False(t, nominated.IsValidator)

	self := exposed["alice"]
	assert.True(t, self.Staked.Equal(d("900")))
	assert.True(t, self.Total.Equal(d("1000")))
	assert.True(t, self.IsValidator)

	assert.Empty(t, ProcessEraForExposure("dave", eraSnapshot()))
	assert.Empty(t, ProcessEraForExposure("alice", nil))
}

func TestResolverRoundTrip(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	r := NewResolver(1)
	r.Start(ctx, &wg)

	// Unknown tasks are answered with an error
	require.NoError(t, r.Submit(ctx, Request{Task: "other", Era: 98, Who: "alice"}))

	select {
	case resp := <-r.Responses():
		assert.Equal(t, "other", resp.Task)
		assert.Equal(t, uint32(98), resp.Era)
		assert.Error(t, resp.Err)
		assert.Nil(t, resp.ExposedValidators)
	case <-time.After(time.Second):
		t.Fatal("No response from resolver")
	}

	require.NoError(t, r.Submit(ctx, Request{
		Task:        TaskProcessEraForExposure,
		Era:         99,
		Who:         "alice",
		NetworkName: "westend",
		Exposures:   eraSnapshot(),
	}))

	select {
	case resp := <-r.Responses():
		assert.Equal(t, TaskProcessEraForExposure, resp.Task)
		assert.Equal(t, uint32(99), resp.Era)
		assert.Equal(t, "alice", resp.Who)
		assert.Equal(t, "westend", resp.NetworkName)
		assert.Len(t, resp.ExposedValidators, 2)
		assert.NoError(t, resp.Err)
	case <-time.After(time.Second):
		t.Fatal("No response from resolver")
	}

	cancel()
	wg.Wait()
}

func TestResolverRecoversPanic(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	r := NewResolver(1)
	r.scan = func(who string, exposures []chain.Exposure) EraExposure {
		panic("corrupt snapshot")
	}
	r.Start(ctx, &wg)

	require.NoError(t, r.Submit(ctx, Request{
		Task:        TaskProcessEraForExposure,
		Era:         99,
		Who:         "alice",
		NetworkName: "westend",
	}))

	select {
	case resp := <-r.Responses():
		assert.Equal(t, uint32(99), resp.Era)
		assert.Equal(t, "alice", resp.Who)
		require.Error(t, resp.Err)
		assert.Contains(t, resp.Err.Error(), "corrupt snapshot")
	case <-time.After(time.Second):
		t.Fatal("No response from resolver")
	}

	// Worker keeps serving after a panic
	r.scan = ProcessEraForExposure
	require.NoError(t, r.Submit(ctx, Request{
		Task:      TaskProcessEraForExposure,
		Era:       98,
		Who:       "alice",
		Exposures: eraSnapshot(),
	}))

	select {
	case resp := <-r.Responses():
		assert.NoError(t, resp.Err)
		assert.Len(t, resp.ExposedValidators, 2)
	case <-time.After(time.Second):
		t.Fatal("No response from resolver")
	}

	cancel()
	wg.Wait()
}

func TestResolverSubmitCancelled(t *testing.T) {

	r := NewResolver(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No worker running and no queue; returns once ctx is done
	assert.ErrorIs(t, r.Submit(ctx, Request{Task: TaskProcessEraForExposure}), context.Canceled)
}
