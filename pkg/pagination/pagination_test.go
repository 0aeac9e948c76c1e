package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

func intPtr(i int) *int { return &i }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	limit := 10
	state := &types.PageState{
		DtrStates: map[string]types.DtrCursor{
			"dtr-1": {AssetID: "dtr-1", Cursor: "abc", Exhausted: false},
			"dtr-2": {AssetID: "dtr-2", Cursor: "", Exhausted: true},
		},
		PageNumber: 2,
		Limit:      &limit,
	}

	token := Encode(state)
	require.NotEmpty(t, token)

	decoded, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, state.PageNumber, decoded.PageNumber)
	require.NotNil(t, decoded.Limit)
	assert.Equal(t, *state.Limit, *decoded.Limit)
	assert.Equal(t, state.DtrStates["dtr-1"], decoded.DtrStates["dtr-1"])
	assert.Equal(t, state.DtrStates["dtr-2"], decoded.DtrStates["dtr-2"])
}

func TestEncodeFlattensPreviousStateToOneLevel(t *testing.T) {
	grandparent := &types.PageState{DtrStates: map[string]types.DtrCursor{}, PageNumber: 0}
	parent := &types.PageState{DtrStates: map[string]types.DtrCursor{}, PageNumber: 1, PreviousState: grandparent}
	current := &types.PageState{DtrStates: map[string]types.DtrCursor{}, PageNumber: 2, PreviousState: parent}

	token := Encode(current)
	decoded, err := Decode(token)
	require.NoError(t, err)

	require.NotNil(t, decoded.PreviousState)
	assert.Equal(t, 1, decoded.PreviousState.PageNumber)
	assert.Nil(t, decoded.PreviousState.PreviousState)
}

func TestDecodeEmptyTokenYieldsFreshState(t *testing.T) {
	decoded, err := Decode("")
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.PageNumber)
	assert.Empty(t, decoded.DtrStates)
}

func TestDecodeMalformedTokenYieldsFreshStateAndError(t *testing.T) {
	decoded, err := Decode("not-valid-base64!!!")
	assert.ErrorIs(t, err, types.ErrMalformed)
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded.DtrStates)
}

func TestDistributeLimit(t *testing.T) {
	tests := []struct {
		name       string
		totalLimit int
		activeDTRs int
		want       int
	}{
		{"even split", 10, 5, 2},
		{"rounds down, never zero", 5, 10, 1},
		{"no active dtrs returns total", 10, 0, 10},
		{"single dtr gets everything", 20, 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DistributeLimit(tt.totalLimit, tt.activeDTRs))
		})
	}
}

func TestHasMoreData(t *testing.T) {
	tests := []struct {
		name  string
		state map[string]types.DtrCursor
		want  bool
	}{
		{"empty", map[string]types.DtrCursor{}, false},
		{"all exhausted", map[string]types.DtrCursor{"a": {Exhausted: true}}, false},
		{"one remaining", map[string]types.DtrCursor{"a": {Exhausted: true}, "b": {Exhausted: false}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasMoreData(tt.state))
		})
	}
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name         string
		cursorLimit  *int
		currentLimit *int
		want         bool
	}{
		{"cursor has no limit", nil, intPtr(10), true},
		{"both nil", nil, nil, true},
		{"matching limits", intPtr(10), intPtr(10), true},
		{"mismatched limits", intPtr(10), intPtr(20), false},
		{"cursor limited, request unlimited", intPtr(10), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &types.PageState{Limit: tt.cursorLimit}
			assert.Equal(t, tt.want, IsCompatible(state, tt.currentLimit))
		})
	}
}
