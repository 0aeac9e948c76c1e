// Package pagination implements the opaque cursor scheme that fans one
// logical page limit across many DTR-scoped sub-cursors. A page token is
// a base64-encoded JSON blob carrying each DTR's own cursor and
// exhausted flag, the page number, the limit it was issued under, and at
// most one level of previous-page state for backward navigation.
package pagination

import (
	"encoding/base64"
	"encoding/json"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

type dtrCursorWire struct {
	Cursor    string `json:"cursor"`
	Exhausted bool   `json:"exhausted"`
}

type pageStateWire struct {
	DtrStates    map[string]dtrCursorWire `json:"dtr_states"`
	PageNumber   int                      `json:"page_number"`
	Limit        *int                     `json:"limit"`
	PreviousPage *pageStateWire           `json:"previous_state,omitempty"`
}

// Encode serializes a PageState into an opaque cursor token. The
// previous-page chain is flattened to a single nested level: a
// PreviousState with its own PreviousState discards the grandparent
// rather than nesting further, matching the cursor's "one step back"
// contract.
func Encode(state *types.PageState) string {
	wire := toWire(state, true)
	b, _ := json.Marshal(wire)
	return base64.StdEncoding.EncodeToString(b)
}

func toWire(state *types.PageState, includePrevious bool) *pageStateWire {
	if state == nil {
		return nil
	}

	dtrStates := make(map[string]dtrCursorWire, len(state.DtrStates))
	for assetID, cursor := range state.DtrStates {
		dtrStates[assetID] = dtrCursorWire{Cursor: cursor.Cursor, Exhausted: cursor.Exhausted}
	}

	wire := &pageStateWire{
		DtrStates:  dtrStates,
		PageNumber: state.PageNumber,
		Limit:      state.Limit,
	}

	if includePrevious && state.PreviousState != nil {
		wire.PreviousPage = toWire(state.PreviousState, false)
	}

	return wire
}

// Decode parses an opaque cursor token back into a PageState. A token
// that fails to decode yields a fresh, empty PageState together with
// types.ErrMalformed, so the caller can report the bad cursor and carry
// on with the fresh state ("start over") instead of failing.
func Decode(token string) (*types.PageState, error) {
	if token == "" {
		return &types.PageState{DtrStates: map[string]types.DtrCursor{}}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return &types.PageState{DtrStates: map[string]types.DtrCursor{}}, types.ErrMalformed
	}

	var wire pageStateWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return &types.PageState{DtrStates: map[string]types.DtrCursor{}}, types.ErrMalformed
	}

	return fromWire(&wire), nil
}

func fromWire(wire *pageStateWire) *types.PageState {
	if wire == nil {
		return nil
	}

	dtrStates := make(map[string]types.DtrCursor, len(wire.DtrStates))
	for assetID, cursor := range wire.DtrStates {
		dtrStates[assetID] = types.DtrCursor{AssetID: assetID, Cursor: cursor.Cursor, Exhausted: cursor.Exhausted}
	}

	state := &types.PageState{
		DtrStates:  dtrStates,
		PageNumber: wire.PageNumber,
		Limit:      wire.Limit,
	}

	if wire.PreviousPage != nil {
		state.PreviousState = fromWire(wire.PreviousPage)
	}

	return state
}

// DistributeLimit splits totalLimit evenly across activeDTRs, rounding
// down but never to zero: every active DTR gets a chance to contribute
// at least one result per page.
func DistributeLimit(totalLimit, activeDTRs int) int {
	if activeDTRs <= 0 {
		return totalLimit
	}
	perDTR := totalLimit / activeDTRs
	if perDTR < 1 {
		return 1
	}
	return perDTR
}

// HasMoreData reports whether any DTR in the cursor has not yet been
// exhausted.
func HasMoreData(dtrStates map[string]types.DtrCursor) bool {
	for _, state := range dtrStates {
		if !state.Exhausted {
			return true
		}
	}
	return false
}

// IsCompatible reports whether a decoded cursor may be reused with
// currentLimit. A cursor issued without a limit is compatible with any
// request; a cursor issued with a limit must match the current request's
// limit exactly, and a limitless current request is never compatible
// with a limited cursor.
func IsCompatible(state *types.PageState, currentLimit *int) bool {
	if state == nil || state.Limit == nil {
		return true
	}
	if currentLimit == nil {
		return false
	}
	return *state.Limit == *currentLimit
}
