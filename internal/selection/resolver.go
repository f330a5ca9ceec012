// Package selection resolves a clicked map feature into the record shown in
// the detail panel.
//
// A click on a lake already in the store selects it immediately. A click on
// a feature the store does not know yet selects a stub built from the
// feature's own properties and asks for the full record. Every click and
// every close moves the resolver to a new version; a detail response is only
// applied if it answers the current version, so a slow response for an
// earlier click can never overwrite a later selection.
//
// Resolver is a plain state machine owned by the UI loop. It performs no I/O;
// callers run the fetches it requests and feed the outcomes back.
package selection

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

// ErrInvalidFeatureID is returned when a clicked feature has no usable id.
var ErrInvalidFeatureID = errors.New("invalid feature id")

// State is the resolver's phase.
type State string

const (
	Idle           State = "idle"
	AwaitingDetail State = "awaiting_detail"
	Selected       State = "selected"
)

// Lookup finds a lake in the local store.
type Lookup func(domain.LakeID) (domain.Lake, bool)

// DetailRequest identifies one detail fetch. Its version ties the response
// to the click that caused it.
type DetailRequest struct {
	ID      domain.LakeID
	Version uint64
}

// Outcome is the result of a click.
type Outcome struct {
	Hit       bool
	Selection domain.Selection
	Fetch     *DetailRequest
}

// Resolver tracks the current selection.
type Resolver struct {
	refreshLocal bool

	state     State
	selection domain.Selection
	version   uint64
}

// NewResolver creates an idle resolver. When refreshLocal is set, clicks on
// lakes already in the store also request a fresh copy of the record.
func NewResolver(refreshLocal bool) *Resolver {
	return &Resolver{
		refreshLocal: refreshLocal,
		state:        Idle,
		selection:    domain.NoSelection(),
	}
}

// State returns the current phase.
func (r *Resolver) State() State {
	return r.state
}

// Selection returns what the detail panel should show.
func (r *Resolver) Selection() domain.Selection {
	return r.selection
}

// Version returns the current version.
func (r *Resolver) Version() uint64 {
	return r.version
}

// Click handles the topmost feature under the pointer. An empty slice means
// nothing was hit and leaves the state unchanged.
func (r *Resolver) Click(features []map[string]any, lookup Lookup) (Outcome, error) {
	if len(features) == 0 {
		return Outcome{Selection: r.selection}, nil
	}
	props := features[0]

	id, err := domain.ParseLakeID(props[domain.PropID])
	if err != nil {
		return Outcome{Selection: r.selection}, fmt.Errorf("%w: %w", ErrInvalidFeatureID, err)
	}

	r.version++
	req := &DetailRequest{ID: id, Version: r.version}

	if lake, ok := lookup(id); ok {
		r.state = Selected
		r.selection = domain.Selection{Kind: domain.SelectionResolved, Lake: &lake}
		if !r.refreshLocal {
			req = nil
		}
		return Outcome{Hit: true, Selection: r.selection, Fetch: req}, nil
	}

	stub := domain.NewStub(id, props)
	r.state = AwaitingDetail
	r.selection = domain.Selection{Kind: domain.SelectionStub, Lake: &stub}
	return Outcome{Hit: true, Selection: r.selection, Fetch: req}, nil
}

// Current reports whether req still answers the latest click.
func (r *Resolver) Current(req DetailRequest) bool {
	return req.Version == r.version && r.selection.ID() == req.ID
}

// ApplyDetail installs a fetched record if req is still current. It returns
// false for stale responses, which are dropped.
func (r *Resolver) ApplyDetail(req DetailRequest, lake domain.Lake) bool {
	if !r.Current(req) || lake.ID != req.ID {
		return false
	}
	r.state = Selected
	r.selection = domain.Selection{Kind: domain.SelectionResolved, Lake: &lake}
	return true
}

// DetailFailed records a failed fetch. The stub or previously resolved record
// stays on screen. It reports whether the failure concerned the current click.
func (r *Resolver) DetailFailed(req DetailRequest) bool {
	return r.Current(req)
}

// Close clears the selection and invalidates any fetch in flight.
func (r *Resolver) Close() {
	r.version++
	r.state = Idle
	r.selection = domain.NoSelection()
}
