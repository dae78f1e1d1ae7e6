package service

import (
	"context"
)

// GateReason explains a Verdict.
type GateReason string

const (
	ReasonGatingDisabled   GateReason = "gating_disabled"
	ReasonAdministrator    GateReason = "administrator"
	ReasonThresholdMet     GateReason = "threshold_met"
	ReasonBelowThreshold   GateReason = "below_threshold"
	ReasonStoreUnavailable GateReason = "store_unavailable"
)

type Verdict struct {
	Allowed   bool       `json:"allowed"`
	Reason    GateReason `json:"reason"`
	Count     int64      `json:"count"`
	Threshold int        `json:"threshold"`
	// Remaining is how many more invites a blocked user needs.
	Remaining int64 `json:"remaining"`
}

// AccessGate decides whether a user may post in a group. It keeps no state;
// every call reads the current threshold and count.
type AccessGate interface {
	Evaluate(ctx context.Context, groupID, userID int64, isAdmin bool) (Verdict, error)
}

type accessGate struct {
	registry GroupRegistry
	counters CounterReader
}

func NewAccessGate(registry GroupRegistry, counters CounterReader) AccessGate {
	return &accessGate{registry: registry, counters: counters}
}

func (g *accessGate) Evaluate(ctx context.Context, groupID, userID int64, isAdmin bool) (Verdict, error) {
	if isAdmin {
		return Verdict{Allowed: true, Reason: ReasonAdministrator}, nil
	}

	group, found, err := g.registry.Lookup(ctx, groupID)
	if err != nil {
		return Verdict{}, err
	}
	if !found || !group.GatingActive() {
		return Verdict{Allowed: true, Reason: ReasonGatingDisabled}, nil
	}

	count, err := g.counters.Get(ctx, groupID, userID)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{Count: count, Threshold: group.InviteThreshold}
	if count >= int64(group.InviteThreshold) {
		v.Allowed = true
		v.Reason = ReasonThresholdMet
		return v, nil
	}
	v.Reason = ReasonBelowThreshold
	v.Remaining = int64(group.InviteThreshold) - count
	return v, nil
}
