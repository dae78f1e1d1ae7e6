package service

// AttributionKind classifies a join event.
type AttributionKind int

const (
	// AttributionDiscarded means the join is not an attribution case at all.
	AttributionDiscarded AttributionKind = iota
	// AttributionSelfJoin is a link join or a user adding themselves.
	AttributionSelfJoin
	// AttributionInvited credits InviterID.
	AttributionInvited
)

func (k AttributionKind) String() string {
	switch k {
	case AttributionSelfJoin:
		return "self_join"
	case AttributionInvited:
		return "invited"
	default:
		return "discarded"
	}
}

type Attribution struct {
	Kind      AttributionKind
	InviterID int64
}

// Resolve decides who, if anyone, gets credit for joiningUserID entering a
// group. actorUserID is the user who performed the add, 0 if unknown.
// Bot accounts, including this bot, are never attributed.
func Resolve(botUserID, actorUserID, joiningUserID int64, joiningIsBot bool) Attribution {
	if joiningIsBot || (botUserID != 0 && joiningUserID == botUserID) {
		return Attribution{Kind: AttributionDiscarded}
	}
	if actorUserID == 0 || actorUserID == joiningUserID {
		return Attribution{Kind: AttributionSelfJoin}
	}
	return Attribution{Kind: AttributionInvited, InviterID: actorUserID}
}
