package domain

// TollEvent is a raw toll crossing as delivered by the queue. Fields are
// validated by the identity resolver, not on construction.
type TollEvent struct {
	EventID     string  `json:"eventId"`
	Plate       *string `json:"plate,omitempty"`
	TagID       *string `json:"tagId,omitempty"`
	TollPointID string  `json:"tollPointId"`
	Timestamp   string  `json:"timestamp"`
}

// IdentityKind names the identity variant an event carried.
type IdentityKind string

const (
	IdentityPlateOnly IdentityKind = "plate_only"
	IdentityTagOnly   IdentityKind = "tag_only"
	IdentityPlateTag  IdentityKind = "plate_and_tag"
)

// Identity is the validated identity claim of an event: exactly one of
// PlateIdentity, TagIdentity or PlateTagIdentity.
type Identity interface {
	Kind() IdentityKind
}

type PlateIdentity struct {
	Plate string
}

type TagIdentity struct {
	TagID string
}

type PlateTagIdentity struct {
	Plate string
	TagID string
}

func (PlateIdentity) Kind() IdentityKind    { return IdentityPlateOnly }
func (TagIdentity) Kind() IdentityKind      { return IdentityTagOnly }
func (PlateTagIdentity) Kind() IdentityKind { return IdentityPlateTag }

// ResolvedIdentity is the resolver's output and the only input of fee
// calculation and settlement.
type ResolvedIdentity struct {
	Plate          string
	Classification Classification
	HasActiveTag   bool
	Source         IdentityKind
	TagID          *string
	Account        *Account
	Implicit       bool // no stored account, billed as unregistered
}

// Scenario returns the billing path for the resolved identity.
func (r ResolvedIdentity) Scenario() Scenario {
	switch {
	case r.Classification != ClassificationRegistered:
		return ScenarioUnregisteredInvoice
	case r.HasActiveTag:
		return ScenarioTagExpress
	default:
		return ScenarioRegisteredDirect
	}
}
