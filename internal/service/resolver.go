package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"

	"github.com/rs/zerolog"
)

var (
	platePattern = regexp.MustCompile(`^[A-Z0-9]{1,3}-[A-Z0-9]{3,6}$`)
	tagPattern   = regexp.MustCompile(`^TAG-\d{1,3}$`)
)

// maxEventAge is how far in the past an event timestamp may lie.
const maxEventAge = 24 * time.Hour

// IdentityResolverImpl implements ports.IdentityResolver.
type IdentityResolverImpl struct {
	accounts             ports.AccountRepository
	tags                 ports.TagRepository
	invoiceUnknownPlates bool
	now                  func() time.Time
	log                  zerolog.Logger
}

// NewIdentityResolver creates a resolver. When invoiceUnknownPlates is set, a
// plate-only event with no stored account resolves to an implicit unregistered
// account instead of failing with UnknownAccount.
func NewIdentityResolver(
	accounts ports.AccountRepository,
	tags ports.TagRepository,
	invoiceUnknownPlates bool,
	log zerolog.Logger,
) *IdentityResolverImpl {
	return &IdentityResolverImpl{
		accounts:             accounts,
		tags:                 tags,
		invoiceUnknownPlates: invoiceUnknownPlates,
		now:                  time.Now,
		log:                  log,
	}
}

// Resolve validates the raw event and resolves it to a single plate.
func (r *IdentityResolverImpl) Resolve(ctx context.Context, event domain.TollEvent) (*ports.ResolvedEvent, error) {
	identity, tollPoint, ts, err := r.validate(event)
	if err != nil {
		return nil, err
	}

	var resolved *domain.ResolvedIdentity
	switch id := identity.(type) {
	case domain.TagIdentity:
		resolved, err = r.resolveTag(ctx, id)
	case domain.PlateIdentity:
		resolved, err = r.resolvePlate(ctx, id)
	case domain.PlateTagIdentity:
		resolved, err = r.resolvePlateTag(ctx, id)
	default:
		return nil, apperror.ErrMissingIdentity()
	}
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("event_id", event.EventID).
		Str("plate", resolved.Plate).
		Str("source", string(resolved.Source)).
		Str("classification", string(resolved.Classification)).
		Bool("has_active_tag", resolved.HasActiveTag).
		Msg("identity resolved")

	return &ports.ResolvedEvent{
		EventID:   event.EventID,
		TollPoint: tollPoint,
		Timestamp: ts,
		Identity:  identity,
		Resolved:  *resolved,
	}, nil
}

// validate applies the field checks in a fixed order; the first failure wins.
func (r *IdentityResolverImpl) validate(event domain.TollEvent) (domain.Identity, domain.TollPoint, time.Time, error) {
	plate := normalizePlate(event.Plate)
	tagID := normalizeTagID(event.TagID)

	if plate == "" && tagID == "" {
		return nil, "", time.Time{}, apperror.ErrMissingIdentity()
	}

	tollPoint, ok := domain.ParseTollPoint(event.TollPointID)
	if !ok {
		return nil, "", time.Time{}, apperror.ErrUnknownTollPoint(event.TollPointID)
	}

	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(event.Timestamp))
	if err != nil {
		return nil, "", time.Time{}, apperror.ErrInvalidTimestamp(err)
	}
	now := r.now()
	if ts.After(now) {
		return nil, "", time.Time{}, apperror.ErrFutureEvent()
	}
	if now.Sub(ts) > maxEventAge {
		return nil, "", time.Time{}, apperror.ErrStaleEvent()
	}

	if plate != "" && !platePattern.MatchString(plate) {
		return nil, "", time.Time{}, apperror.ErrMalformedPlate()
	}
	if tagID != "" && !tagPattern.MatchString(tagID) {
		return nil, "", time.Time{}, apperror.ErrMalformedTagID()
	}

	var identity domain.Identity
	switch {
	case plate != "" && tagID != "":
		identity = domain.PlateTagIdentity{Plate: plate, TagID: tagID}
	case tagID != "":
		identity = domain.TagIdentity{TagID: tagID}
	default:
		identity = domain.PlateIdentity{Plate: plate}
	}
	return identity, tollPoint, ts.UTC(), nil
}

func (r *IdentityResolverImpl) resolveTag(ctx context.Context, id domain.TagIdentity) (*domain.ResolvedIdentity, error) {
	tag, err := r.tags.GetByID(ctx, id.TagID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get tag %s: %w", id.TagID, err))
	}
	if tag == nil || !tag.IsActive() || tag.LinkedPlate() == "" {
		return nil, apperror.ErrTagUnresolved(id.TagID)
	}

	account, err := r.getAccount(ctx, tag.LinkedPlate())
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.ErrTagUnresolved(id.TagID)
	}

	return resolvedFromAccount(account, domain.IdentityTagOnly, &id.TagID, true), nil
}

func (r *IdentityResolverImpl) resolvePlate(ctx context.Context, id domain.PlateIdentity) (*domain.ResolvedIdentity, error) {
	account, err := r.getAccount(ctx, id.Plate)
	if err != nil {
		return nil, err
	}
	if account == nil {
		if !r.invoiceUnknownPlates {
			return nil, apperror.ErrUnknownAccount(id.Plate)
		}
		resolved := resolvedFromAccount(domain.ImplicitUnregisteredAccount(id.Plate), domain.IdentityPlateOnly, nil, false)
		resolved.Implicit = true
		return resolved, nil
	}

	return resolvedFromAccount(account, domain.IdentityPlateOnly, nil, false), nil
}

func (r *IdentityResolverImpl) resolvePlateTag(ctx context.Context, id domain.PlateTagIdentity) (*domain.ResolvedIdentity, error) {
	tag, err := r.tags.GetByID(ctx, id.TagID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get tag %s: %w", id.TagID, err))
	}
	if tag == nil || !tag.IsActive() {
		return nil, apperror.ErrTagUnresolved(id.TagID)
	}
	if tag.LinkedPlate() != id.Plate {
		return nil, apperror.ErrTagPlateMismatch()
	}

	account, err := r.getAccount(ctx, id.Plate)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.ErrUnknownAccount(id.Plate)
	}

	return resolvedFromAccount(account, domain.IdentityPlateTag, &id.TagID, true), nil
}

func (r *IdentityResolverImpl) getAccount(ctx context.Context, plate string) (*domain.Account, error) {
	account, err := r.accounts.GetByPlate(ctx, plate)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get account %s: %w", plate, err))
	}
	return account, nil
}

func resolvedFromAccount(account *domain.Account, source domain.IdentityKind, tagID *string, hasActiveTag bool) *domain.ResolvedIdentity {
	return &domain.ResolvedIdentity{
		Plate:          account.Plate,
		Classification: account.Classification,
		HasActiveTag:   hasActiveTag,
		Source:         source,
		TagID:          tagID,
		Account:        account,
	}
}

func normalizePlate(plate *string) string {
	if plate == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*plate))
}

func normalizeTagID(tagID *string) string {
	if tagID == nil {
		return ""
	}
	return strings.TrimSpace(*tagID)
}
