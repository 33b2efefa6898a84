// Package identity resolves a scanned tag to the account that claims it and
// detects tags already claimed by another account category.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/gymgate/access-router/internal/storage"
)

// Category is the kind of account a tag resolved to.
type Category string

const (
	// CategoryUnregistered means the vendor never issued the tag.
	CategoryUnregistered Category = "unregistered"
	CategoryStaff        Category = "staff"
	CategoryOperator     Category = "operator"
	CategoryMember       Category = "member"
	// CategoryUnclaimed is a vendor tag no account holds yet (guest or new registration).
	CategoryUnclaimed Category = "unclaimed"
)

// Availability reasons reported to dashboards.
const (
	ReasonNotVendor      = "RFID tag is not registered with the vendor"
	ReasonStaffAssigned  = "RFID tag is already assigned to a staff member"
	ReasonAdminAssigned  = "RFID tag is already assigned to an admin account"
	ReasonMemberAssigned = "RFID tag is already assigned to a member"
	ReasonReady          = "RFID tag is ready for registration"
)

// Store is the subset of storage the resolver reads.
type Store interface {
	IsVendorTag(ctx context.Context, tag string) (bool, error)
	FindActiveStaffByTag(ctx context.Context, operatorID int64, tag string) (*storage.Staff, error)
	FindOperatorByTag(ctx context.Context, tag string) (*storage.Operator, error)
	FindMemberByTag(ctx context.Context, tag string) (*storage.Member, error)
}

// Identity is the first account found for a tag. At most one of Staff,
// Operator and Member is set, matching Category.
type Identity struct {
	Tag      string
	Category Category
	Staff    *storage.Staff
	Operator *storage.Operator
	Member   *storage.Member
}

// Name returns the display name of the holder, or "" when unclaimed.
func (i *Identity) Name() string {
	switch {
	case i.Staff != nil:
		return i.Staff.Name
	case i.Operator != nil:
		return i.Operator.Name
	case i.Member != nil:
		return i.Member.Name
	}
	return ""
}

// ProfileImage returns the holder's profile image path, if any.
func (i *Identity) ProfileImage() string {
	switch {
	case i.Staff != nil:
		return i.Staff.ProfileImage
	case i.Member != nil:
		return i.Member.ProfileImage
	}
	return ""
}

// Availability is the result of a duplicate-assignment check.
type Availability struct {
	Available bool
	Reason    string
	Identity  *Identity
}

// Resolver looks tags up in a fixed order: vendor registry, staff of the
// operator, operator tag slots, members. The first match wins.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// IsVendorTag reports whether the vendor issued tag.
func (r *Resolver) IsVendorTag(ctx context.Context, tag string) (bool, error) {
	ok, err := r.store.IsVendorTag(ctx, tag)
	if err != nil {
		return false, fmt.Errorf("vendor lookup: %w", err)
	}
	return ok, nil
}

// Resolve returns the identity of tag within the scope of operatorID.
// Staff are only matched for a concrete operator; operatorID 0 skips them.
func (r *Resolver) Resolve(ctx context.Context, tag string, operatorID int64) (*Identity, error) {
	id := &Identity{Tag: tag}

	vendor, err := r.IsVendorTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if !vendor {
		id.Category = CategoryUnregistered
		return id, nil
	}

	if operatorID > 0 {
		st, err := r.store.FindActiveStaffByTag(ctx, operatorID, tag)
		if err == nil {
			id.Category, id.Staff = CategoryStaff, st
			return id, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("staff lookup: %w", err)
		}
	}

	// Operator tags are not scoped to the reader's operator.
	op, err := r.store.FindOperatorByTag(ctx, tag)
	if err == nil {
		id.Category, id.Operator = CategoryOperator, op
		return id, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("operator lookup: %w", err)
	}

	m, err := r.store.FindMemberByTag(ctx, tag)
	if err == nil {
		id.Category, id.Member = CategoryMember, m
		return id, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("member lookup: %w", err)
	}

	id.Category = CategoryUnclaimed
	return id, nil
}

// CheckAvailability reports whether tag can be assigned to a new account of
// operatorID, and if not, which existing claim blocks it.
func (r *Resolver) CheckAvailability(ctx context.Context, tag string, operatorID int64) (*Availability, error) {
	id, err := r.Resolve(ctx, tag, operatorID)
	if err != nil {
		return nil, err
	}

	a := &Availability{Identity: id}
	switch id.Category {
	case CategoryUnregistered:
		a.Reason = ReasonNotVendor
	case CategoryStaff:
		a.Reason = ReasonStaffAssigned
	case CategoryOperator:
		a.Reason = ReasonAdminAssigned
	case CategoryMember:
		a.Reason = ReasonMemberAssigned
	default:
		a.Available = true
		a.Reason = ReasonReady
	}
	return a, nil
}
