package workflow

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/sirupsen/logrus"
)

// Resolution strategies, in the order they are attempted.
const (
	StrategyDirectId      = "direct_id"
	StrategyAuthUidLookup = "auth_uid_lookup"
	StrategyPhoneBackfill = "phone_backfill"
)

// PrincipalDirectory is the read/repair surface identity resolution needs.
// Keeping it narrow lets tests drive the resolver with an in-memory fake.
type PrincipalDirectory interface {
	// UserByID returns the user document whose id equals the given id,
	// including soft-deleted records. Missing documents return
	// utils.ErrorRecordNotFound.
	UserByID(ctx context.Context, id string) (*models.User, error)

	// UserByAuthUID returns the live user whose auth_uid equals uid,
	// regardless of role. A wrong-role link must surface the linked record
	// so the final gate denies it instead of the resolver falling through
	// to a phone match on another record.
	UserByAuthUID(ctx context.Context, uid string) (*models.User, error)

	// UserByRoleAndPhone returns the live user with the given role whose
	// normalized phone digits equal digits.
	UserByRoleAndPhone(ctx context.Context, role models.Role, digits string) (*models.User, error)

	// LinkAuthUID persists the auth uid onto the user so future logins
	// resolve through the cheaper lookup.
	LinkAuthUID(ctx context.Context, userId, authUid string) error
}

// Resolution is the outcome of a successful principal resolution.
type Resolution struct {
	UserID   string
	User     *models.User
	Strategy string
	Repaired bool
}

// ResolvePrincipal maps an authenticated principal (uid + email) to a user
// document of the expected role. Three strategies run in order:
//
//  1. direct_id: the uid is itself a document id.
//  2. auth_uid_lookup: a document carries the uid in auth_uid.
//  3. phone_backfill: legacy documents created before the principal first
//     signed in are matched by the phone digits embedded in the email's
//     local part, and repaired by linking the auth uid.
//
// Resolution is fail-closed: any lookup error, a failed repair write, a
// role mismatch or a soft-deleted match all come back as
// utils.ErrorAccessDenied. Callers never learn which stage denied.
func ResolvePrincipal(ctx context.Context, dir PrincipalDirectory, uid, email string, role models.Role) (*Resolution, error) {
	logger := config.GetLogger()

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, utils.ErrorAccessDenied
	}

	resolution, err := resolveByDirectId(ctx, dir, uid, role)
	if err != nil {
		config.LogError(logger, "workflow", "ResolvePrincipal", StrategyDirectId, logrus.Fields{"uid": uid}, err)
		return nil, utils.ErrorAccessDenied
	}
	if resolution == nil {
		resolution, err = resolveByAuthUid(ctx, dir, uid)
		if err != nil {
			config.LogError(logger, "workflow", "ResolvePrincipal", StrategyAuthUidLookup, logrus.Fields{"uid": uid}, err)
			return nil, utils.ErrorAccessDenied
		}
	}
	if resolution == nil {
		resolution, err = resolveByPhoneBackfill(ctx, dir, uid, email, role)
		if err != nil {
			config.LogError(logger, "workflow", "ResolvePrincipal", StrategyPhoneBackfill, logrus.Fields{"uid": uid}, err)
			return nil, utils.ErrorAccessDenied
		}
	}
	if resolution == nil {
		return nil, utils.ErrorAccessDenied
	}

	// Final gate: the strategies locate a candidate, this decides it. The
	// direct-id strategy deliberately matches tombstoned documents and the
	// auth-uid lookup matches any role, so a deleted or wrong-role link is
	// denied here rather than falling through to a phone match on someone
	// else's record.
	if resolution.User.IsDeleted() || resolution.User.Role != role {
		return nil, utils.ErrorAccessDenied
	}

	logger.WithFields(logrus.Fields{
		"uid":      uid,
		"user_id":  resolution.UserID,
		"strategy": resolution.Strategy,
		"repaired": resolution.Repaired,
	}).Debug("principal resolved")

	return resolution, nil
}

func resolveByDirectId(ctx context.Context, dir PrincipalDirectory, uid string, role models.Role) (*Resolution, error) {
	user, err := dir.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Resolution{UserID: user.ID, User: user, Strategy: StrategyDirectId}, nil
}

func resolveByAuthUid(ctx context.Context, dir PrincipalDirectory, uid string) (*Resolution, error) {
	user, err := dir.UserByAuthUID(ctx, uid)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Resolution{UserID: user.ID, User: user, Strategy: StrategyAuthUidLookup}, nil
}

// resolveByPhoneBackfill handles documents seeded before the principal ever
// signed in. The email's local part is expected to be the phone number, so
// its digits select the legacy document, and the auth uid is written back so
// the next login takes the auth_uid_lookup path. A failed repair denies the
// whole resolution; serving an unrepaired match would make the claim
// unverifiable on the next request.
func resolveByPhoneBackfill(ctx context.Context, dir PrincipalDirectory, uid, email string, role models.Role) (*Resolution, error) {
	if !utils.IsValidEmail(email) {
		return nil, nil
	}
	digits := utils.PhoneDigitsFromEmail(email)
	if digits == "" {
		return nil, nil
	}

	user, err := dir.UserByRoleAndPhone(ctx, role, digits)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	repaired := false
	if strings.TrimSpace(user.AuthUID) != uid {
		if err := dir.LinkAuthUID(ctx, user.ID, uid); err != nil {
			return nil, err
		}
		user.AuthUID = uid
		repaired = true
	}

	return &Resolution{UserID: user.ID, User: user, Strategy: StrategyPhoneBackfill, Repaired: repaired}, nil
}
