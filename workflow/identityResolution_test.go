package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
)

// fakeDirectory drives the resolver without a database.
type fakeDirectory struct {
	byId    map[string]*models.User
	linkErr error
	lookErr error
	links   []string
}

func newFakeDirectory(users ...*models.User) *fakeDirectory {
	d := &fakeDirectory{byId: map[string]*models.User{}}
	for _, u := range users {
		d.byId[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) UserByID(ctx context.Context, id string) (*models.User, error) {
	if d.lookErr != nil {
		return nil, d.lookErr
	}
	if u, ok := d.byId[id]; ok {
		return u, nil
	}
	return nil, utils.ErrorRecordNotFound
}

func (d *fakeDirectory) UserByAuthUID(ctx context.Context, uid string) (*models.User, error) {
	if d.lookErr != nil {
		return nil, d.lookErr
	}
	for _, u := range d.byId {
		if u.AuthUID == uid && !u.IsDeleted() {
			return u, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (d *fakeDirectory) UserByRoleAndPhone(ctx context.Context, role models.Role, digits string) (*models.User, error) {
	if d.lookErr != nil {
		return nil, d.lookErr
	}
	for _, u := range d.byId {
		if u.Role == role && utils.NormalizeDigits(u.PhoneNumber) == digits && !u.IsDeleted() {
			return u, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (d *fakeDirectory) LinkAuthUID(ctx context.Context, userId, authUid string) error {
	if d.linkErr != nil {
		return d.linkErr
	}
	d.links = append(d.links, userId+"="+authUid)
	if u, ok := d.byId[userId]; ok {
		u.AuthUID = authUid
	}
	return nil
}

func liveOwner(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleOwner, Deleted: utils.NewFalse()}
}

func TestResolvePrincipal_DirectId(t *testing.T) {
	dir := newFakeDirectory(liveOwner("uid-1"))

	res, err := ResolvePrincipal(context.Background(), dir, "uid-1", "", models.RoleOwner)
	if err != nil {
		t.Fatalf("expected resolution, got %v", err)
	}
	if res.UserID != "uid-1" || res.Strategy != StrategyDirectId {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if res.Repaired {
		t.Fatal("direct id resolution must not repair")
	}
}

func TestResolvePrincipal_DirectIdDeletedIsDenied(t *testing.T) {
	tombstone := liveOwner("uid-1")
	tombstone.Deleted = utils.NewTrue()
	// A live owner shares the phone digits with the tombstone. The direct-id
	// match must win the candidate selection and then be denied, not fall
	// through to the phone match.
	tombstone.PhoneNumber = "9876543210"
	other := liveOwner("other-1")
	other.PhoneNumber = "9876543210"
	dir := newFakeDirectory(tombstone, other)

	_, err := ResolvePrincipal(context.Background(), dir, "uid-1", "9876543210@app.local", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestResolvePrincipal_AuthUidLookup(t *testing.T) {
	owner := liveOwner("doc-7")
	owner.AuthUID = "firebase-uid"
	dir := newFakeDirectory(owner)

	res, err := ResolvePrincipal(context.Background(), dir, "firebase-uid", "", models.RoleOwner)
	if err != nil {
		t.Fatalf("expected resolution, got %v", err)
	}
	if res.UserID != "doc-7" || res.Strategy != StrategyAuthUidLookup {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolvePrincipal_PhoneBackfillRepairs(t *testing.T) {
	legacy := liveOwner("legacy-3")
	legacy.PhoneNumber = "91-2345-6780"
	dir := newFakeDirectory(legacy)

	res, err := ResolvePrincipal(context.Background(), dir, "new-uid", "9123456780@app.local", models.RoleOwner)
	if err != nil {
		t.Fatalf("expected resolution, got %v", err)
	}
	if res.Strategy != StrategyPhoneBackfill || !res.Repaired {
		t.Fatalf("expected repaired phone backfill, got %+v", res)
	}
	if len(dir.links) != 1 || dir.links[0] != "legacy-3=new-uid" {
		t.Fatalf("expected one auth uid link, got %v", dir.links)
	}

	// Second login resolves through auth_uid without another repair write.
	res2, err := ResolvePrincipal(context.Background(), dir, "new-uid", "9123456780@app.local", models.RoleOwner)
	if err != nil {
		t.Fatalf("expected second resolution, got %v", err)
	}
	if res2.Strategy != StrategyAuthUidLookup {
		t.Fatalf("expected auth uid lookup on second login, got %+v", res2)
	}
	if len(dir.links) != 1 {
		t.Fatalf("repair must be idempotent, got links %v", dir.links)
	}
}

func TestResolvePrincipal_RepairFailureDenies(t *testing.T) {
	legacy := liveOwner("legacy-3")
	legacy.PhoneNumber = "9123456780"
	dir := newFakeDirectory(legacy)
	dir.linkErr = errors.New("write failed")

	_, err := ResolvePrincipal(context.Background(), dir, "new-uid", "9123456780@app.local", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied on failed repair, got %v", err)
	}
}

func TestResolvePrincipal_RoleMismatchDenies(t *testing.T) {
	tenant := &models.User{ID: "uid-1", Role: models.RoleTenant, Deleted: utils.NewFalse()}
	dir := newFakeDirectory(tenant)

	_, err := ResolvePrincipal(context.Background(), dir, "uid-1", "", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied on role mismatch, got %v", err)
	}
}

func TestResolvePrincipal_WrongRoleAuthUidDenied(t *testing.T) {
	// The auth uid is linked to a tenant record that shares its phone digits
	// with a live owner. The linked record must win the candidate selection
	// and be denied by the role gate, not be skipped in favor of a phone
	// backfill that would re-link the uid onto the owner.
	tenant := &models.User{ID: "doc-2", Role: models.RoleTenant, Deleted: utils.NewFalse()}
	tenant.AuthUID = "firebase-uid"
	tenant.PhoneNumber = "9123456780"
	owner := liveOwner("doc-9")
	owner.PhoneNumber = "9123456780"
	dir := newFakeDirectory(tenant, owner)

	_, err := ResolvePrincipal(context.Background(), dir, "firebase-uid", "9123456780@app.local", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if len(dir.links) != 0 {
		t.Fatalf("a denied resolution must not re-link auth uid, got %v", dir.links)
	}
}

func TestResolvePrincipal_LookupErrorFailsClosed(t *testing.T) {
	dir := newFakeDirectory()
	dir.lookErr = errors.New("db down")

	_, err := ResolvePrincipal(context.Background(), dir, "uid-1", "9123456780@app.local", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied on lookup error, got %v", err)
	}
}

func TestResolvePrincipal_UnknownPrincipalDenies(t *testing.T) {
	dir := newFakeDirectory(liveOwner("someone-else"))

	_, err := ResolvePrincipal(context.Background(), dir, "uid-x", "not-a-phone@app.local", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestResolvePrincipal_MalformedEmailSkipsBackfill(t *testing.T) {
	legacy := liveOwner("legacy-3")
	legacy.PhoneNumber = "9123456780"
	dir := newFakeDirectory(legacy)

	// The local part carries the digits, but the address is not email-shaped;
	// backfill must not run on it.
	_, err := ResolvePrincipal(context.Background(), dir, "new-uid", "9123456780@localhost", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if len(dir.links) != 0 {
		t.Fatalf("no repair expected, got %v", dir.links)
	}
}

func TestResolvePrincipal_EmptyUidDenies(t *testing.T) {
	dir := newFakeDirectory(liveOwner("uid-1"))

	_, err := ResolvePrincipal(context.Background(), dir, "  ", "", models.RoleOwner)
	if !errors.Is(err, utils.ErrorAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}
