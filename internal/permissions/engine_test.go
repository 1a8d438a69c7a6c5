package permissions_test

import (
	"testing"

	"tramita/internal/permissions"
	"tramita/internal/store"
)

func activeUser(id string, role store.Role, workspace store.Workspace) *store.User {
	return &store.User{ID: id, Role: role, Workspace: workspace, Active: true}
}

func TestAdministratorWildcard(t *testing.T) {
	engine := permissions.NewEngine(nil)
	admin := activeUser("admin", store.RoleAdministrator, store.WorkspacePresidencia)
	doc := &store.Document{ID: "d-1", Workspace: store.WorkspaceCAM, Status: store.StatusPendingApproval}

	for _, cap := range []permissions.Capability{
		permissions.CapabilityRead,
		permissions.CapabilityWrite,
		permissions.CapabilityApprove,
		permissions.CapabilityArchive,
		permissions.CapabilityManage,
	} {
		if !engine.HasCapability(admin, cap, doc) {
			t.Fatalf("administrator should hold %s", cap)
		}
	}
}

func TestInactiveActorAlwaysDenied(t *testing.T) {
	engine := permissions.NewEngine(nil)
	user := &store.User{ID: "u-1", Role: store.RoleAdministrator, Active: false}

	if engine.HasCapability(user, permissions.CapabilityRead, nil) {
		t.Fatal("inactive user must be denied")
	}
	if engine.HasCapability(nil, permissions.CapabilityRead, nil) {
		t.Fatal("nil actor must be denied")
	}
}

func TestWorkspaceConfinement(t *testing.T) {
	engine := permissions.NewEngine(nil)
	secretary := activeUser("sec", store.RoleSecretario, store.WorkspaceCAM)

	own := &store.Document{ID: "d-1", Workspace: store.WorkspaceCAM, Status: store.StatusPendingReview, CreatedBy: "other"}
	foreign := &store.Document{ID: "d-2", Workspace: store.WorkspaceAMPP, Status: store.StatusPendingReview, CreatedBy: "other"}

	if !engine.HasCapability(secretary, permissions.CapabilityWrite, own) {
		t.Fatal("secretary should write in own workspace")
	}
	if engine.HasCapability(secretary, permissions.CapabilityWrite, foreign) {
		t.Fatal("secretary must not write outside own workspace")
	}
}

func TestGlobalRolesCrossWorkspaces(t *testing.T) {
	engine := permissions.NewEngine(nil)
	president := activeUser("pres", store.RolePresidente, store.WorkspacePresidencia)
	doc := &store.Document{ID: "d-1", Workspace: store.WorkspaceIntendencia, Status: store.StatusPendingApproval, CreatedBy: "other"}

	if !engine.HasCapability(president, permissions.CapabilityApprove, doc) {
		t.Fatal("presidente should approve across workspaces")
	}
}

func TestOwnershipOverride(t *testing.T) {
	engine := permissions.NewEngine(nil)
	clerk := activeUser("clerk", store.RoleFuncionario, store.WorkspaceCAM)

	editable := &store.Document{ID: "d-1", Workspace: store.WorkspaceAMPP, Status: store.StatusDraft, CreatedBy: "clerk"}
	locked := &store.Document{ID: "d-2", Workspace: store.WorkspaceAMPP, Status: store.StatusPublished, CreatedBy: "clerk"}

	if !engine.HasCapability(clerk, permissions.CapabilityWrite, editable) {
		t.Fatal("creator should keep write rights while document is editable")
	}
	if engine.HasCapability(clerk, permissions.CapabilityWrite, locked) {
		t.Fatal("ownership override must not apply once document leaves an editable status")
	}
}

func TestOwnershipNeverGrantsApprove(t *testing.T) {
	engine := permissions.NewEngine(nil)
	clerk := activeUser("clerk", store.RoleFuncionario, store.WorkspaceCAM)
	doc := &store.Document{ID: "d-1", Workspace: store.WorkspaceCAM, Status: store.StatusDraft, CreatedBy: "clerk"}

	if engine.HasCapability(clerk, permissions.CapabilityApprove, doc) {
		t.Fatal("approval must require a role grant, never ownership")
	}
}

func TestCFMemberCannotApprove(t *testing.T) {
	engine := permissions.NewEngine(nil)
	member := activeUser("mem", store.RoleCFMember, store.WorkspaceComisionesCF)
	doc := &store.Document{ID: "d-1", Workspace: store.WorkspaceComisionesCF, Status: store.StatusPendingApproval, CreatedBy: "other"}

	if engine.HasCapability(member, permissions.CapabilityApprove, doc) {
		t.Fatal("cf_member must not hold approve even inside its workspace")
	}
}

func TestNilDocumentChecksRoleGrantOnly(t *testing.T) {
	engine := permissions.NewEngine(nil)
	secretary := activeUser("sec", store.RoleSecretario, store.WorkspaceCAM)

	if !engine.HasCapability(secretary, permissions.CapabilityNotify, nil) {
		t.Fatal("secretary should hold notify")
	}
	if engine.HasCapability(secretary, permissions.CapabilityManage, nil) {
		t.Fatal("secretary must not hold manage")
	}
}

func TestReviewerRolesCanReject(t *testing.T) {
	engine := permissions.NewEngine(nil)
	doc := &store.Document{ID: "d-1", Workspace: store.WorkspaceCAM, Status: store.StatusPendingReview, CreatedBy: "other"}

	secretary := activeUser("sec", store.RoleSecretario, store.WorkspaceCAM)
	if !engine.HasCapability(secretary, permissions.CapabilityApprove, doc) {
		t.Fatal("secretario reviews submissions and must hold approve in its workspace")
	}

	foreign := activeUser("sec-2", store.RoleSecretario, store.WorkspaceAMPP)
	if engine.HasCapability(foreign, permissions.CapabilityApprove, doc) {
		t.Fatal("secretario approve stays confined to its own workspace")
	}
}
