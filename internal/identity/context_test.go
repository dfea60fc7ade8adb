package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestActorRoundTrip(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: RoleStaff, ClinicID: uuid.New()}
	ctx := WithActor(context.Background(), actor)

	got, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if got.ID != actor.ID || got.Role != RoleStaff || got.ClinicID != actor.ClinicID {
		t.Fatalf("actor mismatch: %+v", got)
	}
}

func TestActorMissing(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor on empty context")
	}
}

func TestRoleHelpers(t *testing.T) {
	if !(Actor{Role: RoleParent}).IsParent() {
		t.Error("IsParent")
	}
	if !(Actor{Role: RoleStaff}).IsStaff() {
		t.Error("IsStaff")
	}
	if !(Actor{Role: RoleAdmin}).IsAdmin() {
		t.Error("IsAdmin")
	}
	if (Actor{Role: RoleParent}).IsAdmin() {
		t.Error("parent must not be admin")
	}
}
