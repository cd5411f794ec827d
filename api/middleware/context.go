package middleware

import (
	"context"

	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
)

type (
	staffKey      struct{}
	credentialKey struct{}
)

// Staff is the verified admin or payment caller behind a request.
type Staff struct {
	Subject string
	Role    enums.StaffRole
}

func WithStaff(ctx context.Context, subject string, role enums.StaffRole) context.Context {
	return context.WithValue(ctx, staffKey{}, Staff{Subject: subject, Role: role})
}

// StaffFromContext is false on guest routes.
func StaffFromContext(ctx context.Context) (Staff, bool) {
	if ctx == nil {
		return Staff{}, false
	}
	staff, ok := ctx.Value(staffKey{}).(Staff)
	return staff, ok
}

func SubjectFromContext(ctx context.Context) string {
	staff, _ := StaffFromContext(ctx)
	return staff.Subject
}

func RoleFromContext(ctx context.Context) enums.StaffRole {
	staff, _ := StaffFromContext(ctx)
	return staff.Role
}

// ActorFromContext is the outbox actor for staff callers and nil for guests.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	staff, ok := StaffFromContext(ctx)
	if !ok || (staff.Subject == "" && staff.Role == "") {
		return nil
	}
	return &outbox.ActorRef{Subject: staff.Subject, Role: staff.Role.String()}
}

func WithGuestCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// GuestCredentialFromContext returns the raw X-Guest-Session value.
func GuestCredentialFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	credential, _ := ctx.Value(credentialKey{}).(string)
	return credential
}
