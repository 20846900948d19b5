package internal

import "context"

// ResourceClient is the typed wrapper over the Canvas REST API. Every method
// takes an explicit credential; nothing reads ambient process state.
type ResourceClient interface {
	WhoAmI(ctx context.Context, cred *Credential) (*UserIdentity, error)
	ListCourses(ctx context.Context, cred *Credential) ([]Course, error)
	ListAssignments(ctx context.Context, cred *Credential, courseID int64) ([]Assignment, error)
	ListFiles(ctx context.Context, cred *Credential, courseID int64) ([]RemoteFile, error)
	Submit(ctx context.Context, cred *Credential, req *SubmissionRequest) (*SubmissionReceipt, error)
	Download(ctx context.Context, cred *Credential, file *RemoteFile, destPath string) (int64, error)
}

// CredentialStore persists exactly one credential record
type CredentialStore interface {
	// Save validates the pair with an authenticated probe before writing;
	// a failed probe leaves the store untouched.
	Save(ctx context.Context, cred *Credential) (*UserIdentity, error)
	Load() (*Credential, error)
	Clear() error
}

// Selector presents ordered options and returns the user's choice. Pure UI;
// no network or persistence side effects.
type Selector interface {
	SelectOne(prompt string, options []string) (int, error)
	SelectMany(prompt string, options []string) ([]int, error)
}

// RateLimiter controls download bandwidth usage
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}
