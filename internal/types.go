package internal

import (
	"fmt"
	"time"
)

// Credential is the persisted (instance URL, access token) pair that
// authorizes every API call. It is overwritten whole on re-authentication.
type Credential struct {
	BaseURL     string `json:"base_url" mapstructure:"base_url"`
	AccessToken string `json:"access_token" mapstructure:"access_token"`
}

// Validate checks the structural invariants of a credential
func (c *Credential) Validate() error {
	if c.BaseURL == "" {
		return NewValidationError("base_url", "instance URL cannot be empty")
	}
	if c.AccessToken == "" {
		return NewValidationError("access_token", "access token cannot be empty")
	}
	return nil
}

// UserIdentity is the result of the authentication probe (GET /users/self)
type UserIdentity struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Pronouns string `json:"pronouns,omitempty"`
}

// DisplayName returns the identity formatted for terminal output
func (u *UserIdentity) DisplayName() string {
	if u.Pronouns != "" {
		return fmt.Sprintf("%s (%s)", u.Name, u.Pronouns)
	}
	return u.Name
}

// Course is an immutable per-invocation snapshot of a Canvas course
type Course struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	IsFavorite bool      `json:"is_favorite"`
	Concluded  bool      `json:"concluded"`
	CreatedAt  time.Time `json:"created_at"`
}

// Label returns the course name decorated with its favorite marker
func (c *Course) Label() string {
	if c.IsFavorite {
		return c.Name + " ★"
	}
	return c.Name
}

// Assignment belongs to exactly one course
type Assignment struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course_id"`
	Name            string     `json:"name"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	SubmissionTypes []string   `json:"submission_types"`
	Submitted       bool       `json:"submitted"`
}

// AcceptsUploads reports whether the assignment accepts file uploads
func (a *Assignment) AcceptsUploads() bool {
	for _, t := range a.SubmissionTypes {
		if t == "online_upload" {
			return true
		}
	}
	return false
}

// Label returns the assignment name decorated with its submission marker
func (a *Assignment) Label() string {
	if a.Submitted {
		return a.Name + " ✓"
	}
	return a.Name
}

// RemoteFile is a downloadable file attached to a course
type RemoteFile struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Label returns the filename with a human-readable size suffix
func (f *RemoteFile) Label() string {
	return fmt.Sprintf("%s (%s)", f.Filename, FormatBytes(f.Size))
}

// ReferenceKind discriminates the ResourceReference union
type ReferenceKind int

const (
	// RefByIDs carries explicit numeric identifiers from CLI flags
	RefByIDs ReferenceKind = iota
	// RefByURL carries a pasted Canvas URL to be parsed
	RefByURL
	// RefInteractive means the user will be prompted for missing pieces
	RefInteractive
)

// String returns the string representation of a ReferenceKind
func (k ReferenceKind) String() string {
	switch k {
	case RefByIDs:
		return "ByIDs"
	case RefByURL:
		return "ByURL"
	case RefInteractive:
		return "Interactive"
	default:
		return "Unknown"
	}
}

// ResourceReference is the unresolved target of a submit or download
// operation. It lives only for one command invocation and is collapsed into
// concrete identifiers at a single point, inside the resolver.
type ResourceReference struct {
	Kind         ReferenceKind
	CourseID     int64 // valid for RefByIDs when > 0
	AssignmentID int64 // valid for RefByIDs when > 0
	RawURL       string
}

// SubmissionRequest describes one logical multi-file submission
type SubmissionRequest struct {
	CourseID     int64
	AssignmentID int64
	Files        []string // local paths, submitted in the order supplied
}

// SubmissionReceipt is returned by the remote API after a submission
type SubmissionReceipt struct {
	SubmissionID int64     `json:"id"`
	AssignmentID int64     `json:"assignment_id"`
	FileIDs      []int64   `json:"file_ids"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// DownloadResult is one entry of the download pipeline's per-file report
type DownloadResult struct {
	File         RemoteFile
	Path         string
	BytesWritten int64
	Err          error
}

// FormatBytes formats a byte count into a human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
