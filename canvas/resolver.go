package canvas

import (
	"context"
	"fmt"
	"sort"

	"canvascli/internal"
	"canvascli/utils"
)

// Resolver collapses a ResourceReference into concrete identifiers. This is
// the single point where the three reference kinds (explicit IDs, pasted
// URL, interactive) converge; nothing downstream sees an unresolved target.
//
// Explicit IDs are passed through without remote validation - an invalid ID
// surfaces as NotFound from the actual API call. Interactive prompting is
// scoped to exactly the missing pieces; supplied information is never asked
// for again.
type Resolver struct {
	client   internal.ResourceClient
	selector internal.Selector
	parser   *utils.CanvasURLParser
}

// NewResolver creates a resolver using the given client and selector
func NewResolver(client internal.ResourceClient, selector internal.Selector) *Resolver {
	return &Resolver{
		client:   client,
		selector: selector,
		parser:   utils.NewCanvasURLParser(),
	}
}

// ResolveAssignment produces the (course, assignment) pair targeted by a
// submit operation
func (r *Resolver) ResolveAssignment(ctx context.Context, cred *internal.Credential, ref internal.ResourceReference) (courseID, assignmentID int64, err error) {
	switch ref.Kind {
	case internal.RefByURL:
		info, err := r.parser.Parse(ref.RawURL)
		if err != nil {
			return 0, 0, err
		}
		if info.HasAssignment() {
			return info.CourseID, info.AssignmentID, nil
		}
		// Course-only URL: prompt for just the assignment
		assignmentID, err = r.pickAssignment(ctx, cred, info.CourseID)
		return info.CourseID, assignmentID, err

	case internal.RefByIDs:
		if ref.CourseID > 0 && ref.AssignmentID > 0 {
			return ref.CourseID, ref.AssignmentID, nil
		}
		if ref.CourseID > 0 {
			assignmentID, err = r.pickAssignment(ctx, cred, ref.CourseID)
			return ref.CourseID, assignmentID, err
		}
		// An assignment flag without a course cannot be addressed in the API
		return 0, 0, internal.NewValidationError("course",
			"an assignment ID requires a course ID").
			WithSuggestion("Pass -c <course-id> alongside -a, or paste the assignment URL")

	case internal.RefInteractive:
		courseID, err = r.pickCourse(ctx, cred)
		if err != nil {
			return 0, 0, err
		}
		assignmentID, err = r.pickAssignment(ctx, cred, courseID)
		return courseID, assignmentID, err

	default:
		return 0, 0, fmt.Errorf("unknown reference kind: %v", ref.Kind)
	}
}

// ResolveFiles produces the file set targeted by a download operation.
// Explicit file IDs filter the course listing; otherwise the user picks
// interactively.
func (r *Resolver) ResolveFiles(ctx context.Context, cred *internal.Credential, ref internal.ResourceReference, fileIDs []int64) ([]internal.RemoteFile, error) {
	courseID := ref.CourseID

	if ref.Kind == internal.RefByURL {
		info, err := r.parser.Parse(ref.RawURL)
		if err != nil {
			return nil, err
		}
		courseID = info.CourseID
	}

	if courseID == 0 {
		picked, err := r.pickCourse(ctx, cred)
		if err != nil {
			return nil, err
		}
		courseID = picked
	}

	files, err := r.client.ListFiles(ctx, cred, courseID)
	if err != nil {
		return nil, err
	}

	if len(fileIDs) > 0 {
		wanted := make(map[int64]bool, len(fileIDs))
		for _, id := range fileIDs {
			wanted[id] = true
		}

		var matched []internal.RemoteFile
		for _, file := range files {
			if wanted[file.ID] {
				matched = append(matched, file)
				delete(wanted, file.ID)
			}
		}
		for id := range wanted {
			return nil, internal.NewNotFoundError("file", id)
		}
		return matched, nil
	}

	options := make([]string, len(files))
	for i, file := range files {
		options[i] = file.Label()
	}

	indices, err := r.selector.SelectMany("Files?", options)
	if err != nil {
		return nil, err
	}

	selected := make([]internal.RemoteFile, len(indices))
	for i, idx := range indices {
		selected[i] = files[idx]
	}
	return selected, nil
}

// pickCourse lists courses and asks the user for one
func (r *Resolver) pickCourse(ctx context.Context, cred *internal.Credential) (int64, error) {
	courses, err := r.client.ListCourses(ctx, cred)
	if err != nil {
		return 0, err
	}

	options := make([]string, len(courses))
	for i, course := range courses {
		options[i] = course.Label()
	}

	idx, err := r.selector.SelectOne("Course?", options)
	if err != nil {
		return 0, err
	}

	internal.LogInfo("Selected course %d", courses[idx].ID)
	return courses[idx].ID, nil
}

// pickAssignment lists a course's upload assignments and asks the user for
// one. Unsubmitted assignments sort first, then by due date; assignments
// without a due date go last.
func (r *Resolver) pickAssignment(ctx context.Context, cred *internal.Credential, courseID int64) (int64, error) {
	assignments, err := r.client.ListAssignments(ctx, cred, courseID)
	if err != nil {
		return 0, err
	}

	var uploadable []internal.Assignment
	for _, assignment := range assignments {
		if assignment.AcceptsUploads() {
			uploadable = append(uploadable, assignment)
		}
	}

	sortAssignments(uploadable)

	options := make([]string, len(uploadable))
	for i, assignment := range uploadable {
		options[i] = assignment.Label()
	}

	idx, err := r.selector.SelectOne("Assignment?", options)
	if err != nil {
		return 0, err
	}

	internal.LogInfo("Selected assignment %d", uploadable[idx].ID)
	return uploadable[idx].ID, nil
}

func sortAssignments(assignments []internal.Assignment) {
	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.Submitted != b.Submitted {
			return !a.Submitted
		}
		if a.DueAt == nil {
			return false
		}
		if b.DueAt == nil {
			return true
		}
		return a.DueAt.Before(*b.DueAt)
	})
}
