package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"canvascli/internal"
	"canvascli/utils"
)

// mockClient implements internal.ResourceClient with canned data and
// per-method call counters
type mockClient struct {
	mu sync.Mutex

	courses     []internal.Course
	assignments []internal.Assignment
	files       []internal.RemoteFile

	listCoursesCalls     int32
	listAssignmentsCalls int32
	listFilesCalls       int32
	submitCalls          int32
	downloadCalls        int32

	submitReceipt *internal.SubmissionReceipt
	submitErr     error
	downloadErr   func(file *internal.RemoteFile) error
	downloaded    []int64
	progressCalls []*utils.ProgressTracker
}

func (m *mockClient) WhoAmI(ctx context.Context, cred *internal.Credential) (*internal.UserIdentity, error) {
	return &internal.UserIdentity{ID: 1, Name: "Sam Chen"}, nil
}

func (m *mockClient) ListCourses(ctx context.Context, cred *internal.Credential) ([]internal.Course, error) {
	atomic.AddInt32(&m.listCoursesCalls, 1)
	return m.courses, nil
}

func (m *mockClient) ListAssignments(ctx context.Context, cred *internal.Credential, courseID int64) ([]internal.Assignment, error) {
	atomic.AddInt32(&m.listAssignmentsCalls, 1)
	return m.assignments, nil
}

func (m *mockClient) ListFiles(ctx context.Context, cred *internal.Credential, courseID int64) ([]internal.RemoteFile, error) {
	atomic.AddInt32(&m.listFilesCalls, 1)
	return m.files, nil
}

func (m *mockClient) Submit(ctx context.Context, cred *internal.Credential, req *internal.SubmissionRequest) (*internal.SubmissionReceipt, error) {
	atomic.AddInt32(&m.submitCalls, 1)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	if m.submitReceipt != nil {
		return m.submitReceipt, nil
	}
	return &internal.SubmissionReceipt{SubmissionID: 1, AssignmentID: req.AssignmentID}, nil
}

func (m *mockClient) Download(ctx context.Context, cred *internal.Credential, file *internal.RemoteFile, destPath string) (int64, error) {
	atomic.AddInt32(&m.downloadCalls, 1)
	if m.downloadErr != nil {
		if err := m.downloadErr(file); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	m.downloaded = append(m.downloaded, file.ID)
	m.mu.Unlock()
	return file.Size, nil
}

func (m *mockClient) SetSharedProgress(tracker *utils.ProgressTracker) {
	m.mu.Lock()
	m.progressCalls = append(m.progressCalls, tracker)
	m.mu.Unlock()
}

func (m *mockClient) totalListCalls() int32 {
	return atomic.LoadInt32(&m.listCoursesCalls) +
		atomic.LoadInt32(&m.listAssignmentsCalls) +
		atomic.LoadInt32(&m.listFilesCalls)
}

// scriptedSelector answers prompts with a fixed sequence of choices
type scriptedSelector struct {
	singles []int
	multis  [][]int
	prompts []string
}

func (s *scriptedSelector) SelectOne(prompt string, options []string) (int, error) {
	s.prompts = append(s.prompts, prompt)
	if len(options) == 0 {
		return 0, internal.NewEmptySelectionError(prompt)
	}
	if len(s.singles) == 0 {
		return 0, fmt.Errorf("unexpected SelectOne(%q)", prompt)
	}
	choice := s.singles[0]
	s.singles = s.singles[1:]
	return choice, nil
}

func (s *scriptedSelector) SelectMany(prompt string, options []string) ([]int, error) {
	s.prompts = append(s.prompts, prompt)
	if len(options) == 0 {
		return nil, internal.NewEmptySelectionError(prompt)
	}
	if len(s.multis) == 0 {
		return nil, fmt.Errorf("unexpected SelectMany(%q)", prompt)
	}
	choice := s.multis[0]
	s.multis = s.multis[1:]
	return choice, nil
}

func due(t time.Time) *time.Time { return &t }

func testAssignments() []internal.Assignment {
	return []internal.Assignment{
		{ID: 10, Name: "Essay", SubmissionTypes: []string{"online_text_entry"}},
		{ID: 11, Name: "Late Lab", SubmissionTypes: []string{"online_upload"}, Submitted: true,
			DueAt: due(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{ID: 12, Name: "Project", SubmissionTypes: []string{"online_upload"},
			DueAt: due(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{ID: 13, Name: "Homework 1", SubmissionTypes: []string{"online_upload"},
			DueAt: due(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))},
		{ID: 14, Name: "Open Ended", SubmissionTypes: []string{"online_upload"}},
	}
}

func TestResolver_ExplicitIDsSkipNetwork(t *testing.T) {
	client := &mockClient{}
	resolver := NewResolver(client, &scriptedSelector{})

	ref := internal.ResourceReference{Kind: internal.RefByIDs, CourseID: 5, AssignmentID: 9}
	courseID, assignmentID, err := resolver.ResolveAssignment(context.Background(), nil, ref)
	if err != nil {
		t.Fatalf("ResolveAssignment failed: %v", err)
	}

	if courseID != 5 || assignmentID != 9 {
		t.Errorf("resolved (%d, %d), want (5, 9)", courseID, assignmentID)
	}
	if calls := client.totalListCalls(); calls != 0 {
		t.Errorf("explicit IDs triggered %d list calls, want 0", calls)
	}
}

func TestResolver_AssignmentURL(t *testing.T) {
	client := &mockClient{}
	resolver := NewResolver(client, &scriptedSelector{})

	ref := internal.ResourceReference{
		Kind:   internal.RefByURL,
		RawURL: "https://school.instructure.com/courses/123/assignments/456",
	}
	courseID, assignmentID, err := resolver.ResolveAssignment(context.Background(), nil, ref)
	if err != nil {
		t.Fatalf("ResolveAssignment failed: %v", err)
	}

	if courseID != 123 || assignmentID != 456 {
		t.Errorf("resolved (%d, %d), want (123, 456)", courseID, assignmentID)
	}
	if calls := client.totalListCalls(); calls != 0 {
		t.Errorf("full URL triggered %d list calls, want 0", calls)
	}
}

func TestResolver_MalformedURLFailsWithoutNetwork(t *testing.T) {
	client := &mockClient{}
	resolver := NewResolver(client, &scriptedSelector{})

	ref := internal.ResourceReference{
		Kind:   internal.RefByURL,
		RawURL: "https://school.instructure.com/grades",
	}
	_, _, err := resolver.ResolveAssignment(context.Background(), nil, ref)

	if !internal.IsType(err, internal.ErrURLParse) {
		t.Errorf("expected URLParse, got: %v", err)
	}
	if calls := client.totalListCalls(); calls != 0 {
		t.Errorf("malformed URL triggered %d list calls, want 0", calls)
	}
}

func TestResolver_CourseURLPromptsForAssignmentOnly(t *testing.T) {
	client := &mockClient{assignments: testAssignments()}
	selector := &scriptedSelector{singles: []int{0}}
	resolver := NewResolver(client, selector)

	ref := internal.ResourceReference{
		Kind:   internal.RefByURL,
		RawURL: "https://school.instructure.com/courses/123",
	}
	courseID, assignmentID, err := resolver.ResolveAssignment(context.Background(), nil, ref)
	if err != nil {
		t.Fatalf("ResolveAssignment failed: %v", err)
	}

	if courseID != 123 {
		t.Errorf("courseID = %d, want 123", courseID)
	}
	// First option: unsubmitted with earliest due date
	if assignmentID != 13 {
		t.Errorf("assignmentID = %d, want 13 (earliest unsubmitted)", assignmentID)
	}
	if atomic.LoadInt32(&client.listCoursesCalls) != 0 {
		t.Error("course listing fetched although the URL named the course")
	}
}

func TestResolver_InteractiveFlow(t *testing.T) {
	client := &mockClient{
		courses: []internal.Course{
			{ID: 3, Name: "Compilers", IsFavorite: true},
			{ID: 2, Name: "Algorithms"},
		},
		assignments: testAssignments(),
	}
	selector := &scriptedSelector{singles: []int{1, 2}}
	resolver := NewResolver(client, selector)

	ref := internal.ResourceReference{Kind: internal.RefInteractive}
	courseID, assignmentID, err := resolver.ResolveAssignment(context.Background(), nil, ref)
	if err != nil {
		t.Fatalf("ResolveAssignment failed: %v", err)
	}

	if courseID != 2 {
		t.Errorf("courseID = %d, want 2", courseID)
	}
	// Upload-capable assignments sorted: 13, 12, 14 (no due date), 11 (submitted)
	if assignmentID != 14 {
		t.Errorf("assignmentID = %d, want 14", assignmentID)
	}
	if len(selector.prompts) != 2 {
		t.Errorf("prompted %d times, want 2: %v", len(selector.prompts), selector.prompts)
	}
}

func TestResolver_CourseIDPromptsForAssignmentOnly(t *testing.T) {
	client := &mockClient{assignments: testAssignments()}
	selector := &scriptedSelector{singles: []int{0}}
	resolver := NewResolver(client, selector)

	ref := internal.ResourceReference{Kind: internal.RefByIDs, CourseID: 7}
	courseID, _, err := resolver.ResolveAssignment(context.Background(), nil, ref)
	if err != nil {
		t.Fatalf("ResolveAssignment failed: %v", err)
	}

	if courseID != 7 {
		t.Errorf("courseID = %d, want 7", courseID)
	}
	if atomic.LoadInt32(&client.listCoursesCalls) != 0 {
		t.Error("prompted for a course that was already supplied")
	}
}

func TestResolver_AssignmentIDWithoutCourse(t *testing.T) {
	client := &mockClient{}
	resolver := NewResolver(client, &scriptedSelector{})

	ref := internal.ResourceReference{Kind: internal.RefByIDs, AssignmentID: 9}
	_, _, err := resolver.ResolveAssignment(context.Background(), nil, ref)

	var validationErr *internal.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError, got: %v", err)
	}
}

func TestResolver_ResolveFiles_ExplicitIDs(t *testing.T) {
	client := &mockClient{
		files: []internal.RemoteFile{
			{ID: 21, Filename: "a.pdf"},
			{ID: 22, Filename: "b.pdf"},
			{ID: 23, Filename: "c.pdf"},
		},
	}
	resolver := NewResolver(client, &scriptedSelector{})

	ref := internal.ResourceReference{Kind: internal.RefByIDs, CourseID: 5}
	files, err := resolver.ResolveFiles(context.Background(), nil, ref, []int64{23, 21})
	if err != nil {
		t.Fatalf("ResolveFiles failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("resolved %d files, want 2", len(files))
	}
}

func TestResolver_ResolveFiles_UnknownID(t *testing.T) {
	client := &mockClient{
		files: []internal.RemoteFile{{ID: 21, Filename: "a.pdf"}},
	}
	resolver := NewResolver(client, &scriptedSelector{})

	ref := internal.ResourceReference{Kind: internal.RefByIDs, CourseID: 5}
	_, err := resolver.ResolveFiles(context.Background(), nil, ref, []int64{21, 99})

	if !internal.IsType(err, internal.ErrNotFound) {
		t.Errorf("expected NotFound for file 99, got: %v", err)
	}
}

func TestResolver_ResolveFiles_Interactive(t *testing.T) {
	client := &mockClient{
		courses: []internal.Course{{ID: 5, Name: "Compilers"}},
		files: []internal.RemoteFile{
			{ID: 21, Filename: "a.pdf"},
			{ID: 22, Filename: "b.pdf"},
			{ID: 23, Filename: "c.pdf"},
		},
	}
	selector := &scriptedSelector{singles: []int{0}, multis: [][]int{{2, 0}}}
	resolver := NewResolver(client, selector)

	ref := internal.ResourceReference{Kind: internal.RefInteractive}
	files, err := resolver.ResolveFiles(context.Background(), nil, ref, nil)
	if err != nil {
		t.Fatalf("ResolveFiles failed: %v", err)
	}

	// Selection order preserved
	if len(files) != 2 || files[0].ID != 23 || files[1].ID != 21 {
		t.Errorf("unexpected file set: %+v", files)
	}
}
