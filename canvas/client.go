package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"canvascli/internal"
	"canvascli/utils"
)

// Client is a typed wrapper over the Canvas REST API. Every method takes an
// explicit credential and distinguishes Transient failures (network errors,
// timeouts, 5xx - retried with exponential backoff up to the configured
// attempt bound) from Permanent ones (4xx, malformed responses - surfaced
// immediately).
type Client struct {
	rest     *resty.Client
	upload   *resty.Client
	config   *internal.Config
	fileOps  *utils.FileOperations
	limiter  internal.RateLimiter
	progress *utils.ProgressTracker
	quiet    bool
}

// whoAmIResponse is the wire shape of GET /api/v1/users/self
type whoAmIResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Pronouns string `json:"pronouns"`
}

// courseResponse is the wire shape of a course entry
type courseResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	IsFavorite bool      `json:"is_favorite"`
	Concluded  bool      `json:"concluded"`
	CreatedAt  time.Time `json:"created_at"`
}

// assignmentResponse is the wire shape of an assignment entry
type assignmentResponse struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	DueAt           *time.Time `json:"due_at"`
	SubmissionTypes []string   `json:"submission_types"`
	Submitted       bool       `json:"has_submitted_submissions"`
}

// fileResponse is the wire shape of a course file entry
type fileResponse struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// uploadSlotResponse is the wire shape of the first step of the Canvas file
// upload handshake
type uploadSlotResponse struct {
	UploadURL    string            `json:"upload_url"`
	UploadParams map[string]string `json:"upload_params"`
}

// uploadedFileResponse is returned by the upload target after the multipart POST
type uploadedFileResponse struct {
	ID int64 `json:"id"`
}

// submissionResponse is the wire shape of a created submission
type submissionResponse struct {
	ID           int64      `json:"id"`
	AssignmentID int64      `json:"assignment_id"`
	SubmittedAt  *time.Time `json:"submitted_at"`
}

// NewClient creates a Canvas API client from the given configuration
func NewClient(config *internal.Config) (*Client, error) {
	transport, err := utils.NewTransport(config.ProxyURL)
	if err != nil {
		return nil, err
	}

	rest := resty.New().
		SetTransport(transport).
		SetTimeout(time.Duration(config.DefaultTimeout) * time.Second).
		SetRetryCount(config.MaxAttempts - 1).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry only Transient failures: network errors and 5xx.
			// 4xx is Permanent and must surface immediately.
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() >= 500
		})

	// Upload bodies stream through a progress reader and cannot be replayed,
	// so the upload client never retries; a failed upload surfaces immediately
	// with the failing file named.
	upload := resty.New().
		SetTransport(transport).
		SetTimeout(time.Duration(config.DefaultTimeout) * time.Second)

	return &Client{
		rest:    rest,
		upload:  upload,
		config:  config,
		fileOps: utils.NewFileOperations(),
		quiet:   config.QuietMode,
	}, nil
}

// SetRateLimit caps download bandwidth in bytes per second
func (c *Client) SetRateLimit(bytesPerSecond int64) {
	c.limiter = utils.NewTokenBucketLimiter(bytesPerSecond)
}

// SetSharedProgress routes transfer progress for subsequent downloads through
// one shared tracker instead of a per-file bar. Pass nil to restore per-file
// bars.
func (c *Client) SetSharedProgress(tracker *utils.ProgressTracker) {
	c.progress = tracker
}

// WhoAmI issues the lightweight authenticated probe used to validate a credential
func (c *Client) WhoAmI(ctx context.Context, cred *internal.Credential) (*internal.UserIdentity, error) {
	body, err := c.get(ctx, cred, fmt.Sprintf("%s/api/v1/users/self", cred.BaseURL), nil)
	if err != nil {
		// A rejected probe is an authentication failure, not a generic 4xx
		if internal.IsType(err, internal.ErrNotFound) {
			return nil, internal.NewAuthenticationFailedError(404, "instance URL does not look like a Canvas API endpoint")
		}
		return nil, err
	}

	var decoded whoAmIResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, internal.NewProtocolError(fmt.Sprintf("malformed identity response: %v", err))
	}
	if decoded.Name == "" {
		return nil, internal.NewProtocolError("identity response is missing a name")
	}

	return &internal.UserIdentity{
		ID:       decoded.ID,
		Name:     decoded.Name,
		Pronouns: decoded.Pronouns,
	}, nil
}

// ListCourses fetches the user's active courses, favorites first.
// Concluded courses are filtered out.
func (c *Client) ListCourses(ctx context.Context, cred *internal.Credential) ([]internal.Course, error) {
	params := map[string]string{
		"per_page":  fmt.Sprintf("%d", c.config.PageSize),
		"include[]": "favorites",
	}
	body, err := c.get(ctx, cred, fmt.Sprintf("%s/api/v1/courses", cred.BaseURL), params)
	if err != nil {
		return nil, err
	}

	var decoded []courseResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, internal.NewProtocolError(fmt.Sprintf("malformed course list: %v", err))
	}

	courses := make([]internal.Course, 0, len(decoded))
	for _, entry := range decoded {
		if entry.Concluded {
			continue
		}
		courses = append(courses, internal.Course{
			ID:         entry.ID,
			Name:       entry.Name,
			IsFavorite: entry.IsFavorite,
			Concluded:  entry.Concluded,
			CreatedAt:  entry.CreatedAt,
		})
	}

	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].IsFavorite != courses[j].IsFavorite {
			return courses[i].IsFavorite
		}
		return courses[i].CreatedAt.Before(courses[j].CreatedAt)
	})

	internal.LogDebug("Fetched %d active courses", len(courses))
	return courses, nil
}

// ListAssignments fetches the assignments of one course
func (c *Client) ListAssignments(ctx context.Context, cred *internal.Credential, courseID int64) ([]internal.Assignment, error) {
	params := map[string]string{"per_page": fmt.Sprintf("%d", c.config.PageSize)}
	body, err := c.get(ctx, cred, fmt.Sprintf("%s/api/v1/courses/%d/assignments", cred.BaseURL, courseID), params)
	if err != nil {
		return nil, err
	}

	var decoded []assignmentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, internal.NewProtocolError(fmt.Sprintf("malformed assignment list: %v", err))
	}

	assignments := make([]internal.Assignment, 0, len(decoded))
	for _, entry := range decoded {
		assignments = append(assignments, internal.Assignment{
			ID:              entry.ID,
			CourseID:        courseID,
			Name:            entry.Name,
			DueAt:           entry.DueAt,
			SubmissionTypes: entry.SubmissionTypes,
			Submitted:       entry.Submitted,
		})
	}

	internal.LogDebug("Fetched %d assignments for course %d", len(assignments), courseID)
	return assignments, nil
}

// ListFiles fetches the downloadable files of one course, oldest first
func (c *Client) ListFiles(ctx context.Context, cred *internal.Credential, courseID int64) ([]internal.RemoteFile, error) {
	params := map[string]string{"per_page": fmt.Sprintf("%d", c.config.PageSize)}
	body, err := c.get(ctx, cred, fmt.Sprintf("%s/api/v1/courses/%d/files", cred.BaseURL, courseID), params)
	if err != nil {
		return nil, err
	}

	var decoded []fileResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, internal.NewProtocolError(fmt.Sprintf("malformed file list: %v", err))
	}

	files := make([]internal.RemoteFile, 0, len(decoded))
	for _, entry := range decoded {
		files = append(files, internal.RemoteFile{
			ID:        entry.ID,
			CourseID:  courseID,
			Filename:  entry.Filename,
			URL:       entry.URL,
			Size:      entry.Size,
			UpdatedAt: entry.UpdatedAt,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UpdatedAt.Before(files[j].UpdatedAt)
	})

	internal.LogDebug("Fetched %d files for course %d", len(files), courseID)
	return files, nil
}

// Submit uploads the request's files in order and creates one submission
// referencing all of them. Canvas acknowledges uploads per file, but the
// submission itself is a single call: if any upload fails, the submission is
// never created and the failing file is named in the error.
func (c *Client) Submit(ctx context.Context, cred *internal.Credential, req *internal.SubmissionRequest) (*internal.SubmissionReceipt, error) {
	fileIDs := make([]int64, 0, len(req.Files))
	for _, path := range req.Files {
		fileID, err := c.uploadFile(ctx, cred, req, path)
		if err != nil {
			return nil, fmt.Errorf("upload of %s failed: %w", path, err)
		}
		internal.LogInfo("Uploaded %s as file %d", path, fileID)
		fileIDs = append(fileIDs, fileID)
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetFormDataFromValues(submissionForm(fileIDs)).
		Post(fmt.Sprintf("%s/api/v1/courses/%d/assignments/%d/submissions", cred.BaseURL, req.CourseID, req.AssignmentID))
	if err := c.checkResponse(resp, err); err != nil {
		return nil, err
	}

	var decoded submissionResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, internal.NewProtocolError(fmt.Sprintf("malformed submission response: %v", err))
	}

	receipt := &internal.SubmissionReceipt{
		SubmissionID: decoded.ID,
		AssignmentID: req.AssignmentID,
		FileIDs:      fileIDs,
	}
	if decoded.SubmittedAt != nil {
		receipt.SubmittedAt = *decoded.SubmittedAt
	}

	return receipt, nil
}

// uploadFile performs the Canvas two-step upload handshake for one file:
// request an upload slot, then POST the bytes to the returned target.
func (c *Client) uploadFile(ctx context.Context, cred *internal.Credential, req *internal.SubmissionRequest, path string) (int64, error) {
	size, err := c.fileOps.GetFileSize(path)
	if err != nil {
		return 0, internal.NewValidationError("file", fmt.Sprintf("cannot stat %s: %v", path, err))
	}

	slotResp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetFormData(map[string]string{
			"name": filepath.Base(path),
			"size": fmt.Sprintf("%d", size),
		}).
		Post(fmt.Sprintf("%s/api/v1/courses/%d/assignments/%d/submissions/self/files", cred.BaseURL, req.CourseID, req.AssignmentID))
	if err := c.checkResponse(slotResp, err); err != nil {
		return 0, err
	}

	var slot uploadSlotResponse
	if err := json.Unmarshal(slotResp.Body(), &slot); err != nil || slot.UploadURL == "" {
		return 0, internal.NewProtocolError("malformed upload slot response")
	}

	handle, err := os.Open(path)
	if err != nil {
		return 0, internal.NewValidationError("file", fmt.Sprintf("cannot read file %s: %v", path, err))
	}
	defer handle.Close()

	// The upload target is pre-authorized by upload_params; the access token
	// must not be sent to it.
	tracker := utils.NewProgressTracker(filepath.Base(path), size, c.quiet)
	uploadResp, err := c.upload.R().
		SetContext(ctx).
		SetFormData(slot.UploadParams).
		SetFileReader("file", filepath.Base(path), tracker.Reader(handle)).
		Post(slot.UploadURL)
	tracker.Finish()
	if err := c.checkResponse(uploadResp, err); err != nil {
		return 0, err
	}

	var uploaded uploadedFileResponse
	if err := json.Unmarshal(uploadResp.Body(), &uploaded); err != nil || uploaded.ID == 0 {
		return 0, internal.NewProtocolError("upload target returned no file ID")
	}

	return uploaded.ID, nil
}

// Download streams one remote file to destPath. The bytes land in a .part
// file that is renamed only after the stream completed, so an interrupted
// download never leaves a truncated file under the final name.
func (c *Client) Download(ctx context.Context, cred *internal.Credential, file *internal.RemoteFile, destPath string) (int64, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetDoNotParseResponse(true).
		Get(file.URL)
	if err := c.checkResponse(resp, err); err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return 0, err
	}
	defer resp.RawBody().Close()

	partPath := destPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return 0, internal.NewValidationError("output", fmt.Sprintf("cannot create %s: %v", partPath, err))
	}

	// Concurrent downloads share one tracker so their bars do not fight over
	// the terminal; a lone download gets its own per-file bar.
	tracker := c.progress
	ownTracker := tracker == nil
	if ownTracker {
		tracker = utils.NewProgressTracker(file.Filename, file.Size, c.quiet)
	}
	reader := tracker.Reader(resp.RawBody())
	if c.limiter != nil {
		reader = utils.LimitedReader(ctx, reader, c.limiter)
	}

	written, copyErr := io.Copy(out, reader)
	closeErr := out.Close()
	if ownTracker {
		tracker.Finish()
	}

	if copyErr != nil || closeErr != nil {
		c.fileOps.CleanupPartial(destPath)
		if copyErr == nil {
			copyErr = closeErr
		}
		if errors.Is(copyErr, context.Canceled) {
			return 0, copyErr
		}
		return 0, internal.NewTransientError(0, fmt.Sprintf("download of %s interrupted: %v", file.Filename, copyErr))
	}

	if err := c.fileOps.AtomicRename(partPath, destPath); err != nil {
		c.fileOps.CleanupPartial(destPath)
		return 0, fmt.Errorf("failed to finalize %s: %w", destPath, err)
	}

	return written, nil
}

// get issues an authenticated GET and returns the raw body on 2xx
func (c *Client) get(ctx context.Context, cred *internal.Credential, endpoint string, params map[string]string) ([]byte, error) {
	request := c.rest.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetHeader("Accept", "application/json")
	if params != nil {
		request.SetQueryParams(params)
	}

	resp, err := request.Get(endpoint)
	if err := c.checkResponse(resp, err); err != nil {
		return nil, err
	}

	return resp.Body(), nil
}

// checkResponse folds transport errors and HTTP status codes into the error
// taxonomy. Runs after resty's retry loop, so a Transient error here means
// the attempt bound was exhausted.
func (c *Client) checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return internal.NewTransientError(0, fmt.Sprintf("request failed: %v", err))
	}

	if resp.IsError() {
		statusCode := resp.StatusCode()
		errorType := internal.ClassifyStatus(statusCode)
		message := fmt.Sprintf("Canvas returned %s", resp.Status())
		return internal.NewCanvasError(statusCode, message, errorType)
	}

	return nil
}

// submissionForm builds the form body of the final submission call
func submissionForm(fileIDs []int64) url.Values {
	values := url.Values{
		"submission[submission_type]": {"online_upload"},
	}
	for _, id := range fileIDs {
		values.Add("submission[file_ids][]", fmt.Sprintf("%d", id))
	}
	return values
}
