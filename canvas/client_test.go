package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"canvascli/internal"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	config := internal.DefaultConfig()
	config.QuietMode = true

	client, err := NewClient(config)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	// Keep retry backoff out of the test runtime
	client.rest.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

	return client
}

func testCredential(baseURL string) *internal.Credential {
	return &internal.Credential{BaseURL: baseURL, AccessToken: "tok_test"}
}

func TestClient_WhoAmI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/self" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok_test" {
			t.Errorf("unexpected Authorization header: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": 7, "name": "Sam Chen", "pronouns": "they/them",
		})
	}))
	defer server.Close()

	client := newTestClient(t)
	identity, err := client.WhoAmI(context.Background(), testCredential(server.URL))
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}

	if identity.ID != 7 || identity.Name != "Sam Chen" {
		t.Errorf("unexpected identity: %+v", identity)
	}
	if identity.DisplayName() != "Sam Chen (they/them)" {
		t.Errorf("DisplayName() = %q", identity.DisplayName())
	}
}

func TestClient_WhoAmI_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.WhoAmI(context.Background(), testCredential(server.URL))
	if !internal.IsType(err, internal.ErrAuthenticationFailed) {
		t.Errorf("expected AuthenticationFailed, got: %v", err)
	}
}

func TestClient_TransientRetryBound(t *testing.T) {
	// An always-failing server must see exactly MaxAttempts requests
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.ListCourses(context.Background(), testCredential(server.URL))

	if !internal.IsType(err, internal.ErrTransient) {
		t.Errorf("expected Transient, got: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("observed %d attempts, want exactly 3", got)
	}
}

func TestClient_PermanentFailuresAreNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.ListAssignments(context.Background(), testCredential(server.URL), 42)

	if !internal.IsType(err, internal.ErrNotFound) {
		t.Errorf("expected NotFound, got: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("observed %d attempts for a 404, want exactly 1", got)
	}
}

func TestClient_MalformedResponseIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"this is": not json`)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.ListCourses(context.Background(), testCredential(server.URL))
	if !internal.IsType(err, internal.ErrProtocol) {
		t.Errorf("expected ProtocolError, got: %v", err)
	}
}

func TestClient_ListCourses_FiltersAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 1, "name": "Old Course", "is_favorite": false, "concluded": true, "created_at": "2020-01-01T00:00:00Z"},
			{"id": 2, "name": "Algorithms", "is_favorite": false, "concluded": false, "created_at": "2023-01-01T00:00:00Z"},
			{"id": 3, "name": "Compilers", "is_favorite": true, "concluded": false, "created_at": "2024-01-01T00:00:00Z"}
		]`)
	}))
	defer server.Close()

	client := newTestClient(t)
	courses, err := client.ListCourses(context.Background(), testCredential(server.URL))
	if err != nil {
		t.Fatalf("ListCourses failed: %v", err)
	}

	if len(courses) != 2 {
		t.Fatalf("expected 2 courses after filtering concluded, got %d", len(courses))
	}
	if courses[0].ID != 3 {
		t.Errorf("favorite course should sort first, got course %d", courses[0].ID)
	}
	if courses[1].ID != 2 {
		t.Errorf("expected course 2 second, got %d", courses[1].ID)
	}
}

func TestClient_ListFiles_SortsByUpdatedAt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 11, "filename": "new.pdf", "url": "https://x/11", "size": 10, "updated_at": "2024-06-01T00:00:00Z"},
			{"id": 12, "filename": "old.pdf", "url": "https://x/12", "size": 20, "updated_at": "2024-01-01T00:00:00Z"}
		]`)
	}))
	defer server.Close()

	client := newTestClient(t)
	files, err := client.ListFiles(context.Background(), testCredential(server.URL), 5)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	if len(files) != 2 || files[0].ID != 12 || files[1].ID != 11 {
		t.Errorf("files not sorted oldest-first: %+v", files)
	}
	if files[0].CourseID != 5 {
		t.Errorf("CourseID not set on listed files: %+v", files[0])
	}
}

func TestClient_Download(t *testing.T) {
	content := "lecture notes, chapter one"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	destPath := filepath.Join(tmpDir, "notes.pdf")
	file := &internal.RemoteFile{ID: 1, Filename: "notes.pdf", URL: server.URL + "/files/1", Size: int64(len(content))}

	client := newTestClient(t)
	written, err := client.Download(context.Background(), testCredential(server.URL), file, destPath)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if written != int64(len(content)) {
		t.Errorf("wrote %d bytes, want %d", written, len(content))
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(got) != content {
		t.Errorf("downloaded content = %q, want %q", got, content)
	}

	if _, err := os.Stat(destPath + ".part"); !os.IsNotExist(err) {
		t.Error("partial file left behind after successful download")
	}
}

func TestClient_Download_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	destPath := filepath.Join(tmpDir, "gone.pdf")
	file := &internal.RemoteFile{ID: 1, Filename: "gone.pdf", URL: server.URL + "/files/1"}

	client := newTestClient(t)
	_, err := client.Download(context.Background(), testCredential(server.URL), file, destPath)
	if !internal.IsType(err, internal.ErrNotFound) {
		t.Errorf("expected NotFound, got: %v", err)
	}
	if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
		t.Error("destination file created despite failed download")
	}
}

func TestClient_Submit(t *testing.T) {
	tmpDir := t.TempDir()
	sourcePath := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(sourcePath, []byte("int main(void) { return 0; }\n"), 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/courses/1/assignments/2/submissions/self/files":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"upload_url":    server.URL + "/upload",
				"upload_params": map[string]string{"key": "submissions/main.c"},
			})
		case "/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("upload was not multipart: %v", err)
			}
			if r.FormValue("key") != "submissions/main.c" {
				t.Errorf("upload params not forwarded: %v", r.Form)
			}
			if r.Header.Get("Authorization") != "" {
				t.Error("access token leaked to the upload target")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 77})
		case "/api/v1/courses/1/assignments/2/submissions":
			if err := r.ParseForm(); err != nil {
				t.Errorf("submission form unparseable: %v", err)
			}
			if got := r.FormValue("submission[submission_type]"); got != "online_upload" {
				t.Errorf("submission_type = %q", got)
			}
			if got := r.Form["submission[file_ids][]"]; len(got) != 1 || got[0] != "77" {
				t.Errorf("file_ids = %v", got)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": 900, "assignment_id": 2, "submitted_at": "2024-05-01T12:00:00Z",
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t)
	req := &internal.SubmissionRequest{
		CourseID:     1,
		AssignmentID: 2,
		Files:        []string{sourcePath},
	}

	receipt, err := client.Submit(context.Background(), testCredential(server.URL), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if receipt.SubmissionID != 900 || receipt.AssignmentID != 2 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if len(receipt.FileIDs) != 1 || receipt.FileIDs[0] != 77 {
		t.Errorf("receipt file IDs = %v, want [77]", receipt.FileIDs)
	}
}

func TestClient_Submit_StreamsUploadThroughProgressReader(t *testing.T) {
	content := bytes.Repeat([]byte("report body "), 512)
	tmpDir := t.TempDir()
	sourcePath := filepath.Join(tmpDir, "report.pdf")
	if err := os.WriteFile(sourcePath, content, 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}

	var uploaded []byte
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/courses/1/assignments/2/submissions/self/files":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"upload_url":    server.URL + "/upload",
				"upload_params": map[string]string{},
			})
		case "/upload":
			part, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("no file part in upload: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			uploaded, _ = io.ReadAll(part)
			part.Close()
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 78})
		case "/api/v1/courses/1/assignments/2/submissions":
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 901, "assignment_id": 2})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	// Non-quiet, so the upload renders a bar and the bytes flow through the
	// progress reader rather than resty's path-based file loader
	config := internal.DefaultConfig()
	client, err := NewClient(config)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.rest.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

	req := &internal.SubmissionRequest{CourseID: 1, AssignmentID: 2, Files: []string{sourcePath}}
	receipt, err := client.Submit(context.Background(), testCredential(server.URL), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !bytes.Equal(uploaded, content) {
		t.Errorf("upload target received %d bytes, want %d", len(uploaded), len(content))
	}
	if len(receipt.FileIDs) != 1 || receipt.FileIDs[0] != 78 {
		t.Errorf("receipt file IDs = %v, want [78]", receipt.FileIDs)
	}
}

func TestClient_Download_InterruptedLeavesNoPartial(t *testing.T) {
	// Declares more bytes than it sends, so the body read fails mid-stream
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		fmt.Fprint(w, "short")
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	destPath := filepath.Join(tmpDir, "cut.pdf")
	file := &internal.RemoteFile{ID: 1, Filename: "cut.pdf", URL: server.URL + "/files/1", Size: 1000}

	client := newTestClient(t)
	_, err := client.Download(context.Background(), testCredential(server.URL), file, destPath)
	if !internal.IsType(err, internal.ErrTransient) {
		t.Errorf("expected Transient, got: %v", err)
	}

	if _, statErr := os.Stat(destPath + ".part"); !os.IsNotExist(statErr) {
		t.Error("partial file left behind after interrupted download")
	}
	if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
		t.Error("destination file created despite interrupted download")
	}
}
