package canvas

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/fatih/color"

	"canvascli/internal"
	"canvascli/utils"
)

// Stage identifies where a pipeline invocation currently is. Each invocation
// moves Resolving -> Confirming -> Executing -> Reporting and terminates in
// Succeeded or Failed.
type Stage int

const (
	StageResolving Stage = iota
	StageConfirming
	StageExecuting
	StageReporting
)

// String returns the string representation of a Stage
func (s Stage) String() string {
	switch s {
	case StageResolving:
		return "Resolving"
	case StageConfirming:
		return "Confirming"
	case StageExecuting:
		return "Executing"
	case StageReporting:
		return "Reporting"
	default:
		return "Unknown"
	}
}

// Pipeline drives the end-to-end submit and download operations: resolve
// identifiers, confirm local preconditions, execute through the client, and
// report a per-item summary.
type Pipeline struct {
	client   internal.ResourceClient
	resolver *Resolver
	fileOps  *utils.FileOperations
	config   *internal.Config
	out      io.Writer
}

// NewPipeline creates a pipeline writing its summary to out
func NewPipeline(client internal.ResourceClient, resolver *Resolver, config *internal.Config, out io.Writer) *Pipeline {
	return &Pipeline{
		client:   client,
		resolver: resolver,
		fileOps:  utils.NewFileOperations(),
		config:   config,
		out:      out,
	}
}

// Submit resolves the target assignment and uploads the files as one logical
// submission. Every local file is validated before any network call is made;
// a bad path never triggers a partial upload.
func (p *Pipeline) Submit(ctx context.Context, cred *internal.Credential, ref internal.ResourceReference, files []string) error {
	// Confirming runs first for local inputs: an empty or unreadable file
	// list must fail before Resolving can touch the network.
	internal.LogDebug("Pipeline stage: %s", StageConfirming)
	if len(files) == 0 {
		return internal.NewValidationError("files", "no files to submit").
			WithSuggestion("Pass at least one file: canvas-cli submit main.c report.pdf")
	}
	for _, path := range files {
		if err := p.fileOps.ValidateSubmissionFile(path); err != nil {
			return err
		}
	}

	internal.LogDebug("Pipeline stage: %s", StageResolving)
	courseID, assignmentID, err := p.resolver.ResolveAssignment(ctx, cred, ref)
	if err != nil {
		return err
	}

	internal.LogDebug("Pipeline stage: %s", StageExecuting)
	req := &internal.SubmissionRequest{
		CourseID:     courseID,
		AssignmentID: assignmentID,
		Files:        files,
	}
	receipt, err := p.client.Submit(ctx, cred, req)
	if err != nil {
		return err
	}

	internal.LogDebug("Pipeline stage: %s", StageReporting)
	fmt.Fprintf(p.out, "%s Submitted %d file(s) to assignment %d (submission %d)\n",
		okMark(), len(receipt.FileIDs), receipt.AssignmentID, receipt.SubmissionID)

	return nil
}

// Download resolves the target file set and fetches each file with a bounded
// worker pool. One file's failure never aborts the others; all outcomes are
// collected and reported, and the returned error reflects whether any item
// failed.
func (p *Pipeline) Download(ctx context.Context, cred *internal.Credential, ref internal.ResourceReference, fileIDs []int64, outputDir string) error {
	internal.LogDebug("Pipeline stage: %s", StageConfirming)
	if err := p.fileOps.EnsureWritableDir(outputDir); err != nil {
		return err
	}

	internal.LogDebug("Pipeline stage: %s", StageResolving)
	files, err := p.resolver.ResolveFiles(ctx, cred, ref, fileIDs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(p.out, "No files selected")
		return nil
	}

	internal.LogDebug("Pipeline stage: %s (%d files, %d workers)", StageExecuting, len(files), p.config.DownloadWorkers)
	results := p.downloadAll(ctx, cred, files, outputDir)

	internal.LogDebug("Pipeline stage: %s", StageReporting)
	return p.report(results)
}

// progressSink is implemented by clients whose transfer progress can be
// routed through one shared tracker
type progressSink interface {
	SetSharedProgress(tracker *utils.ProgressTracker)
}

// downloadAll fans the file set out to a bounded worker pool and collects
// one result per file, in input order
func (p *Pipeline) downloadAll(ctx context.Context, cred *internal.Credential, files []internal.RemoteFile, outputDir string) []internal.DownloadResult {
	workers := p.config.DownloadWorkers
	if workers > len(files) {
		workers = len(files)
	}

	// With several workers writing bars at once the terminal garbles, so a
	// multi-file batch renders one aggregate bar over the total byte count
	if sink, ok := p.client.(progressSink); ok && len(files) > 1 {
		var total int64
		for _, file := range files {
			total += file.Size
		}
		tracker := utils.NewProgressTracker(fmt.Sprintf("%d files", len(files)), total, p.config.QuietMode)
		sink.SetSharedProgress(tracker)
		defer func() {
			tracker.Finish()
			sink.SetSharedProgress(nil)
		}()
	}

	type job struct {
		index int
		file  internal.RemoteFile
	}

	jobs := make(chan job)
	results := make([]internal.DownloadResult, len(files))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				destPath := filepath.Join(outputDir, j.file.Filename)
				written, err := p.client.Download(ctx, cred, &j.file, destPath)
				results[j.index] = internal.DownloadResult{
					File:         j.file,
					Path:         destPath,
					BytesWritten: written,
					Err:          err,
				}
			}
		}()
	}

	for i, file := range files {
		jobs <- job{index: i, file: file}
	}
	close(jobs)
	wg.Wait()

	return results
}

// report prints the per-file summary and returns an error if any item failed
func (p *Pipeline) report(results []internal.DownloadResult) error {
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			fmt.Fprintf(p.out, "%s %s: %v\n", failMark(), result.File.Filename, result.Err)
			continue
		}
		fmt.Fprintf(p.out, "%s %s (%s) -> %s\n",
			okMark(), result.File.Filename, internal.FormatBytes(result.BytesWritten), result.Path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed to download", failed, len(results))
	}

	fmt.Fprintf(p.out, "%s Downloaded %d file(s)\n", okMark(), len(results))
	return nil
}

func okMark() string {
	return color.GreenString("✓")
}

func failMark() string {
	return color.RedString("✗")
}
