package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/me-in-moments/internal/config"
	"github.com/kozaktomas/me-in-moments/internal/constants"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
	"github.com/kozaktomas/me-in-moments/internal/imageproc"
	"github.com/kozaktomas/me-in-moments/internal/matcher"
	"github.com/kozaktomas/me-in-moments/internal/workspace"
)

// RunsHandler handles matching run endpoints
type RunsHandler struct {
	config     *config.Config
	jobManager *JobManager
	matcher    *matcher.Matcher
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(cfg *config.Config, jm *JobManager, source facematch.EmbeddingSource) *RunsHandler {
	return &RunsHandler{
		config:     cfg,
		jobManager: jm,
		matcher:    matcher.New(source),
	}
}

// MatchView is a match record as returned by the API.
type MatchView struct {
	facematch.MatchRecord
	BBoxRel []float64 `json:"bbox_rel,omitempty"` // [x, y, w, h] relative to image size
}

// MatchesResponse is the filtered result of a run.
type MatchesResponse struct {
	JobID     string      `json:"job_id"`
	Threshold float64     `json:"threshold"`
	Total     int         `json:"total"`
	Matched   int         `json:"matched"`
	Matches   []MatchView `json:"matches"`
}

// removeWorkspace deletes the files of a job, logging failures.
func removeWorkspace(job *MatchJob) {
	if job.workspace == nil {
		return
	}
	if err := job.workspace.Remove(); err != nil {
		log.Printf("Warning: failed to remove workspace of job %s: %v", job.ID, err)
	}
}

// saveUpload stores one multipart file in the workspace and returns its path
// and original name.
func saveUpload(fh *multipart.FileHeader, save func(string, io.Reader) (string, error)) (string, string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("%w: open upload %s: %v", facematch.ErrStorageFailure, sanitizeForLog(fh.Filename), err)
	}
	defer file.Close()

	path, err := save(fh.Filename, file)
	if err != nil {
		return "", "", err
	}
	return path, workspace.OriginalName(fh.Filename), nil
}

// Start accepts a reference image and target images and starts a run.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	maxSize := h.config.Web.MaxUploadSize
	if maxSize <= 0 {
		maxSize = constants.MaxUploadSize
	}
	if r.ContentLength > maxSize {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(constants.MultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	refFiles := r.MultipartForm.File["reference"]
	if len(refFiles) != 1 {
		respondError(w, http.StatusBadRequest, "exactly one reference image is required")
		return
	}
	targetFiles := r.MultipartForm.File["targets[]"]
	if len(targetFiles) == 0 {
		targetFiles = r.MultipartForm.File["targets"]
	}
	if len(targetFiles) == 0 {
		respondError(w, http.StatusBadRequest, "at least one target image is required")
		return
	}

	exts := h.config.Workspace.Extensions
	if len(exts) == 0 {
		exts = workspace.DefaultExtensions
	}
	for _, fh := range append([]*multipart.FileHeader{refFiles[0]}, targetFiles...) {
		if !workspace.HasImageExtension(fh.Filename, exts) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type: %s", workspace.OriginalName(fh.Filename)))
			return
		}
	}

	ws, err := workspace.NewTemp(h.config.Workspace.Dir, exts)
	if err != nil {
		log.Printf("Failed to create workspace: %v", err)
		respondRunError(w, err)
		return
	}

	refPath, refName, err := saveUpload(refFiles[0], ws.SaveReference)
	if err != nil {
		ws.Remove()
		respondRunError(w, err)
		return
	}

	targets := make([]matcher.Target, 0, len(targetFiles))
	for _, fh := range targetFiles {
		path, name, err := saveUpload(fh, ws.SaveTarget)
		if err != nil {
			ws.Remove()
			respondRunError(w, err)
			return
		}
		targets = append(targets, matcher.Target{Path: path, Name: name})
	}

	jobID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	job := h.jobManager.CreateJob(jobID, ws, refPath, refName, targets, cancel)

	log.Printf("Starting run %s: reference %s, %d targets", jobID, sanitizeForLog(refName), len(targets))
	go h.runMatchJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       jobID,
		"reference":    refName,
		"total_images": len(targets),
		"status":       string(JobStatusPending),
	})
}

// runMatchJob runs the match job in the background
func (h *RunsHandler) runMatchJob(ctx context.Context, job *MatchJob) {
	defer job.cancel()

	job.mu.Lock()
	if job.Status != JobStatusPending {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Matching started"})

	result, err := h.matcher.Run(ctx, job.refPath, job.targets, matcher.Options{
		OnProgress: func(info matcher.ProgressInfo) {
			if info.Phase != matcher.PhaseTarget {
				return
			}
			job.setProgress(info)
			job.SendEvent(JobEvent{
				Type: "progress",
				Data: map[string]any{
					"current":          info.Current,
					"total":            info.Total,
					"name":             info.Name,
					"processed_images": info.Current,
					"total_images":     info.Total,
				},
			})
		},
	})

	if err != nil {
		if ctx.Err() != nil {
			job.mu.Lock()
			job.Status = JobStatusCancelled
			job.finish()
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
			return
		}
		log.Printf("Run %s failed: %v", job.ID, sanitizeForLog(err.Error()))
		job.fail(err)
		job.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
		return
	}

	job.complete(result)
	job.SendEvent(JobEvent{
		Type:    "completed",
		Message: "Matching completed",
		Data: map[string]any{
			"total":   len(result.Matches),
			"matched": len(result.Filter(h.config.Match.DefaultThreshold)),
		},
	})
}

// lookupJob writes a 404 and returns nil when the job does not exist.
func (h *RunsHandler) lookupJob(w http.ResponseWriter, r *http.Request) *MatchJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// completedResult returns the result of a finished job, or writes the
// matching error response.
func (h *RunsHandler) completedResult(w http.ResponseWriter, job *MatchJob) *matcher.Result {
	result, err := job.Result()
	switch status := job.GetStatus(); {
	case err != nil:
		respondRunError(w, err)
		return nil
	case status == JobStatusCancelled:
		respondError(w, http.StatusConflict, "job was cancelled")
		return nil
	case status != JobStatusCompleted || result == nil:
		respondError(w, http.StatusConflict, "job is not completed yet")
		return nil
	}
	return result
}

// threshold parses the threshold query parameter; any real number is valid.
func (h *RunsHandler) threshold(r *http.Request) (float64, error) {
	s := r.URL.Query().Get("threshold")
	if s == "" {
		return h.config.Match.DefaultThreshold, nil
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q", s)
	}
	return t, nil
}

// List returns all known runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.Snapshot())
	}
	respondJSON(w, http.StatusOK, views)
}

// Status returns the status of a run
func (h *RunsHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams run events via SSE
func (h *RunsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*MatchJob).Snapshot()
		},
	)
}

// Matches returns the records of a completed run below the threshold.
func (h *RunsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	t, err := h.threshold(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	result := h.completedResult(w, job)
	if result == nil {
		return
	}

	filtered := result.Filter(t)
	views := make([]MatchView, 0, len(filtered))
	for _, record := range filtered {
		views = append(views, toMatchView(record))
	}

	respondJSON(w, http.StatusOK, MatchesResponse{
		JobID:     job.ID,
		Threshold: t,
		Total:     len(result.Matches),
		Matched:   len(filtered),
		Matches:   views,
	})
}

func toMatchView(record facematch.MatchRecord) MatchView {
	view := MatchView{MatchRecord: record}
	if len(record.BBox) != 4 {
		return view
	}
	width, height, err := imageproc.Dimensions(record.ImagePath)
	if err != nil {
		return view
	}
	view.BBoxRel = facematch.BoxToRelative(record.BBox, width, height)
	return view
}

// Archive sends the images of a completed run below the threshold as a zip.
func (h *RunsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	t, err := h.threshold(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	result := h.completedResult(w, job)
	if result == nil {
		return
	}

	filtered := result.Filter(t)
	outPath := filepath.Join(job.workspace.OutputDir, uuid.NewString()+"-"+workspace.ArchiveName)
	if err := workspace.WriteArchiveFile(outPath, filtered); err != nil {
		log.Printf("Failed to build archive for run %s: %v", job.ID, err)
		respondRunError(w, err)
		return
	}
	defer os.Remove(outPath)

	f, err := os.Open(outPath) //nolint:gosec // path inside the job workspace
	if err != nil {
		respondRunError(w, fmt.Errorf("%w: %v", facematch.ErrStorageFailure, err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		respondRunError(w, fmt.Errorf("%w: %v", facematch.ErrStorageFailure, err))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+workspace.ArchiveName+`"`)
	w.Header().Set("X-Match-Count", strconv.Itoa(len(filtered)))
	http.ServeContent(w, r, workspace.ArchiveName, info.ModTime(), f)
}

// Delete cancels a run if needed and removes it with its files.
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if !h.jobManager.DeleteJob(jobID) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
