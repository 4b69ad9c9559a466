package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"pluginright/internal/metrics"
)

// Job is a generation request read from a JSON file in a jobs directory.
type Job struct {
	File string
	Request
}

// BatchResult is the outcome of one job
type BatchResult struct {
	Job    Job
	Result *Result
	Err    error
}

// Job parsing errors
var (
	ErrInvalidJSON        = errors.New("invalid json")
	ErrMissingDescription = errors.New("missing description")
)

// Candidate paths for each job field, probed left to right.
var (
	pathsName        = []string{"name", "Name"}
	pathsDescription = []string{"description", "Description", "user_prompt", "prompt", "user", "User"}
	pathsMetadata    = []string{"metadata", "metadata_yaml"}
	pathsEntity      = []string{"entity", "Entity"}
	pathsMessage     = []string{"message", "Message"}
	pathsStage       = []string{"stage", "Stage"}
	pathsMode        = []string{"mode", "Mode"}
	pathsNamespace   = []string{"namespace", "Namespace"}
)

func probe(body []byte, paths []string) gjson.Result {
	for _, path := range paths {
		res := gjson.GetBytes(body, path)
		if res.Exists() {
			return res
		}
	}
	return gjson.Result{}
}

// ParseJob extracts a Request from a job document. Metadata may be given as a
// YAML string or as a JSON object, which is re-encoded as YAML. The plugin
// registration fields (entity, message, stage, mode, namespace) are optional.
func ParseJob(body []byte) (Request, error) {
	if !gjson.ValidBytes(body) {
		return Request{}, ErrInvalidJSON
	}

	req := Request{
		Name:         probe(body, pathsName).String(),
		Description:  strings.TrimSpace(probe(body, pathsDescription).String()),
		Registration: Registration{
			Entity:    probe(body, pathsEntity).String(),
			Message:   probe(body, pathsMessage).String(),
			Stage:     int(probe(body, pathsStage).Int()),
			Mode:      probe(body, pathsMode).String(),
			Namespace: probe(body, pathsNamespace).String(),
		},
	}
	if req.Description == "" {
		return Request{}, ErrMissingDescription
	}

	meta := probe(body, pathsMetadata)
	switch {
	case !meta.Exists():
	case meta.Type == gjson.String:
		req.Metadata = meta.String()
	case meta.IsObject() || meta.IsArray():
		out, err := yaml.Marshal(meta.Value())
		if err != nil {
			return Request{}, fmt.Errorf("encode metadata: %w", err)
		}
		req.Metadata = string(out)
	}
	return req, nil
}

// LoadJobs reads every *.json file in dir, sorted by file name. Files that
// cannot be parsed are skipped with a warning.
func LoadJobs(dir string) ([]Job, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	sort.Strings(paths)

	var jobs []Job
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skip job", "file", path, "error", err)
			metrics.BatchJobsSkipped.WithLabelValues("read_error").Inc()
			continue
		}
		req, err := ParseJob(body)
		if err != nil {
			slog.Warn("skip job", "file", path, "error", err)
			reason := "invalid_json"
			if errors.Is(err, ErrMissingDescription) {
				reason = "missing_description"
			}
			metrics.BatchJobsSkipped.WithLabelValues(reason).Inc()
			continue
		}
		if req.Name == "" {
			req.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		jobs = append(jobs, Job{File: path, Request: req})
	}
	return jobs, nil
}

// RunBatch generates every job in dir with at most concurrency requests in
// flight. A failed job does not stop the others; results keep job order.
func (g *Generator) RunBatch(ctx context.Context, dir string, concurrency int) ([]BatchResult, error) {
	jobs, err := LoadJobs(dir)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no jobs found in %s", dir)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	slog.Info("batch started", "jobs", len(jobs), "concurrency", concurrency)

	results := make([]BatchResult, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for i, job := range jobs {
		eg.Go(func() error {
			res, err := g.Generate(egCtx, job.Request)
			if err != nil {
				slog.Error("job failed", "file", job.File, "error", err)
			}
			results[i] = BatchResult{Job: job, Result: res, Err: err}
			// Best effort: one failure must not cancel the rest
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
