// Package transfer copies files and folders between the local filesystem and
// a store, and deletes store objects.
//
// Folder transfers fan out over a bounded number of goroutines. A transfer
// runs until it completes or the first object fails; objects already copied
// are not rolled back.
package transfer

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/localfs"
	"github.com/slmtnm/s3ranger/internal/logger"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
)

// DefaultConcurrency is the number of objects copied in parallel.
const DefaultConcurrency = 4

// Report summarises a finished transfer.
type Report struct {
	Objects int
	Bytes   uint64
}

// Engine runs transfers against one store client.
type Engine struct {
	client      store.Client
	concurrency int
	log         *logger.Logger
}

// New creates an engine. concurrency below one selects DefaultConcurrency.
func New(client store.Client, concurrency int, log *logger.Logger) *Engine {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{client: client, concurrency: concurrency, log: log}
}

type counter struct {
	objects atomic.Int64
	bytes   atomic.Uint64
}

func (c *counter) add(n uint64) {
	c.objects.Add(1)
	c.bytes.Add(n)
}

func (c *counter) report() Report {
	return Report{Objects: int(c.objects.Load()), Bytes: c.bytes.Load()}
}

// Download copies loc into destDir. A file lands at destDir/<name>; a folder
// is recreated as destDir/<folder name>/... with directory markers skipped.
func (e *Engine) Download(ctx context.Context, loc pathkey.Location, destDir string) (Report, error) {
	if loc.IsZero() {
		return Report{}, errs.New(errs.KindInvalidInput, "nothing selected to download")
	}
	destDir, err := localfs.ExpandHome(destDir)
	if err != nil {
		return Report{}, err
	}

	log := e.log.With().Str("source", loc.String()).Str("dest", destDir).Logger()
	var c counter

	if !loc.IsFolder() {
		target := filepath.Join(destDir, loc.Name())
		if err := e.downloadOne(ctx, loc, target, &c); err != nil {
			log.ErrorWith("download failed", err, nil)
			return c.report(), err
		}
		log.Info("file downloaded")
		return c.report(), nil
	}

	records, err := store.Drain(ctx, e.client, loc.Bucket, loc.Key)
	if err != nil {
		return Report{}, err
	}

	type job struct {
		src    pathkey.Location
		target string
	}
	root := filepath.Join(destDir, loc.Name())
	jobs := make([]job, 0, len(records))
	for _, r := range records {
		rel := strings.TrimPrefix(r.Key, loc.Key)
		if rel == "" || strings.HasSuffix(rel, pathkey.Separator) {
			continue
		}
		target, err := within(root, rel)
		if err != nil {
			return Report{}, err
		}
		jobs = append(jobs, job{src: pathkey.New(loc.Bucket, r.Key), target: target})
	}

	// A target may not also be another target's file or ancestor directory.
	owners := make(map[string]string, len(jobs))
	for _, j := range jobs {
		if prev, ok := owners[j.target]; ok {
			return Report{}, pathClash(prev, j.src.Key)
		}
		owners[j.target] = j.src.Key
	}
	for _, j := range jobs {
		for dir := filepath.Dir(j.target); dir != root; dir = filepath.Dir(dir) {
			if prev, ok := owners[dir]; ok {
				return Report{}, pathClash(prev, j.src.Key)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			return e.downloadOne(gctx, j.src, j.target, &c)
		})
	}
	if err := g.Wait(); err != nil {
		log.ErrorWith("folder download failed", err, map[string]interface{}{"objects": c.report().Objects})
		return c.report(), err
	}

	rep := c.report()
	if rep.Objects == 0 {
		return rep, errs.Newf(errs.KindNotFound, "no objects under %s", loc)
	}
	log.InfoWith("folder downloaded", map[string]interface{}{"objects": rep.Objects, "bytes": rep.Bytes})
	return rep, nil
}

func (e *Engine) downloadOne(ctx context.Context, loc pathkey.Location, target string, c *counter) error {
	body, err := e.client.GetObject(ctx, loc)
	if err != nil {
		return err
	}
	defer body.Close()

	n, err := localfs.WriteFile(target, body)
	if err != nil {
		return err
	}
	c.add(uint64(n))
	return nil
}

// within joins a slash-separated key remainder onto root and rejects results
// that escape root.
func within(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	back, err := filepath.Rel(root, target)
	if err != nil || back == "." || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", errs.Newf(errs.KindInvalidInput, "object key %q escapes the destination directory", rel)
	}
	return target, nil
}

func pathClash(a, b string) error {
	return errs.Newf(errs.KindInvalidInput, "object keys %q and %q map to the same local path", a, b)
}

// Upload copies localPath into the folder dest. A file becomes
// dest.Key+<basename>; a directory is uploaded under dest.Key+<dir name>/.
func (e *Engine) Upload(ctx context.Context, localPath string, dest pathkey.Location) (Report, error) {
	if dest.IsZero() {
		return Report{}, errs.New(errs.KindInvalidInput, "no destination bucket")
	}
	if !dest.IsFolder() {
		return Report{}, errs.Newf(errs.KindInvalidInput, "upload destination %s is not a folder", dest)
	}
	localPath, err := localfs.ExpandHome(localPath)
	if err != nil {
		return Report{}, err
	}
	info, err := localfs.Stat(localPath)
	if err != nil {
		return Report{}, err
	}

	log := e.log.With().Str("source", localPath).Str("dest", dest.String()).Logger()
	var c counter

	if !info.IsDir {
		key := pathkey.New(dest.Bucket, dest.Key+filepath.Base(localPath))
		if err := e.uploadOne(ctx, localPath, info.Size, key, &c); err != nil {
			log.ErrorWith("upload failed", err, nil)
			return c.report(), err
		}
		log.Info("file uploaded")
		return c.report(), nil
	}

	entries, err := localfs.Walk(localPath)
	if err != nil {
		return Report{}, err
	}
	prefix := dest.Key + filepath.Base(filepath.Clean(localPath)) + pathkey.Separator

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, ent := range entries {
		key := pathkey.New(dest.Bucket, prefix+ent.Rel)
		g.Go(func() error {
			return e.uploadOne(gctx, ent.Path, ent.Size, key, &c)
		})
	}
	if err := g.Wait(); err != nil {
		log.ErrorWith("folder upload failed", err, map[string]interface{}{"objects": c.report().Objects})
		return c.report(), err
	}

	rep := c.report()
	log.InfoWith("folder uploaded", map[string]interface{}{"objects": rep.Objects, "bytes": rep.Bytes})
	return rep, nil
}

func (e *Engine) uploadOne(ctx context.Context, path string, size int64, dest pathkey.Location, c *counter) error {
	f, err := localfs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := e.client.PutObject(ctx, dest, f, size); err != nil {
		return err
	}
	c.add(uint64(size))
	return nil
}

// Delete removes a file, or every object under a folder.
func (e *Engine) Delete(ctx context.Context, loc pathkey.Location) (Report, error) {
	log := e.log.With().Str("target", loc.String()).Logger()

	if !loc.IsFolder() {
		if err := e.client.DeleteObject(ctx, loc); err != nil {
			log.ErrorWith("delete failed", err, nil)
			return Report{}, err
		}
		log.Info("file deleted")
		return Report{Objects: 1}, nil
	}

	n, err := store.DeletePrefix(ctx, e.client, loc)
	if err != nil {
		log.ErrorWith("folder delete failed", err, map[string]interface{}{"objects": n})
		return Report{Objects: n}, err
	}
	log.InfoWith("folder deleted", map[string]interface{}{"objects": n})
	return Report{Objects: n}, nil
}
