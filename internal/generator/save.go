package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/datasetgen/internal/config"
	"github.com/roach88/datasetgen/internal/day"
	"github.com/roach88/datasetgen/internal/ledger"
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/tracefile"
)

// ManifestName is the name of the run manifest written next to the outputs.
const ManifestName = "manifest.yaml"

// ErrIncompleteRun is returned by Save after a failed or cancelled run.
var ErrIncompleteRun = errors.New("run did not complete")

// Manifest describes a saved run. It makes output with skipped days
// self-describing as incomplete.
type Manifest struct {
	RunID       string         `yaml:"run_id"`
	Fingerprint string         `yaml:"fingerprint"`
	Function    string         `yaml:"function"`
	Kwargs      map[string]any `yaml:"kwargs"`
	Seed        uint64         `yaml:"seed"`
	NumDays     int            `yaml:"num_days"`
	NumReqXDay  string         `yaml:"num_req_x_day"`
	StartDate   string         `yaml:"start_date"`
	Format      string         `yaml:"format"`
	Partition   string         `yaml:"partition"`
	OnDayError  string         `yaml:"on_day_error"`
	Status      string         `yaml:"status"`
	Complete    bool           `yaml:"complete"`
	Skipped     []int          `yaml:"skipped_days"`
	TotRequests int            `yaml:"tot_num_requests"`
	Files       []ManifestFile `yaml:"files"`
}

// ManifestFile is one output of a run.
type ManifestFile struct {
	Name string `yaml:"name"`
	Rows int64  `yaml:"rows"`
	URI  string `yaml:"uri,omitempty"`
}

// ReadManifest loads a manifest written by Save.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Save persists the trace under the destination folder, one file per day or
// a single combined file depending on the partition, followed by the
// manifest. Every file is recorded in the ledger and, when a publisher is
// set, published. Failed writes are retried up to SaveAttempts times and
// then returned as *IOError; the generated days stay intact so Save can be
// called again. It returns the paths written.
func (g *Generator) Save(ctx context.Context) ([]string, error) {
	if g.fn == nil || g.days == nil {
		return nil, ErrNotPrepared
	}
	if g.status != ledger.StatusComplete && g.status != ledger.StatusPartial {
		return nil, fmt.Errorf("save run %s: %w (status %s)", g.runID, ErrIncompleteRun, g.status)
	}
	if err := g.openLedger(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(g.opts.DestFolder, 0o755); err != nil {
		return nil, &IOError{Op: "save", Path: g.opts.DestFolder, Err: err}
	}

	var files []ManifestFile
	switch g.opts.Partition {
	case config.PartitionCombined:
		f, err := g.writeOutput(ctx, tracefile.CombinedFileName(g.opts.Format), g.scan)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	default:
		for _, d := range g.Days() {
			f, err := g.writeOutput(ctx, tracefile.DayFileName(d.Date(), g.opts.Format), d.Scan)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}

	paths := make([]string, 0, len(files)+1)
	for i := range files {
		path := filepath.Join(g.opts.DestFolder, files[i].Name)
		uri, err := g.publish(ctx, path, files[i].Name)
		if err != nil {
			return nil, err
		}
		files[i].URI = uri
		paths = append(paths, path)
	}

	mpath, err := g.writeManifest(ctx, files)
	if err != nil {
		return nil, err
	}
	if _, err := g.publish(ctx, mpath, ManifestName); err != nil {
		return nil, err
	}
	paths = append(paths, mpath)

	g.logger.Info("saved",
		"run", g.runID,
		"dest", g.opts.DestFolder,
		"format", g.opts.Format,
		"partition", g.opts.Partition,
		"files", len(files),
	)
	return paths, nil
}

// writeOutput writes the rows produced by scan to dest/name.
func (g *Generator) writeOutput(ctx context.Context, name string, scan func(context.Context, func(record.Request) error) error) (ManifestFile, error) {
	path := filepath.Join(g.opts.DestFolder, name)
	var rows int64
	err := g.retry(ctx, "save", path, func() error {
		rows = 0
		w, err := tracefile.Create(path, g.opts.Format)
		if err != nil {
			return err
		}
		err = scan(ctx, func(r record.Request) error {
			rows++
			return w.Write(r)
		})
		if err != nil {
			_ = w.Abort()
			return err
		}
		return w.Close()
	})
	if err != nil {
		return ManifestFile{}, err
	}

	if info, err := os.Stat(path); err == nil {
		g.metrics.ObserveSaved(string(g.opts.Format), info.Size())
	}
	if err := g.ledger.RecordFile(ctx, ledger.File{Path: g.rel(path), RunID: g.runID, Kind: ledger.KindOutput, Rows: rows}); err != nil {
		return ManifestFile{}, err
	}
	g.logger.Debug("wrote output", "path", path, "rows", rows)
	return ManifestFile{Name: name, Rows: rows}, nil
}

func (g *Generator) manifest(files []ManifestFile) *Manifest {
	skipped := g.Skipped()
	if skipped == nil {
		skipped = []int{}
	}
	return &Manifest{
		RunID:       g.runID,
		Fingerprint: g.fingerprint,
		Function:    g.fn.Name(),
		Kwargs:      map[string]any(g.params),
		Seed:        g.seed,
		NumDays:     g.opts.NumDays,
		NumReqXDay:  g.fn.NumReqXDay().String(),
		StartDate:   g.opts.StartDate.UTC().Format(record.DateLayout),
		Format:      string(g.opts.Format),
		Partition:   g.opts.Partition,
		OnDayError:  g.opts.OnDayError,
		Status:      string(g.status),
		Complete:    g.status == ledger.StatusComplete,
		Skipped:     skipped,
		TotRequests: g.TotNumRequests(),
		Files:       files,
	}
}

func (g *Generator) writeManifest(ctx context.Context, files []ManifestFile) (string, error) {
	path := filepath.Join(g.opts.DestFolder, ManifestName)
	data, err := yaml.Marshal(g.manifest(files))
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	err = g.retry(ctx, "save", path, func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return err
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := g.ledger.RecordFile(ctx, ledger.File{Path: g.rel(path), RunID: g.runID, Kind: ledger.KindManifest}); err != nil {
		return "", err
	}
	return path, nil
}

// publish uploads path when a publisher is set and records the object.
func (g *Generator) publish(ctx context.Context, path, name string) (string, error) {
	if g.publisher == nil {
		return "", nil
	}
	var uri string
	err := g.retry(ctx, "publish", path, func() error {
		var err error
		uri, err = g.publisher.Publish(ctx, path, name)
		return err
	})
	if err != nil {
		return "", err
	}
	if err := g.ledger.RecordFile(ctx, ledger.File{Path: uri, RunID: g.runID, Kind: ledger.KindRemote}); err != nil {
		return "", err
	}
	g.logger.Debug("published", "path", path, "uri", uri)
	return uri, nil
}

// retry runs fn up to SaveAttempts times with exponential backoff.
func (g *Generator) retry(ctx context.Context, op, path string, fn func() error) error {
	var err error
	for attempt := 0; attempt < g.opts.SaveAttempts; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying", "op", op, "path", path, "attempt", attempt+1, "error", err)
			g.sleep(backoff(attempt - 1))
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(); err == nil {
			return nil
		}
		g.metrics.ObserveSaveError(op)
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return 100 * time.Millisecond << attempt
}

// Clean deletes every file recorded in the destination ledger (spill parts,
// outputs, the manifest and published objects), then the ledger itself and
// the spool directory once empty, and drops the in-memory days. Files the
// ledger does not know about are never touched. Cleaning a clean
// destination is a no-op.
func (g *Generator) Clean(ctx context.Context) error {
	g.reset()
	if g.ledger == nil {
		if _, err := os.Stat(g.ledgerPath); errors.Is(err, fs.ErrNotExist) {
			return g.removeSpool()
		}
		if err := g.openLedger(); err != nil {
			return err
		}
	}

	files, err := g.ledger.Files(ctx)
	if err != nil {
		return err
	}
	for i := len(files) - 1; i >= 0; i-- {
		if err := g.removeFile(ctx, files[i]); err != nil {
			return err
		}
	}
	runs, err := g.ledger.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		if err := g.ledger.DeleteRun(ctx, r.ID); err != nil {
			return err
		}
	}

	if err := g.Close(); err != nil {
		return &IOError{Op: "clean", Path: g.ledgerPath, Err: err}
	}
	for _, p := range []string{g.ledgerPath, g.ledgerPath + "-wal", g.ledgerPath + "-shm"} {
		if err := removeIfExists(p); err != nil {
			return &IOError{Op: "clean", Path: p, Err: err}
		}
	}
	if err := g.removeSpool(); err != nil {
		return err
	}
	g.logger.Info("cleaned", "dest", g.opts.DestFolder, "files", len(files), "runs", len(runs))
	return nil
}

// removeRunFiles deletes the files of one run.
func (g *Generator) removeRunFiles(ctx context.Context, runID string) error {
	files, err := g.ledger.RunFiles(ctx, runID)
	if err != nil {
		return err
	}
	for i := len(files) - 1; i >= 0; i-- {
		if err := g.removeFile(ctx, files[i]); err != nil {
			return err
		}
	}
	return nil
}

// removeFile deletes a recorded file and forgets it. A file already gone is
// not an error.
func (g *Generator) removeFile(ctx context.Context, f ledger.File) error {
	if f.Kind == ledger.KindRemote {
		if g.publisher == nil {
			return &IOError{Op: "clean", Path: f.Path, Err: errors.New("no publisher configured for remote object")}
		}
		if err := g.publisher.Remove(ctx, f.Path); err != nil {
			return &IOError{Op: "clean", Path: f.Path, Err: err}
		}
	} else if err := removeIfExists(g.abs(f.Path)); err != nil {
		return &IOError{Op: "clean", Path: f.Path, Err: err}
	}
	return g.ledger.ForgetFile(ctx, f.Path)
}

func (g *Generator) removeSpool() error {
	if err := g.spool.RemoveIfEmpty(); err != nil {
		return &IOError{Op: "clean", Path: g.spool.Dir(), Err: err}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// rel returns path relative to the destination folder, as stored in the
// ledger, so a destination can be moved as a whole.
func (g *Generator) rel(path string) string {
	r, err := filepath.Rel(g.opts.DestFolder, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

func (g *Generator) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(g.opts.DestFolder, filepath.FromSlash(rel))
}

// ledgerSink writes spill parts to the spool and records them in the
// ledger under the current run.
type ledgerSink struct {
	g     *Generator
	runID string
}

func (g *Generator) partSink() day.PartSink {
	return &ledgerSink{g: g, runID: g.runID}
}

func (s *ledgerSink) WritePart(ctx context.Context, date time.Time, seq int, rows []record.Request) (string, error) {
	path, err := s.g.spool.WritePart(ctx, date, seq, rows)
	if err != nil {
		return "", err
	}
	f := ledger.File{Path: s.g.rel(path), RunID: s.runID, Kind: ledger.KindPart, Rows: int64(len(rows))}
	if err := s.g.ledger.RecordFile(ctx, f); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	s.g.metrics.ObserveFlushes(1)
	return path, nil
}

func (s *ledgerSink) ReadPart(ctx context.Context, path string, fn func(record.Request) error) error {
	return s.g.spool.ReadPart(ctx, path, fn)
}
