package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

// Source is a folder of messages sharing one label
type Source struct {
	Dir   string
	Label core.Label
}

// Failure records a message that could not be turned into a row
type Failure struct {
	Path string
	Err  error
}

// Summary reports the outcome of a build
type Summary struct {
	Processed int
	Failed    int
	Failures  []Failure
	PerLabel  map[core.Label]int
}

// Extractor is the part of the feature extractor the builder needs
type Extractor interface {
	ExtractRaw(raw []byte) (core.FeatureVector, error)
}

// Options tune a Builder
type Options struct {
	Workers    int
	Seed       int64
	Extensions []string
	Progress   bool
}

// Builder extracts feature rows from labelled folders
type Builder struct {
	extractor Extractor
	logger    *zap.Logger
	opts      Options
}

// NewBuilder creates a dataset builder
func NewBuilder(extractor Extractor, logger *zap.Logger, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".eml", ".mbox"}
	}
	return &Builder{extractor: extractor, logger: logger, opts: opts}
}

type job struct {
	path  string
	label core.Label
}

type result struct {
	row Row
	err error
}

// Build walks every source, extracts one row per message and returns the rows
// shuffled with the configured seed. A message that fails is counted and
// skipped, it never aborts the batch.
func (b *Builder) Build(ctx context.Context, sources []Source) ([]Row, Summary, error) {
	var files []job
	for _, src := range sources {
		found, err := b.listFiles(src)
		if err != nil {
			return nil, Summary{}, err
		}
		b.logger.Info("Scanning source folder",
			zap.String("dir", src.Dir),
			zap.Int("label", int(src.Label)),
			zap.Int("files", len(found)))
		files = append(files, found...)
	}

	var bar *progressbar.ProgressBar
	if b.opts.Progress {
		bar = progressbar.Default(int64(len(files)), "extracting")
	}

	results := make([][]result, len(files))
	wp := workerpool.New(b.opts.Workers)
	var mu sync.Mutex
	cancelled := false

	for i, j := range files {
		i, j := i, j
		wp.Submit(func() {
			if ctx.Err() != nil {
				mu.Lock()
				cancelled = true
				mu.Unlock()
				return
			}
			results[i] = b.process(j)
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	}
	wp.StopWait()

	if cancelled {
		return nil, Summary{}, fmt.Errorf("dataset build cancelled: %w", ctx.Err())
	}

	summary := Summary{PerLabel: make(map[core.Label]int)}
	var rows []Row
	for _, rs := range results {
		for _, r := range rs {
			if r.err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{Path: r.row.Source, Err: r.err})
				b.logger.Warn("Skipping message", zap.String("path", r.row.Source), zap.Error(r.err))
				continue
			}
			summary.Processed++
			summary.PerLabel[r.row.Label]++
			rows = append(rows, r.row)
		}
	}

	Shuffle(rows, b.opts.Seed)

	b.logger.Info("Dataset build finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed))

	return rows, summary, nil
}

// process extracts every message of one file
func (b *Builder) process(j job) []result {
	raw, err := os.ReadFile(j.path)
	if err != nil {
		return []result{{row: Row{Source: j.path}, err: fmt.Errorf("failed to read file: %w", err)}}
	}

	if !strings.EqualFold(filepath.Ext(j.path), ".mbox") {
		return []result{b.extract(raw, j.path, j.label)}
	}

	messages := SplitMbox(raw)
	out := make([]result, 0, len(messages))
	for i, msg := range messages {
		out = append(out, b.extract(msg, fmt.Sprintf("%s#%d", j.path, i), j.label))
	}
	return out
}

func (b *Builder) extract(raw []byte, source string, label core.Label) result {
	vec, err := b.extractor.ExtractRaw(raw)
	if err != nil {
		return result{row: Row{Source: source}, err: err}
	}
	return result{row: Row{Vector: vec, Label: label, Source: source}}
}

// listFiles returns the matching files under a source in lexical order
func (b *Builder) listFiles(src Source) ([]job, error) {
	var out []job
	err := filepath.WalkDir(src.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !b.matches(path) {
			return nil
		}
		out = append(out, job{path: path, label: src.Label})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", src.Dir, err)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].path < out[k].path })
	return out, nil
}

func (b *Builder) matches(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range b.opts.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Shuffle permutes rows in place, deterministically for a seed
func Shuffle(rows []Row, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})
}
