package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/aqw/HTCrystalBall/internal/observability"
)

const DefaultSource = "config/slots.json"

// Source yields a slot inventory snapshot. Implementations never hand out
// data they keep a reference to.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
	String() string
}

type Options struct {
	Logger      zerolog.Logger
	Metrics     *observability.Registry
	HTTPRetries int
	HTTPTimeout time.Duration
	MinIO       MinIOConfig
}

type UnknownSourceError struct {
	Source string
}

func (e *UnknownSourceError) Error() string {
	return "unsupported inventory source: " + e.Source
}

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func FormatFor(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Open picks a Source for the given location: a local path, an http(s) URL
// or an s3://bucket/key object.
func Open(source string, opts Options) (Source, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = DefaultSource
	}
	if !strings.Contains(source, "://") {
		return &FileSource{Path: source, opts: opts}, nil
	}
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse inventory source: %w", err)
	}
	switch u.Scheme {
	case "file":
		return &FileSource{Path: u.Path, opts: opts}, nil
	case "http", "https":
		return newHTTPSource(source, opts), nil
	case "s3", "minio":
		bucket, key, err := splitObjectURL(u)
		if err != nil {
			return nil, err
		}
		return &MinIOSource{Bucket: bucket, Key: key, opts: opts}, nil
	default:
		return nil, &UnknownSourceError{Source: source}
	}
}

// Decode reads a snapshot in the given format.
func Decode(r io.Reader, format Format) (Snapshot, error) {
	var snap Snapshot
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil && err != io.EOF {
			return Snapshot{}, fmt.Errorf("decode yaml inventory: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode json inventory: %w", err)
		}
	}
	return snap, nil
}

type FileSource struct {
	Path string
	opts Options
}

func (s *FileSource) String() string { return s.Path }

func (s *FileSource) Load(ctx context.Context) (Snapshot, error) {
	_, span := observability.StartSpan(ctx, "inventory.load_file", attribute.String("inventory.path", s.Path))
	defer span.End()
	f, err := os.Open(s.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()
	snap, err := Decode(f, FormatFor(s.Path))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	recordLoad(s.opts, "file", snap)
	return snap, nil
}

// StaticSource serves a snapshot that is already in memory.
type StaticSource struct {
	snap Snapshot
}

func NewStaticSource(snap Snapshot) *StaticSource {
	return &StaticSource{snap: snap.Clone()}
}

func (s *StaticSource) String() string { return "memory" }

func (s *StaticSource) Load(context.Context) (Snapshot, error) {
	return s.snap.Clone(), nil
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Nodes: make([]Node, len(s.Nodes))}
	for i, n := range s.Nodes {
		out.Nodes[i] = Node{Name: n.Name, Slots: append([]Slot(nil), n.Slots...)}
	}
	return out
}

func recordLoad(opts Options, kind string, snap Snapshot) {
	opts.Metrics.IncCounter(observability.MetricInventoryLoads, map[string]string{"source": kind}, 1)
	for class, n := range snap.CountByClass() {
		opts.Metrics.SetGauge(observability.MetricInventorySlots, map[string]string{"class": string(class)}, float64(n))
	}
	opts.Logger.Debug().Str("source", kind).Int("nodes", len(snap.Nodes)).Int("slots", snap.SlotCount()).Msg("inventory loaded")
}
