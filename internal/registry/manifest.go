package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// A manifest is the JSON form of a registry:
//
//	{"<bundle>": {"<buildfile>": {"buildfile": "...", "name": "...",
//	    "builds": {"<build>": {"name": "...", "config": {"requires": [...], "affinity": "client"}}}}}}
//
// Object key order is significant and decoded in document order.

type wireDescriptor struct {
	Buildfile string               `json:"buildfile"`
	Name      string               `json:"name,omitempty"`
	Builds    map[string]wireBuild `json:"builds,omitempty"`
	Timestamp *time.Time           `json:"timestamp,omitempty"`
}

type wireBuild struct {
	Name   string          `json:"name,omitempty"`
	Config wireBuildConfig `json:"config"`
}

type wireBuildConfig struct {
	Requires []string `json:"requires"`
	Affinity string   `json:"affinity,omitempty"`
}

type manifestRecord struct {
	key   string
	entry Entry
}

type manifestBundle struct {
	name    string
	records []manifestRecord
}

// Manifest is a decoded registry snapshot.
type Manifest struct {
	bundles []manifestBundle
}

// Bundles lists bundle names in document order.
func (m *Manifest) Bundles() []string {
	names := make([]string, 0, len(m.bundles))
	for _, b := range m.bundles {
		names = append(names, b.name)
	}
	return names
}

// ApplyTo replaces the table of every bundle in the manifest. Bundles absent
// from the manifest are left alone.
func (m *Manifest) ApplyTo(r *Registry) {
	for _, b := range m.bundles {
		t := &table{entries: make(map[string]Entry, len(b.records))}
		for _, rec := range b.records {
			if _, exists := t.entries[rec.key]; !exists {
				t.order = append(t.order, rec.key)
			}
			t.entries[rec.key] = rec.entry
		}
		r.mu.Lock()
		r.bundles[b.name] = t
		r.bump(t)
		r.mu.Unlock()
	}
}

// DecodeManifest reads a manifest from rd.
func DecodeManifest(rd io.Reader) (*Manifest, error) {
	dec := json.NewDecoder(rd)
	m := &Manifest{}
	err := decodeObject(dec, func(bundle string) error {
		mb := manifestBundle{name: bundle}
		err := decodeObject(dec, func(key string) error {
			var wd wireDescriptor
			if err := dec.Decode(&wd); err != nil {
				return err
			}
			mb.records = append(mb.records, manifestRecord{key: key, entry: wd.entry(key)})
			return nil
		})
		if err != nil {
			return fmt.Errorf("bundle %q: %w", bundle, err)
		}
		m.bundles = append(m.bundles, mb)
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRegistry, "decode registry manifest").Build()
	}
	return m, nil
}

// LoadManifest reads the manifest at path and applies it to r.
func LoadManifest(path string, r *Registry) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRegistry, "open registry manifest").
			WithContext("path", path).Build()
	}
	defer func() { _ = f.Close() }()
	m, err := DecodeManifest(f)
	if err != nil {
		return nil, err
	}
	m.ApplyTo(r)
	return m, nil
}

// WriteManifest encodes the registry as a manifest, bundles sorted by name and
// entries in registration order.
func (r *Registry) WriteManifest(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, bundle := range r.sortedBundlesLocked() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, bundle)
		buf.WriteByte('{')
		t := r.bundles[bundle]
		for j, key := range t.order {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, key)
			raw, err := json.Marshal(toWire(key, t.entries[key]))
			if err != nil {
				return err
			}
			buf.Write(raw)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func (r *Registry) sortedBundlesLocked() []string {
	names := make([]string, 0, len(r.bundles))
	for name := range r.bundles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func writeKey(buf *bytes.Buffer, key string) {
	raw, _ := json.Marshal(key)
	buf.Write(raw)
	buf.WriteByte(':')
}

func (wd wireDescriptor) entry(key string) Entry {
	if wd.Builds == nil && wd.Timestamp != nil {
		return Entry{Timestamp: *wd.Timestamp}
	}
	buildfile := wd.Buildfile
	if buildfile == "" {
		buildfile = key
	}
	d := &models.BuildDescriptor{
		Buildfile: buildfile,
		Name:      wd.Name,
		Builds:    make(map[string]models.BuildConfig, len(wd.Builds)),
	}
	for name, b := range wd.Builds {
		if b.Name != "" {
			name = b.Name
		}
		d.Builds[name] = models.BuildConfig{
			Name:     name,
			Requires: b.Config.Requires,
			Affinity: models.ParseAffinity(b.Config.Affinity),
		}
	}
	e := Entry{Descriptor: d}
	if wd.Timestamp != nil {
		e.Timestamp = *wd.Timestamp
	}
	return e
}

func toWire(key string, e Entry) wireDescriptor {
	var ts *time.Time
	if !e.Timestamp.IsZero() {
		t := e.Timestamp.UTC()
		ts = &t
	}
	if !e.HasDescriptor() {
		return wireDescriptor{Buildfile: key, Timestamp: ts}
	}
	wd := wireDescriptor{
		Buildfile: e.Descriptor.Buildfile,
		Name:      e.Descriptor.Name,
		Builds:    make(map[string]wireBuild, len(e.Descriptor.Builds)),
		Timestamp: ts,
	}
	for name, cfg := range e.Descriptor.Builds {
		requires := cfg.Requires
		if requires == nil {
			requires = []string{}
		}
		wd.Builds[name] = wireBuild{
			Name:   name,
			Config: wireBuildConfig{Requires: requires, Affinity: string(cfg.Affinity)},
		}
	}
	return wd
}

// decodeObject walks one JSON object, calling fn for each key with the decoder
// positioned at the value.
func decodeObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
