package registry

import (
	"context"
	_ "embed"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dlclark/regexp2"
	version "github.com/mcuadros/go-version"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the newest registry document version this build understands.
const SchemaVersion = "1.0"

// Placeholder is substituted with the (escaped) username in URL templates.
const Placeholder = "{username}"

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrInvalidSpec     = errors.New("invalid platform spec")
)

//go:embed platforms.json
var defaultDocument []byte

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodOptions: true,
}

// PlatformSpec describes how to probe a single platform.
type PlatformSpec struct {
	Name           string `json:"name" yaml:"name"`
	URLTemplate    string `json:"url" yaml:"url"`
	Method         string `json:"method" yaml:"method"`
	FoundStatus    int    `json:"found_status" yaml:"found_status"`
	NotFoundStatus int    `json:"not_found_status" yaml:"not_found_status"`

	// RegexCheck, when set, lists the usernames the platform can possibly hold.
	RegexCheck string `json:"regex_check,omitempty" yaml:"regex_check,omitempty"`
}

// Validate reports whether the spec can be probed.
func (p PlatformSpec) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.Wrap(ErrInvalidSpec, "missing name")
	}
	if !strings.Contains(p.URLTemplate, Placeholder) {
		return errors.Wrapf(ErrInvalidSpec, "platform %q: url %q has no %s placeholder", p.Name, p.URLTemplate, Placeholder)
	}
	u, err := url.Parse(strings.ReplaceAll(p.URLTemplate, Placeholder, "x"))
	if err != nil {
		return errors.Wrapf(ErrInvalidSpec, "platform %q: parse url: %v", p.Name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(ErrInvalidSpec, "platform %q: url must be absolute http(s), got %q", p.Name, p.URLTemplate)
	}
	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return errors.Wrapf(ErrInvalidSpec, "platform %q: unsupported method %q", p.Name, p.Method)
	}
	if !validStatus(p.FoundStatus) || !validStatus(p.NotFoundStatus) {
		return errors.Wrapf(ErrInvalidSpec, "platform %q: status codes must be within 100-599 (found=%d, not_found=%d)",
			p.Name, p.FoundStatus, p.NotFoundStatus)
	}
	if p.FoundStatus == p.NotFoundStatus {
		return errors.Wrapf(ErrInvalidSpec, "platform %q: found and not_found status are both %d", p.Name, p.FoundStatus)
	}
	if p.RegexCheck != "" {
		if _, err := regexp2.Compile(p.RegexCheck, 0); err != nil {
			return errors.Wrapf(ErrInvalidSpec, "platform %q: regex_check: %v", p.Name, err)
		}
	}
	return nil
}

func validStatus(code int) bool {
	return code >= 100 && code <= 599
}

// Document is the on-disk registry format.
type Document struct {
	Version   string         `json:"version" yaml:"version"`
	Platforms []PlatformSpec `json:"platforms" yaml:"platforms"`
}

// Registry is an ordered, immutable set of platform specs keyed by name.
type Registry struct {
	specs []PlatformSpec
	index map[string]int
}

// New validates specs and builds a registry preserving their order.
func New(specs []PlatformSpec) (*Registry, error) {
	r := &Registry{
		specs: make([]PlatformSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, sp := range specs {
		if err := sp.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[sp.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidSpec, "duplicate platform %q", sp.Name)
		}
		sp.Method = strings.ToUpper(sp.Method)
		if sp.Method == "" {
			sp.Method = http.MethodGet
		}
		r.index[sp.Name] = len(r.specs)
		r.specs = append(r.specs, sp)
	}
	return r, nil
}

// Default returns the built-in registry.
func Default() (*Registry, error) {
	return Parse(defaultDocument, "json")
}

// Parse decodes a registry document. format is "json" or "yaml".
func Parse(data []byte, format string) (*Registry, error) {
	var doc Document
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse yaml registry")
		}
	default:
		if err := sonic.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse json registry")
		}
	}

	if doc.Version == "" {
		doc.Version = SchemaVersion
	}
	if version.Compare(version.Normalize(doc.Version), version.Normalize(SchemaVersion), ">") {
		return nil, errors.Errorf("registry version %s is newer than supported version %s", doc.Version, SchemaVersion)
	}
	if len(doc.Platforms) == 0 {
		return nil, errors.New("registry has no platforms")
	}
	return New(doc.Platforms)
}

// LoadFile reads a registry from disk; .yaml/.yml files are parsed as YAML, anything else as JSON.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read registry")
	}
	r, err := Parse(raw, formatOf(path))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return r, nil
}

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetch downloads a registry document from rawURL.
func Fetch(ctx context.Context, client Doer, rawURL, userAgent string) (*Registry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch registry")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errors.Errorf("fetch registry: %s (%s)", resp.Status, string(snippet))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read registry body")
	}

	format := formatOf(req.URL.Path)
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = "yaml"
	}
	return Parse(body, format)
}

// Load resolves source to a registry: empty means the built-in table, an
// http(s) URL is fetched, anything else is read from disk.
func Load(ctx context.Context, client Doer, source, userAgent string) (*Registry, error) {
	switch {
	case source == "":
		return Default()
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return Fetch(ctx, client, source, userAgent)
	default:
		return LoadFile(source)
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Get returns the spec registered under name.
func (r *Registry) Get(name string) (PlatformSpec, error) {
	i, ok := r.index[name]
	if !ok {
		return PlatformSpec{}, errors.Wrapf(ErrUnknownPlatform, "%q", name)
	}
	return r.specs[i], nil
}

// All returns every spec in registry order.
func (r *Registry) All() []PlatformSpec {
	out := make([]PlatformSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

func (r *Registry) Len() int { return len(r.specs) }

// Names returns platform names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.specs))
	for i, sp := range r.specs {
		out[i] = sp.Name
	}
	return out
}

// Filter returns the specs whose names appear in names, in registry order.
// Matching is exact and case-sensitive; unknown names are skipped.
func (r *Registry) Filter(names []string) []PlatformSpec {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []PlatformSpec
	for _, sp := range r.specs {
		if want[sp.Name] {
			out = append(out, sp)
		}
	}
	return out
}

// Unknown returns the names that match no registered platform, in input order.
func (r *Registry) Unknown(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := r.index[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
