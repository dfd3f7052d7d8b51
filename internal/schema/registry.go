package schema

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Descriptor describes one configuration item category: its canonical name
// and the attribute names the discovery pipeline is expected to supply.
// Attribute lists are advisory; payloads may carry attributes beyond them,
// but the descriptor is what replaces ad-hoc per-category table naming.
type Descriptor struct {
	Name             string
	DisplayAttribute string
	Attributes       []string
}

var categoryName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry maps category names to their descriptors.
type Registry struct {
	mu         sync.RWMutex
	categories map[string]*Descriptor
}

// NewRegistry creates an empty category registry.
func NewRegistry() *Registry {
	return &Registry{categories: make(map[string]*Descriptor)}
}

// Default returns a registry seeded with the built-in categories.
func Default() *Registry {
	r := NewRegistry()
	for _, d := range builtins {
		d := d
		r.categories[d.Name] = &d
	}
	return r
}

// Register adds or replaces a category descriptor. The category name must
// be a lowercase identifier.
func (r *Registry) Register(d Descriptor) bool {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if !categoryName.MatchString(name) {
		return false
	}
	d.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[name] = &d
	return true
}

// Lookup returns the descriptor for a category, or nil if unknown.
// Category matching is case-insensitive.
func (r *Registry) Lookup(category string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.categories[strings.ToLower(strings.TrimSpace(category))]
}

// Valid reports whether the category is registered.
func (r *Registry) Valid(category string) bool {
	return r.Lookup(category) != nil
}

// Names returns the registered category names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtins = []Descriptor{
	{
		Name:             "server",
		DisplayAttribute: "display_name",
		Attributes: []string{
			"display_name", "hostname", "serialnumber", "private_ip", "public_ip",
			"os_name", "os_version", "cpu_count", "memory_mb", "domain", "source",
		},
	},
	{
		Name:             "vminstance",
		DisplayAttribute: "display_name",
		Attributes: []string{
			"display_name", "hostname", "instance_id", "private_ip", "public_ip",
			"image_id", "instance_type", "zone", "source",
		},
	},
	{
		Name:             "database",
		DisplayAttribute: "display_name",
		Attributes: []string{
			"display_name", "db_name", "engine", "engine_version", "hostname",
			"port", "source",
		},
	},
	{
		Name:             "application",
		DisplayAttribute: "display_name",
		Attributes: []string{
			"display_name", "app_name", "version", "vendor", "install_path", "source",
		},
	},
	{
		Name:             "networkdevice",
		DisplayAttribute: "display_name",
		Attributes: []string{
			"display_name", "hostname", "mgmt_ip", "serialnumber", "model",
			"firmware_version", "source",
		},
	},
	{
		Name:             "storagedevice",
		DisplayAttribute: "display_name",
		Attributes: []string{
			"display_name", "serialnumber", "capacity_gb", "model", "source",
		},
	},
}
