package persona

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var catalogsFS embed.FS

// Set selects which built-in catalog variant is loaded. The choice is fixed
// for the process lifetime.
type Set string

const (
	// SetSimple is the compact catalog (short prompts, cheaper context).
	SetSimple Set = "simple"
	// SetComplex is the verbose catalog (richer prompts, same identities).
	SetComplex Set = "complex"
)

// aliasTable maps alternate names (including translated ones) to canonical
// persona names. Canonical names themselves are added as aliases at load
// time, so resolution is total over every name a user might type.
var aliasTable = map[string]string{
	"默认":          "default",
	"standard":    "default",
	"normal":      "default",
	"助手":          "assistant",
	"helper":      "assistant",
	"secretary":   "assistant",
	"作家":          "writer",
	"author":      "writer",
	"novelist":    "writer",
	"程序员":         "programmer",
	"coder":       "programmer",
	"dev":         "programmer",
	"翻译":          "translator",
	"translate":   "translator",
	"智者":          "sage",
	"philosopher": "sage",
	"mentor":      "sage",
}

// catalogFile is the on-disk shape of an embedded catalog.
type catalogFile struct {
	Personas []Template `yaml:"personas"`
}

// Catalog holds the built-in persona set plus runtime custom personas and
// the alias index. Safe for concurrent use.
type Catalog struct {
	mu sync.RWMutex

	builtinOrder []string
	builtins     map[string]Template

	customOrder []string
	customs     map[string]Template

	// aliases is the case-sensitive alias index; aliasesLower is the same
	// index keyed by lowercase alias for the case-insensitive fallback.
	aliases      map[string]string
	aliasesLower map[string]string
}

// Load parses the embedded catalog for the given set and builds the alias
// index. Unknown sets fall back to SetSimple with a warning left to the
// caller (cmd validates the value first).
func Load(set Set) (*Catalog, error) {
	name := string(set)
	if name != string(SetSimple) && name != string(SetComplex) {
		name = string(SetSimple)
	}

	data, err := catalogsFS.ReadFile("catalogs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("persona: read catalog %q: %w", name, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("persona: parse catalog %q: %w", name, err)
	}
	if len(file.Personas) == 0 {
		return nil, fmt.Errorf("persona: catalog %q contains no personas", name)
	}

	c := &Catalog{
		builtins:     make(map[string]Template, len(file.Personas)),
		customs:      make(map[string]Template),
		aliases:      make(map[string]string),
		aliasesLower: make(map[string]string),
	}

	for _, t := range file.Personas {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("persona: catalog %q: %w", name, err)
		}
		if _, dup := c.builtins[t.Name]; dup {
			return nil, fmt.Errorf("persona: catalog %q: duplicate name %q", name, t.Name)
		}
		c.builtins[t.Name] = t
		c.builtinOrder = append(c.builtinOrder, t.Name)
		// Every canonical name is its own alias.
		c.addAlias(t.Name, t.Name)
	}

	for alias, canonical := range aliasTable {
		if _, ok := c.builtins[canonical]; !ok {
			return nil, fmt.Errorf("persona: alias %q points at unknown persona %q", alias, canonical)
		}
		c.addAlias(alias, canonical)
	}

	return c, nil
}

// addAlias records an alias in both the case-sensitive and lowercase
// indexes. Caller must hold the write lock (or be inside Load).
func (c *Catalog) addAlias(alias, canonical string) {
	c.aliases[alias] = canonical
	c.aliasesLower[strings.ToLower(alias)] = canonical
}

// Resolve maps a name or alias to its template. Resolution order: exact
// canonical match (built-in, then custom), case-sensitive alias, then
// case-insensitive alias. First match wins; a miss returns ok=false, never
// an error.
func (c *Catalog) Resolve(nameOrAlias string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.builtins[nameOrAlias]; ok {
		return t, true
	}
	if t, ok := c.customs[nameOrAlias]; ok {
		return t, true
	}
	if canonical, ok := c.aliases[nameOrAlias]; ok {
		return c.lookupLocked(canonical)
	}
	if canonical, ok := c.aliasesLower[strings.ToLower(nameOrAlias)]; ok {
		return c.lookupLocked(canonical)
	}
	return Template{}, false
}

// lookupLocked fetches a canonical name from either set. Caller holds a lock.
func (c *Catalog) lookupLocked(canonical string) (Template, bool) {
	if t, ok := c.builtins[canonical]; ok {
		return t, true
	}
	if t, ok := c.customs[canonical]; ok {
		return t, true
	}
	return Template{}, false
}

// Exists reports whether name is taken by a built-in or custom persona.
// The check is a case-sensitive exact match only — aliases are deliberately
// not consulted, so a custom persona may shadow an alias but never a
// canonical name.
func (c *Catalog) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, builtin := c.builtins[name]
	_, custom := c.customs[name]
	return builtin || custom
}

// IsBuiltin reports whether name is a built-in persona.
func (c *Catalog) IsBuiltin(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.builtins[name]
	return ok
}

// AddCustom registers a custom persona. Returns false when the name
// collides with any existing built-in or custom persona.
func (c *Catalog) AddCustom(t Template) bool {
	if err := t.Validate(); err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.builtins[t.Name]; ok {
		return false
	}
	if _, ok := c.customs[t.Name]; ok {
		return false
	}

	c.customs[t.Name] = t
	c.customOrder = append(c.customOrder, t.Name)
	c.addAlias(t.Name, t.Name)
	return true
}

// RemoveCustom deletes a custom persona. Returns false for built-in names
// (protected) and for names that do not exist.
func (c *Catalog) RemoveCustom(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.builtins[name]; ok {
		return false
	}
	if _, ok := c.customs[name]; !ok {
		return false
	}

	delete(c.customs, name)
	for i, n := range c.customOrder {
		if n == name {
			c.customOrder = append(c.customOrder[:i], c.customOrder[i+1:]...)
			break
		}
	}
	delete(c.aliases, name)
	// Repair the lowercase index: another alias (e.g. a built-in that only
	// differs in case) may legitimately claim the same lowercase key.
	lower := strings.ToLower(name)
	if canonical, ok := c.aliasesLower[lower]; ok && canonical == name {
		delete(c.aliasesLower, lower)
		for alias, target := range c.aliases {
			if strings.ToLower(alias) == lower {
				c.aliasesLower[lower] = target
				break
			}
		}
	}
	return true
}

// List returns all personas in a stable order: built-ins in catalog order,
// then customs in insertion order.
func (c *Catalog) List() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Template, 0, len(c.builtinOrder)+len(c.customOrder))
	for _, name := range c.builtinOrder {
		out = append(out, c.builtins[name])
	}
	for _, name := range c.customOrder {
		out = append(out, c.customs[name])
	}
	return out
}

// Customs returns the custom personas in insertion order. Used by the
// persistence layer to snapshot runtime additions.
func (c *Catalog) Customs() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Template, 0, len(c.customOrder))
	for _, name := range c.customOrder {
		out = append(out, c.customs[name])
	}
	return out
}

// ListAliases returns every alias string that resolves to canonical,
// including the canonical name itself and its lowercase form. Sorted for
// stable user-facing help text.
func (c *Catalog) ListAliases(canonical string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for alias, target := range c.aliases {
		if target == canonical {
			seen[alias] = struct{}{}
		}
	}
	for alias, target := range c.aliasesLower {
		if target == canonical {
			seen[alias] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for alias := range seen {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
