package wire

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownPacket is returned by Get/GetAll for a name the table has never
// seen, per §4.2.
type ErrUnknownPacket struct{ Name string }

func (e *ErrUnknownPacket) Error() string { return fmt.Sprintf("wire: unknown packet %q", e.Name) }

// versionEntry pairs the patch version a packet version was introduced in
// with the packet's own version number.
type versionEntry struct {
	patchVersion  int
	packetVersion int
}

// Codec resolves a packet name to the version in effect for the running
// game patch, preferring an on-disk schema directory when present.
//
// Grounded on the teacher's internal/net/codec.go framing helpers plus the
// opcode table implied by internal/net/packet.Registry, generalized from a
// single hardcoded table to the patch-ranged table required by §4.2.
type Codec struct {
	mu         sync.RWMutex
	table      map[string][]versionEntry
	schemaDir  string
	schemaHit  map[string]bool // name -> has on-disk schema file (cached)
	log        *zap.Logger
	lastKnown  map[string]int // most recent known version per name, for empty-range fallback
}

// NewCodec builds a codec from a static (name -> patch/version pairs) table.
// schemaDir may be empty; when set, Get prefers the newest schema file
// present on disk for a name over the hardcoded table.
func NewCodec(table map[string][]struct {
	PatchVersion  int
	PacketVersion int
}, schemaDir string, log *zap.Logger) *Codec {
	c := &Codec{
		table:     make(map[string][]versionEntry, len(table)),
		schemaDir: schemaDir,
		schemaHit: make(map[string]bool),
		lastKnown: make(map[string]int, len(table)),
		log:       log,
	}
	for name, entries := range table {
		ves := make([]versionEntry, len(entries))
		for i, e := range entries {
			ves[i] = versionEntry{patchVersion: e.PatchVersion, packetVersion: e.PacketVersion}
		}
		sort.Slice(ves, func(i, j int) bool { return ves[i].patchVersion < ves[j].patchVersion })
		c.table[name] = ves
		if len(ves) > 0 {
			c.lastKnown[name] = ves[len(ves)-1].packetVersion
		}
	}
	return c
}

// Get returns the packet version in effect for name at the given patch.
func (c *Codec) Get(name string, patch int) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, ok := c.table[name]
	if !ok {
		return 0, &ErrUnknownPacket{Name: name}
	}

	if c.schemaDir != "" {
		if v, ok := c.newestOnDiskVersion(name, patch); ok {
			return v, nil
		}
	}

	best := -1
	for _, e := range entries {
		if e.patchVersion <= patch && e.packetVersion > best {
			best = e.packetVersion
		}
	}
	if best >= 0 {
		return best, nil
	}

	// Empty patch range: fall back to the most recent known version.
	if v, ok := c.lastKnown[name]; ok {
		c.log.Warn("wire: empty patch range, falling back to most recent known version",
			zap.String("packet", name), zap.Int("patch", patch), zap.Int("fallback_version", v))
		return v, nil
	}
	return 0, &ErrUnknownPacket{Name: name}
}

// GetAll returns (name, version) together, mirroring the spec's
// get_all(name) -> (name, version) accessor.
func (c *Codec) GetAll(name string, patch int) (string, int, error) {
	v, err := c.Get(name, patch)
	if err != nil {
		return "", 0, err
	}
	return name, v, nil
}

// newestOnDiskVersion looks for schemaDir/<name>.v<N>.schema files and
// returns the highest N found; patch is not consulted. Returns
// ok=false when no schema file exists for name, in which case the caller
// falls back to the hardcoded table (the §4.2 "CodecMismatch" path).
func (c *Codec) newestOnDiskVersion(name string, patch int) (int, bool) {
	pattern := filepath.Join(c.schemaDir, name+".v*.schema")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return 0, false
	}
	best := -1
	for _, m := range matches {
		var v int
		base := filepath.Base(m)
		if _, err := fmt.Sscanf(base, name+".v%d.schema", &v); err != nil {
			continue
		}
		if v > best {
			best = v
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// ResolveSchemaDir returns dir if it exists on disk, else "" — used at
// construction time so a missing directory degrades to the hardcoded
// table rather than erroring.
func ResolveSchemaDir(dir string) string {
	if dir == "" {
		return ""
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		return dir
	}
	return ""
}
