package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vbonduro/placemate/internal/category"
	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/synonym"
	"github.com/vbonduro/placemate/internal/vision"
)

// DefaultRoomName is the root used when nothing in a batch looks like a room.
const DefaultRoomName = "Scanned Room"

// roomKeywords denote room-like spaces. They are matched against normalized
// labels, so synonyms such as "pantry" or "lounge" are covered by their
// group representative.
var roomKeywords = []string{
	"room", "kitchen", "office", "bedroom", "garage", "basement", "living room",
	"bathroom", "dining room", "hallway", "hall", "attic", "study", "laundry room",
	"nursery", "cellar", "loft", "utility room", "playroom",
}

var roomKeywordSet = func() map[string]bool {
	m := make(map[string]bool, len(roomKeywords))
	for _, k := range roomKeywords {
		m[k] = true
	}
	return m
}()

const (
	ReasonDangling = "dangling"
	ReasonCycle    = "cycle"
)

// Unresolved records a container whose declared parent could not be linked.
// The container was placed directly under the root.
type Unresolved struct {
	Label       string `json:"label"`
	ParentLabel string `json:"parent_label"`
	Reason      string `json:"reason"`
}

type Resolution struct {
	Root    *domain.Location
	RootKey string
	// Containers maps each container's label key to its location.
	Containers map[string]*domain.Location
	Created    []*domain.Location
	Reused     []*domain.Location
	Unresolved []Unresolved
}

// Lookup returns the location resolved for label, including the root.
func (r *Resolution) Lookup(label string) (*domain.Location, bool) {
	key := Key(label)
	if key == r.RootKey {
		return r.Root, true
	}
	loc, ok := r.Containers[key]
	return loc, ok
}

type ResolveOptions struct {
	// Room overrides root selection with an explicit room name.
	Room string
	// Cropper, when set, stores a photo for each newly created location that
	// has a bounding box.
	Cropper Cropper
}

type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve selects the batch's root, merges it and every container detection
// onto existing, and creates missing locations through adder. existing must
// be a snapshot taken once per scan.
func (r *Resolver) Resolve(ctx context.Context, detections []vision.Detection, existing []*domain.Location, adder LocationAdder, opts ResolveOptions) (*Resolution, error) {
	entries := prepare(detections)
	idx := newLocationIndex(existing)

	rootKey, rootDisplay, rootEntry := selectRoot(entries, opts.Room)
	if rootEntry != nil && rootEntry.parentKey != "" {
		r.logger.Info("room detection has a parent label, ignoring it",
			"label", rootDisplay, "parent_label", rootEntry.det.ParentLabel)
	}
	res := &Resolution{
		RootKey:    rootKey,
		Containers: make(map[string]*domain.Location),
	}

	root, created, err := r.mergeOrCreate(ctx, idx, adder, opts.Cropper, nil, rootKey, rootDisplay, domain.KindRoom, rootEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", rootDisplay, err)
	}
	res.Root = root
	res.record(root, created)

	containers := collectContainers(entries, rootKey)
	parents := r.linkParents(containers, rootKey, root, idx, res)

	for _, c := range orderByDepth(containers, parents.edges) {
		parent := root
		if p, ok := parents.fixed[c.key]; ok {
			parent = p
		} else if pk, ok := parents.edges[c.key]; ok {
			parent = res.Containers[pk]
		}

		kind := containerKind(c.key, parent == root)
		loc, created, err := r.mergeOrCreate(ctx, idx, adder, opts.Cropper, &parent.ID, c.key, c.display, kind, c)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve container %q: %w", c.display, err)
		}
		res.Containers[c.key] = loc
		res.record(loc, created)
	}

	return res, nil
}

func (res *Resolution) record(loc *domain.Location, created bool) {
	if created {
		res.Created = append(res.Created, loc)
	} else {
		res.Reused = append(res.Reused, loc)
	}
}

// selectRoot applies, in order: the explicit room, an exact room keyword,
// a room keyword contained as whole words, the first parentless container
// and finally DefaultRoomName. Keyword matches ignore parent labels. A
// contained keyword only counts for containers or labels that end with it,
// so "Guest Bedroom" is a room and "Kitchen Towel" stays an item.
func selectRoot(entries []entry, room string) (key, display string, e *entry) {
	if strings.TrimSpace(room) != "" {
		key = Key(room)
		for i := range entries {
			if entries[i].key == key {
				return key, synonym.Display(room), &entries[i]
			}
		}
		return key, synonym.Display(room), nil
	}

	for i := range entries {
		if roomKeywordSet[entries[i].key] {
			return entries[i].key, entries[i].display, &entries[i]
		}
	}
	for i := range entries {
		if endsWithRoomWord(entries[i].key) || (entries[i].det.IsContainer && containsRoomWord(entries[i].key)) {
			return entries[i].key, entries[i].display, &entries[i]
		}
	}
	for i := range entries {
		if entries[i].parentKey == "" && entries[i].det.IsContainer {
			return entries[i].key, entries[i].display, &entries[i]
		}
	}
	return Key(DefaultRoomName), DefaultRoomName, nil
}

func containsRoomWord(key string) bool {
	padded := " " + key + " "
	for _, kw := range roomKeywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

func endsWithRoomWord(key string) bool {
	padded := " " + key
	for _, kw := range roomKeywords {
		if strings.HasSuffix(padded, " "+kw) {
			return true
		}
	}
	return false
}

// collectContainers returns one entry per container key, excluding the
// root, in first-seen order. A later duplicate contributes its parent label
// when the first occurrence had none.
func collectContainers(entries []entry, rootKey string) []*entry {
	var out []*entry
	byKey := make(map[string]*entry)
	for i := range entries {
		e := &entries[i]
		if !e.det.IsContainer || e.key == rootKey {
			continue
		}
		if first, ok := byKey[e.key]; ok {
			if first.parentKey == "" && e.parentKey != "" {
				first.parentKey = e.parentKey
				first.det.ParentLabel = e.det.ParentLabel
			}
			continue
		}
		c := *e
		byKey[e.key] = &c
		out = append(out, &c)
	}
	return out
}

type parentLinks struct {
	// edges maps a container key to the key of its parent container.
	edges map[string]string
	// fixed maps a container key to an existing location outside the batch.
	fixed map[string]*domain.Location
}

func (r *Resolver) linkParents(containers []*entry, rootKey string, root *domain.Location, idx *locationIndex, res *Resolution) parentLinks {
	inBatch := make(map[string]bool, len(containers))
	for _, c := range containers {
		inBatch[c.key] = true
	}

	links := parentLinks{
		edges: make(map[string]string),
		fixed: make(map[string]*domain.Location),
	}
	for _, c := range containers {
		switch {
		case c.parentKey == "" || c.parentKey == rootKey:
		case inBatch[c.parentKey]:
			links.edges[c.key] = c.parentKey
		default:
			if loc := idx.findInSubtree(root.ID, c.parentKey); loc != nil {
				links.fixed[c.key] = loc
				continue
			}
			r.unresolved(res, c, ReasonDangling)
		}
	}

	for _, key := range findCycles(containers, links.edges) {
		delete(links.edges, key)
		for _, c := range containers {
			if c.key == key {
				r.unresolved(res, c, ReasonCycle)
			}
		}
	}
	return links
}

func (r *Resolver) unresolved(res *Resolution, c *entry, reason string) {
	r.logger.Warn("unresolved parent reference, defaulting to root",
		"label", c.det.Label,
		"parent_label", c.det.ParentLabel,
		"reason", reason,
		"root", res.Root.Name,
	)
	res.Unresolved = append(res.Unresolved, Unresolved{
		Label:       c.display,
		ParentLabel: c.det.ParentLabel,
		Reason:      reason,
	})
}

// findCycles returns the keys of every container on a parent cycle, in
// container order. Each container has at most one parent, so cycles are
// found by walking parent chains.
func findCycles(containers []*entry, edges map[string]string) []string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(containers))
	onCycle := make(map[string]bool)

	for _, c := range containers {
		if state[c.key] != unvisited {
			continue
		}
		var path []string
		cur := c.key
		for {
			if state[cur] == onPath {
				for i := len(path) - 1; i >= 0; i-- {
					onCycle[path[i]] = true
					if path[i] == cur {
						break
					}
				}
				break
			}
			if state[cur] == done {
				break
			}
			state[cur] = onPath
			path = append(path, cur)
			next, ok := edges[cur]
			if !ok {
				break
			}
			cur = next
		}
		for _, p := range path {
			state[p] = done
		}
	}

	var out []string
	for _, c := range containers {
		if onCycle[c.key] {
			out = append(out, c.key)
		}
	}
	return out
}

// orderByDepth sorts containers so every parent precedes its children. Ties
// keep input order. edges must be acyclic.
func orderByDepth(containers []*entry, edges map[string]string) []*entry {
	depth := make(map[string]int, len(containers))
	var depthOf func(key string) int
	depthOf = func(key string) int {
		if d, ok := depth[key]; ok {
			return d
		}
		d := 0
		if parent, ok := edges[key]; ok {
			d = depthOf(parent) + 1
		}
		depth[key] = d
		return d
	}

	ordered := make([]*entry, len(containers))
	copy(ordered, containers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return depthOf(ordered[i].key) < depthOf(ordered[j].key)
	})
	return ordered
}

func containerKind(key string, underRoot bool) domain.LocationKind {
	switch {
	case category.MapToCategory(key) == "Furniture":
		return domain.KindFurniture
	case underRoot:
		return domain.KindStorage
	default:
		return domain.KindContainer
	}
}

func (r *Resolver) mergeOrCreate(ctx context.Context, idx *locationIndex, adder LocationAdder, cropper Cropper, parentID *string, key, display string, kind domain.LocationKind, e *entry) (*domain.Location, bool, error) {
	if loc := idx.find(parentID, key); loc != nil {
		return loc, false, nil
	}

	var photoRef string
	if e != nil && cropper != nil {
		if box, ok := e.validBox(); ok {
			ref, err := cropper.CropAndSave(ctx, box)
			if err != nil {
				r.logger.Warn("failed to crop location photo", "label", display, "error", err)
			} else {
				photoRef = ref
			}
		}
	}

	loc, err := adder.AddLocation(ctx, display, kind, parentID, photoRef)
	if err != nil {
		return nil, false, err
	}
	idx.add(loc)
	r.logger.Debug("location created", "id", loc.ID, "name", loc.Name, "kind", loc.Kind)
	return loc, true, nil
}

// locationIndex answers merge lookups against the scan's snapshot plus the
// locations created during the scan.
type locationIndex struct {
	byParent map[string]map[string]*domain.Location
	children map[string][]*domain.Location
}

func newLocationIndex(existing []*domain.Location) *locationIndex {
	idx := &locationIndex{
		byParent: make(map[string]map[string]*domain.Location),
		children: make(map[string][]*domain.Location),
	}
	for _, loc := range existing {
		idx.add(loc)
	}
	return idx
}

func parentKey(parentID *string) string {
	if parentID == nil {
		return ""
	}
	return *parentID
}

func (idx *locationIndex) add(loc *domain.Location) {
	p := parentKey(loc.ParentID)
	m, ok := idx.byParent[p]
	if !ok {
		m = make(map[string]*domain.Location)
		idx.byParent[p] = m
	}
	key := Key(loc.Name)
	if _, dup := m[key]; !dup {
		m[key] = loc
	}
	idx.children[p] = append(idx.children[p], loc)
}

func (idx *locationIndex) find(parentID *string, key string) *domain.Location {
	return idx.byParent[parentKey(parentID)][key]
}

// findInSubtree searches the descendants of rootID breadth-first.
func (idx *locationIndex) findInSubtree(rootID, key string) *domain.Location {
	seen := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range idx.children[id] {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			if Key(child.Name) == key {
				return child
			}
			queue = append(queue, child.ID)
		}
	}
	return nil
}
