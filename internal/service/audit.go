package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vbonduro/placemate/internal/domain"
)

type AuditStatus string

const (
	AuditMatched AuditStatus = "matched"
	AuditMissing AuditStatus = "missing"
	AuditNew     AuditStatus = "new"
)

var auditOrder = map[AuditStatus]int{AuditMatched: 0, AuditMissing: 1, AuditNew: 2}

// AuditEntry compares one catalog item or one fresh detection. ItemID is
// empty for new detections.
type AuditEntry struct {
	ItemID   string      `json:"item_id,omitempty"`
	Name     string      `json:"name"`
	Status   AuditStatus `json:"status"`
	PhotoRef string      `json:"photo_ref,omitempty"`
}

type AuditReport struct {
	Location *domain.Location `json:"location"`
	Path     string           `json:"path"`
	Entries  []AuditEntry     `json:"entries"`
}

// Audit photographs a location again and compares what the model sees with
// the items placed there. A label and an item name match when either
// contains the other, ignoring case. The catalog is not modified.
func (s *ScanService) Audit(ctx context.Context, locationID string, image []byte, mimeType string) (*AuditReport, error) {
	if len(image) == 0 {
		return nil, invalid("image is empty")
	}
	loc, err := s.catalog.Locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", locationID, ErrNotFound)
	}
	chain, err := s.catalog.Locations.Ancestry(ctx, locationID)
	if err != nil {
		return nil, err
	}
	path := joinPath(chain)

	items, err := s.catalog.ItemsForLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	result, err := s.recognize(ctx, image, mimeType, path)
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, obj := range result.Objects {
		if l := strings.ToLower(strings.TrimSpace(obj.Label)); l != "" {
			labels = append(labels, l)
		}
	}

	report := &AuditReport{Location: loc, Path: path}
	itemNames := make([]string, 0, len(items))
	for _, item := range items {
		name := strings.ToLower(item.Name)
		itemNames = append(itemNames, name)
		status := AuditMissing
		if matchesAny(name, labels) {
			status = AuditMatched
		}
		report.Entries = append(report.Entries, AuditEntry{
			ItemID:   item.ID,
			Name:     item.Name,
			Status:   status,
			PhotoRef: item.PhotoRef,
		})
	}

	seen := make(map[string]bool)
	for _, obj := range result.Objects {
		label := strings.ToLower(strings.TrimSpace(obj.Label))
		if obj.IsContainer || label == "" || seen[label] {
			continue
		}
		seen[label] = true
		if !matchesAny(label, itemNames) {
			report.Entries = append(report.Entries, AuditEntry{Name: strings.TrimSpace(obj.Label), Status: AuditNew})
		}
	}

	sort.SliceStable(report.Entries, func(i, j int) bool {
		return auditOrder[report.Entries[i].Status] < auditOrder[report.Entries[j].Status]
	})

	s.logger.Info("audit complete", "location_id", locationID, "entries", len(report.Entries))
	return report, nil
}

func matchesAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(c, s) || strings.Contains(s, c) {
			return true
		}
	}
	return false
}

func joinPath(chain []*domain.Location) string {
	names := make([]string, len(chain))
	for i, l := range chain {
		names[i] = l.Name
	}
	return strings.Join(names, " > ")
}
