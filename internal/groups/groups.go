// Package groups manages the layer containers that hold each color plate
// together with the trap layers generated for it.
package groups

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/logging"
)

const (
	// GroupPrefix names the container of a plate.
	GroupPrefix = "COLOR__"
	// TrapPrefix names generated trap layers.
	TrapPrefix = "TRAP__"
)

var (
	// ErrNotFound is returned when a lookup finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when a lookup finds more than one match.
	ErrAmbiguous = errors.New("ambiguous")
)

// GroupName returns the container name for a plate.
func GroupName(plate string) string {
	return GroupPrefix + artwork.SanitizeName(plate)
}

// TrapLayerName returns the name of the trap layer for source over target.
func TrapLayerName(source, target string) string {
	return TrapPrefix + artwork.SanitizeName(source) + "_over_" + artwork.SanitizeName(target)
}

// IsTrap reports whether l is a generated trap layer.
func IsTrap(l *artwork.Layer) bool {
	return strings.HasPrefix(l.Name, TrapPrefix)
}

// Manager looks up and creates plate containers.
type Manager struct {
	logger *slog.Logger
}

// NewManager returns a Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{logger: logging.NewComponentLogger(logger, "groups")}
}

// RemoveTraps deletes every trap layer at any depth and returns the count.
func (m *Manager) RemoveTraps(doc *artwork.Document) int {
	n := doc.RemoveWhere(IsTrap)
	m.logger.Info("old trap layers removed", slog.Int("count", n))
	return n
}

// FindGroup returns the unique container of plate, searched at any depth.
func (m *Manager) FindGroup(doc *artwork.Document, plate string) (*artwork.Layer, error) {
	name := GroupName(plate)
	found := doc.FindAll(name, func(l *artwork.Layer) bool { return l.Group })
	return unique(found, "group "+name)
}

// FindBase returns the unique pixel layer named plate inside group. Trap
// layers never count as a base layer.
func (m *Manager) FindBase(group *artwork.Layer, plate string) (*artwork.Layer, error) {
	found := artwork.FindIn(group, plate, func(l *artwork.Layer) bool { return l.IsPixel() && !IsTrap(l) })
	return unique(found, fmt.Sprintf("base layer %q in %s", plate, group.Name))
}

// EnsureGroup returns the container of plate, wrapping the plate layer in
// a new one at its current stacking position when none exists.
func (m *Manager) EnsureGroup(doc *artwork.Document, plate *artwork.Layer) (*artwork.Layer, error) {
	g, err := m.FindGroup(doc, plate.Name)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	g, err = doc.Wrap(plate, GroupName(plate.Name))
	if err != nil {
		return nil, err
	}
	m.logger.Info("plate group created", slog.String(logging.FieldPlate, plate.Name), slog.String("group", g.Name))
	return g, nil
}

// EnsurePlateGroups makes sure every plate has a container. Plates whose
// container cannot be resolved are logged and left alone.
func (m *Manager) EnsurePlateGroups(doc *artwork.Document, plates []*artwork.Layer) {
	for _, plate := range plates {
		if _, err := m.EnsureGroup(doc, plate); err != nil {
			m.logger.Warn("plate group unavailable",
				slog.String(logging.FieldPlate, plate.Name),
				slog.String(logging.FieldReason, err.Error()))
		}
	}
}

func unique(found []*artwork.Layer, what string) (*artwork.Layer, error) {
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%s: %d matches: %w", what, len(found), ErrAmbiguous)
	}
}
