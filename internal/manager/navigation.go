package manager

import "fmt"

// RootName labels the first breadcrumb.
const RootName = "Root"

// Crumb is one step of the breadcrumb path. ID is nil for the root.
type Crumb struct {
	ID   *string
	Name string
}

// Navigation tracks the current folder as a path of ancestors. The path is
// never empty and its last element is always the current folder.
type Navigation struct {
	path []Crumb
}

func NewNavigation() *Navigation {
	n := &Navigation{}
	n.Home()
	return n
}

// Current returns the id of the current folder, nil at the root.
func (n *Navigation) Current() *string {
	return n.path[len(n.path)-1].ID
}

// Path returns a copy of the breadcrumb path.
func (n *Navigation) Path() []Crumb {
	out := make([]Crumb, len(n.path))
	copy(out, n.path)
	return out
}

func (n *Navigation) Depth() int {
	return len(n.path)
}

// Enter descends into the child folder id.
func (n *Navigation) Enter(id, name string) {
	n.path = append(n.path, Crumb{ID: &id, Name: name})
}

// GoTo truncates the path so that index becomes the current folder.
func (n *Navigation) GoTo(index int) error {
	if index < 0 || index >= len(n.path) {
		return fmt.Errorf("breadcrumb %d out of range [0, %d)", index, len(n.path))
	}
	n.path = n.path[:index+1]
	return nil
}

// Up moves to the parent folder. It reports false at the root.
func (n *Navigation) Up() bool {
	if len(n.path) == 1 {
		return false
	}
	return n.GoTo(len(n.path)-2) == nil
}

func (n *Navigation) Home() {
	n.path = []Crumb{{ID: nil, Name: RootName}}
}

func sameFolder(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
