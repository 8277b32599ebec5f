package route

// Marks records which elements a routing run has consumed. Keys are
// identities (polygon pointers, region indices); nothing is ever written to
// the elements themselves.
type Marks struct {
	used map[any]struct{}
}

func (m *Marks) Used(k any) bool {
	_, ok := m.used[k]
	return ok
}

func (m *Marks) Mark(k any) {
	if m.used == nil {
		m.used = make(map[any]struct{})
	}
	m.used[k] = struct{}{}
}

func (m *Marks) Unmark(k any) {
	delete(m.used, k)
}

// Count is the number of marked elements.
func (m *Marks) Count() int {
	return len(m.used)
}

func (m *Marks) Reset() {
	m.used = nil
}
