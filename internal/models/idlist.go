package models

// IDList is a denormalized list of entity IDs stored as a jsonb column.
// Posts and users carry one for their live comment IDs so list reads never
// join the comments table. The lists are maintained by best-effort fan-out,
// not transactions, so helpers must tolerate duplicates and missing entries.
type IDList []uint

// Contains reports whether id is present in the list.
func (l IDList) Contains(id uint) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns the list with id appended, unless it is already present.
func (l IDList) Add(id uint) IDList {
	if l.Contains(id) {
		return l
	}
	return append(l, id)
}

// Remove returns a new list with every occurrence of id removed. The
// receiver is left untouched so callers can keep the old value, e.g. to
// diff against the updated one.
func (l IDList) Remove(id uint) IDList {
	out := make(IDList, 0, len(l))
	for _, v := range l {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
