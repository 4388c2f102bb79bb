package collection

import (
	"github.com/google/btree"
)

// container keeps rows ordered by id.
type container struct {
	tree *btree.BTreeG[*Row]
}

func newContainer() *container {
	return &container{
		tree: btree.NewG(32, func(a, b *Row) bool { return a.Less(b) }),
	}
}

func (c *container) ReplaceOrInsert(row *Row) {
	c.tree.ReplaceOrInsert(row)
}

func (c *container) Delete(id int64) (*Row, bool) {
	return c.tree.Delete(&Row{I: id})
}

func (c *container) Get(id int64) (*Row, bool) {
	return c.tree.Get(&Row{I: id})
}

func (c *container) Len() int {
	return c.tree.Len()
}

func (c *container) Traverse(iterator func(row *Row) bool) {
	c.tree.Ascend(iterator)
}

func (c *container) Clear() {
	c.tree.Clear(false)
}
