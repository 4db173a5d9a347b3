package connector

import (
	"container/list"
	"fmt"
	"strconv"

	"oggo/protocol"
)

// preparedStatement is one entry of a connector's prepared-statement LRU,
// keyed by fingerprint (SQL text + parameter type OIDs).
type preparedStatement struct {
	fingerprint string
	name        string
	usage       int
	paramOIDs   []int32
	rowDesc     *protocol.RowDescription
}

// preparedCache is per-connector: a statement named on one connector is
// never referenced on another.
type preparedCache struct {
	max       int
	minUsages int
	nextName  int
	entries   map[string]*list.Element // fingerprint -> element
	order     *list.List               // most-recently-used at Front
	pending   map[string]int           // fingerprint -> usage count, pre-promotion
}

func newPreparedCache(max, minUsages int) *preparedCache {
	if minUsages <= 0 {
		minUsages = 1
	}
	return &preparedCache{
		max:       max,
		minUsages: minUsages,
		entries:   map[string]*list.Element{},
		order:     list.New(),
	}
}

func fingerprint(sql string, paramOIDs []int32) string {
	return fmt.Sprintf("%s|%v", sql, paramOIDs)
}

// touch records a use of fingerprint, returning the entry if it exists
// (promoting it to most-recently-used) and whether it was found.
func (c *preparedCache) touch(fp string) (*preparedStatement, bool) {
	el, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	ps := el.Value.(*preparedStatement)
	ps.usage++
	return ps, true
}

// recordMiss records one unpromoted use of a fingerprint that has no
// server-side statement yet, so AutoPrepareMinUsages can be reached.
func (c *preparedCache) recordMiss(fp string) int {
	if c.pending == nil {
		c.pending = map[string]int{}
	}
	c.pending[fp]++
	return c.pending[fp]
}

// shouldPromote reports whether fp has accumulated enough unpromoted uses
// to justify a server-side prepared statement.
func (c *preparedCache) shouldPromote(fp string) bool {
	return c.pending[fp] >= c.minUsages
}

// promote allocates a new server-side statement name for fp, evicting the
// least-recently-used entry if the cache is at MaxAutoPrepare capacity.
// It returns the new statement and the name of any evicted victim (empty
// if none), which the caller must send a Close message for.
func (c *preparedCache) promote(fp string, paramOIDs []int32) (ps *preparedStatement, victimName string) {
	if c.max > 0 && c.order.Len() >= c.max {
		back := c.order.Back()
		if back != nil {
			victim := back.Value.(*preparedStatement)
			victimName = victim.name
			c.order.Remove(back)
			delete(c.entries, victim.fingerprint)
		}
	}
	c.nextName++
	ps = &preparedStatement{
		fingerprint: fp,
		name:        "oggo_stmt_" + strconv.Itoa(c.nextName),
		usage:       c.pending[fp],
		paramOIDs:   paramOIDs,
	}
	delete(c.pending, fp)
	el := c.order.PushFront(ps)
	c.entries[fp] = el
	return ps, victimName
}

// setDescriptors attaches the RowDescription learned from a Describe
// response to an already-promoted statement.
func (c *preparedCache) setDescriptors(ps *preparedStatement, rowDesc *protocol.RowDescription) {
	ps.rowDesc = rowDesc
}

// remove drops fp entirely, e.g. after a server-side error invalidates it.
func (c *preparedCache) remove(fp string) {
	if el, ok := c.entries[fp]; ok {
		c.order.Remove(el)
		delete(c.entries, fp)
	}
}

// clear evicts every entry, e.g. as part of reset() before returning a
// connector to the pool.
func (c *preparedCache) clear() {
	c.entries = map[string]*list.Element{}
	c.order = list.New()
	c.pending = nil
}
