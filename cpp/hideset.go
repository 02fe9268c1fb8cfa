package cpp

// A hideset holds the names of the macros whose expansion produced a
// token. A name in the hideset of an identifier is never expanded again
// for that token, which ends self referential expansion.
//
// Hidesets are immutable lists sharing their tails. They stay small in
// practice, so the linear operations are fine.
type hideset struct {
	r   *hideset
	val string
}

var emptyHS *hideset = nil

func (hs *hideset) rest() *hideset {
	if hs == emptyHS {
		return emptyHS
	}
	return hs.r
}

func (hs *hideset) contains(s string) bool {
	for ; hs != emptyHS; hs = hs.r {
		if hs.val == s {
			return true
		}
	}
	return false
}

func (hs *hideset) add(s string) *hideset {
	if hs.contains(s) {
		return hs
	}
	return &hideset{r: hs, val: s}
}

// intersection returns the names present in both hs and b.
func (hs *hideset) intersection(b *hideset) *hideset {
	ret := emptyHS
	for ; hs != emptyHS; hs = hs.rest() {
		if b.contains(hs.val) {
			ret = ret.add(hs.val)
		}
	}
	return ret
}

// union returns the names present in either hs or b.
func (hs *hideset) union(b *hideset) *hideset {
	for ; hs != emptyHS; hs = hs.rest() {
		b = b.add(hs.val)
	}
	return b
}
