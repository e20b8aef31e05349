package patch

// TextOps turns a string edit into position-based operations so that
// concurrent character-level edits from other collaborators keep working.
//
// The shared prefix and suffix of cur and next are skipped and at most one
// delete followed by one insert is emitted at the first differing rune.
// An empty next yields no ops: the caller removes the value instead, so that
// "never set" stays distinguishable from "blank".
func TextOps(path Path, cur, next string) []Op {
	if next == "" || cur == next {
		return nil
	}

	a := []rune(cur)
	b := []rune(next)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}

	suffix := 0
	limit := min(len(a), len(b)) - prefix
	for suffix < limit && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	deleted := a[prefix : len(a)-suffix]
	inserted := b[prefix : len(b)-suffix]

	var ops []Op
	if len(deleted) > 0 {
		ops = append(ops, Op{Op: KindDeleteText, Path: path.Clone(), Offset: prefix, SD: string(deleted)})
	}
	if len(inserted) > 0 {
		ops = append(ops, Op{Op: KindInsertText, Path: path.Clone(), Offset: prefix, SI: string(inserted)})
	}
	return ops
}
