package tasks

import (
	"fmt"

	"github.com/google/uuid"
)

var taskNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/steveyegge/codeaudit/tasks"))

// idAllocator hands out stable, run-unique task IDs. The same location and
// kind always hash to the same ID; a repeat within one run gets an ordinal
// suffix folded into the hash.
type idAllocator struct {
	seen map[string]int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{seen: make(map[string]int)}
}

func (a *idAllocator) next(kind, file string, line int, detail string) string {
	key := fmt.Sprintf("%s|%s|%d|%s", kind, file, line, detail)
	n := a.seen[key]
	a.seen[key] = n + 1
	if n > 0 {
		key = fmt.Sprintf("%s#%d", key, n)
	}
	return uuid.NewSHA1(taskNamespace, []byte(key)).String()
}
