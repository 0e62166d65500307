package importer

import (
	"runtime/debug"
	"sync"

	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/pkg/logger"
)

// guardReader runs fn on its own goroutine and stores its outcome in *out.
// A panic inside fn is logged with its stack and recorded as a dataCorrupted
// failure, so one broken reader never takes down the session.
// wg is decremented once fn has settled either way.
func guardReader(l logger.Logger, wg *sync.WaitGroup, label string, out *typeOutcome, fn func() typeOutcome) {
	go func() {
		defer wg.Done()
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if l != nil {
				l.Error("PANIC [%s]: %v\n%s", label, r, debug.Stack())
			}
			*out = failed(dataimport.Errorf(dataimport.CategoryDataCorrupted, "%s: reader panicked: %v", label, r))
		}()
		*out = fn()
	}()
}
