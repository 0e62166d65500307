package cmd

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/warpdl/warpimport/cmd/common"
	"github.com/warpdl/warpimport/internal/dataimport"
)

// progressView draws one bar per data type while records are handed to
// the vault. Bars are created on the first update of an attempt and torn
// down by finish.
type progressView struct {
	mu   sync.Mutex
	out  io.Writer
	p    *mpb.Progress
	bars map[dataimport.DataType]*mpb.Bar
}

func newProgressView(out io.Writer) *progressView {
	return &progressView{out: out}
}

// update is an importer.ProgressFunc.
func (v *progressView) update(dt dataimport.DataType, done, total int) {
	if total <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.p == nil {
		v.p = mpb.New(mpb.WithOutput(v.out), mpb.WithWidth(64))
		v.bars = make(map[dataimport.DataType]*mpb.Bar)
	}
	bar, ok := v.bars[dt]
	if !ok {
		bar = common.InitImportBar(v.p, dt.String(), int64(total))
		v.bars[dt] = bar
	}
	bar.SetCurrent(int64(done))
}

// finish waits for the bars of the last attempt. Bars that did not reach
// their total are aborted.
func (v *progressView) finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.p == nil {
		return
	}
	for _, bar := range v.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	v.p.Wait()
	v.p, v.bars = nil, nil
}
