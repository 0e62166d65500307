// Package importer sequences a data import from one source: it runs the
// store readers for the selected profile and data types, recovers from
// locked stores and denied key material, falls back to manual file
// import, and keeps the latest result per data type.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/internal/profiles"
	"github.com/warpdl/warpimport/internal/stores"
	"github.com/warpdl/warpimport/pkg/logger"
)

// Screen is the step of the import flow a front end presents.
type Screen int

const (
	ScreenPicker Screen = iota
	// ScreenImporting is shown while readers run.
	ScreenImporting
	ScreenMoreInfo
	ScreenFileImport
	ScreenSummary
	ScreenFeedback
	ScreenCancelled
)

func (s Screen) String() string {
	switch s {
	case ScreenPicker:
		return "picker"
	case ScreenImporting:
		return "importing"
	case ScreenMoreInfo:
		return "moreInfo"
	case ScreenFileImport:
		return "fileImport"
	case ScreenSummary:
		return "summary"
	case ScreenFeedback:
		return "feedback"
	case ScreenCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Screen(%d)", int(s))
	}
}

// Final reports whether the flow has ended.
func (s Screen) Final() bool {
	return s == ScreenSummary || s == ScreenFeedback || s == ScreenCancelled
}

var (
	ErrWrongScreen = errors.New("operation not allowed on the current screen")
	ErrNoProfile   = errors.New("no profile selected")
	ErrNoDataTypes = errors.New("no data types selected")
	ErrCancelled   = errors.New("import cancelled")
)

// Session is the state of one import from one source. All methods are
// safe for concurrent use; Cancel may be called while BeginImport or
// ImportFile is running.
type Session struct {
	// ID identifies the session in logs and reports.
	ID string

	source  dataimport.Source
	info    dataimport.SourceInfo
	deps    Deps
	log     logger.Logger
	readers map[readerKey]reader
	files   map[dataimport.DataType]fileReaderFunc

	mu       sync.Mutex
	screen   Screen
	fileType dataimport.DataType
	profile  *profiles.BrowserProfile
	types    []dataimport.DataType
	results  map[dataimport.DataType]dataimport.Result
	// failures holds the last error of each type until an attempt for
	// that type imports at least one record.
	failures map[dataimport.DataType]*dataimport.ImportError
	cancel   context.CancelFunc
	attempt  int

	keyMu sync.Mutex
	// keyMaterial survives attempts until a retry from the more-info
	// screen; keyPrompted and keyErr only last for one attempt.
	keyMaterial []byte
	keyPrompted bool
	keyErr      *dataimport.ImportError
}

// New starts a session for source. File-only sources start on the file
// import screen for their default data type, the others on the picker.
func New(source dataimport.Source, deps Deps) (*Session, error) {
	info, ok := source.Info()
	if !ok {
		return nil, fmt.Errorf("error: unknown source %q", string(source))
	}
	if deps.Vault == nil || deps.Bookmarks == nil {
		return nil, errors.New("error: a vault and a bookmark importer are required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	s := &Session{
		ID:       uuid.NewString(),
		source:   source,
		info:     info,
		deps:     deps,
		log:      deps.Logger,
		readers:  profileReaders,
		files:    fileReaders,
		results:  make(map[dataimport.DataType]dataimport.Result),
		failures: make(map[dataimport.DataType]*dataimport.ImportError),
	}
	if info.ProfileBased() {
		s.screen = ScreenPicker
		s.types = dataimport.SortDataTypes(info.DataTypes)
	} else {
		s.screen = ScreenFileImport
		s.fileType = info.FileDataType
		s.types = []dataimport.DataType{info.FileDataType}
		for _, dt := range dataimport.SortDataTypes(info.DataTypes) {
			if dt != info.FileDataType {
				s.types = append(s.types, dt)
			}
		}
	}
	s.log.Info("import session %s: started for %s", s.ID, info.Name)
	return s, nil
}

// Source returns the source being imported.
func (s *Session) Source() dataimport.Source {
	return s.source
}

// Screen returns the current screen and, for ScreenFileImport, the data
// type a file is expected for.
func (s *Session) Screen() (Screen, dataimport.DataType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen, s.fileType
}

// DataTypes returns the selected data types in import order.
func (s *Session) DataTypes() []dataimport.DataType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dataimport.DataType(nil), s.types...)
}

// Results returns a copy of the latest result per data type.
func (s *Session) Results() map[dataimport.DataType]dataimport.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[dataimport.DataType]dataimport.Result, len(s.results))
	for dt, r := range s.results {
		out[dt] = r
	}
	return out
}

// SelectProfile picks the profile to import from and selects every data
// type the profile holds.
func (s *Session) SelectProfile(p profiles.BrowserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen != ScreenPicker {
		return fmt.Errorf("error: %w: %s", ErrWrongScreen, s.screen)
	}
	if p.Source != s.source {
		return fmt.Errorf("error: profile belongs to %s, not %s", p.Source, s.source)
	}
	var types []dataimport.DataType
	for _, dt := range p.DataTypes {
		if s.info.Supports(dt) {
			types = append(types, dt)
		}
	}
	s.profile = &p
	s.types = dataimport.SortDataTypes(types)
	return nil
}

// SelectDataTypes narrows the import to the given types.
func (s *Session) SelectDataTypes(types ...dataimport.DataType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen != ScreenPicker {
		return fmt.Errorf("error: %w: %s", ErrWrongScreen, s.screen)
	}
	for _, dt := range types {
		if !s.info.Supports(dt) {
			return fmt.Errorf("error: %s does not provide %s", s.info.Name, dt)
		}
	}
	sorted := dataimport.SortDataTypes(types)
	if len(sorted) == 0 {
		return ErrNoDataTypes
	}
	s.types = sorted
	return nil
}

type typeOutcome struct {
	result dataimport.Result
	// reverted means the user declined a password prompt.
	reverted bool
	// dropped means the attempt was cancelled and has nothing to record.
	dropped bool
	// emitted means the records reached the destination, so the result
	// is kept even when the attempt was cancelled meanwhile.
	emitted bool
}

func failed(err *dataimport.ImportError) typeOutcome {
	return typeOutcome{result: dataimport.Failure(err)}
}

// BeginImport runs one attempt per selected data type from the picker, or
// retries the types without an imported result from the more-info
// screen. It returns once every type has settled.
func (s *Session) BeginImport(ctx context.Context) error {
	s.mu.Lock()
	prev := s.screen
	if prev != ScreenPicker && prev != ScreenMoreInfo {
		s.mu.Unlock()
		return fmt.Errorf("error: %w: %s", ErrWrongScreen, prev)
	}
	if s.profile == nil {
		s.mu.Unlock()
		return ErrNoProfile
	}
	if len(s.types) == 0 {
		s.mu.Unlock()
		return ErrNoDataTypes
	}
	types := s.types
	if prev == ScreenMoreInfo {
		types = nil
		for _, dt := range s.types {
			if !s.results[dt].Imported() {
				types = append(types, dt)
			}
		}
	}
	profile := *s.profile
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.attempt++
	gen := s.attempt
	s.screen = ScreenImporting
	s.mu.Unlock()
	defer cancel()

	s.keyMu.Lock()
	if prev == ScreenMoreInfo {
		s.keyMaterial = nil
	}
	s.keyPrompted, s.keyErr = false, nil
	s.keyMu.Unlock()

	s.log.Info("import session %s: importing %v from %s", s.ID, types, profile.Path)
	outcomes := make([]typeOutcome, len(types))
	var wg sync.WaitGroup
	for i, dt := range types {
		wg.Add(1)
		guardReader(s.log, &wg, "import "+dt.String(), &outcomes[i], func() typeOutcome {
			return s.importType(ctx, dt, profile)
		})
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(gen) {
		for i, dt := range types {
			if outcomes[i].emitted {
				s.record(dt, outcomes[i].result)
			}
		}
		s.log.Info("import session %s: attempt cancelled, late results discarded", s.ID)
		return ErrCancelled
	}
	var reverted, denied bool
	for i, dt := range types {
		o := outcomes[i]
		switch {
		case o.reverted:
			reverted = true
		case o.dropped:
		default:
			s.record(dt, o.result)
			if o.result.Err != nil && o.result.Err.Category == dataimport.CategoryKeyMaterialDenied {
				denied = true
			}
		}
	}
	if err := ctx.Err(); err != nil {
		s.screen = prev
		return err
	}
	switch {
	case reverted:
		s.screen = prev
	case denied:
		s.screen = ScreenMoreInfo
	default:
		s.advanceAfter(-1)
	}
	s.log.Info("import session %s: now on %s", s.ID, s.screen)
	return nil
}

func (s *Session) importType(ctx context.Context, dt dataimport.DataType, profile profiles.BrowserProfile) typeOutcome {
	rd, ok := s.readers[readerKey{s.info.Family, dt}]
	if !ok {
		return failed(dataimport.Errorf(dataimport.CategoryNoData, "error: %s has no %s reader", s.info.Name, dt))
	}
	req := readRequest{profileDir: profile.Path}
	if rd.needsKey {
		key, ie := s.keyMaterialFor(ctx)
		if ie != nil {
			if ctx.Err() != nil {
				return typeOutcome{dropped: true}
			}
			return failed(ie)
		}
		req.keyMaterial = key
	}
	for {
		recs, err := rd.read(ctx, req)
		if ctx.Err() != nil {
			return typeOutcome{dropped: true}
		}
		if err == nil {
			s.log.Info("import session %s: read %s", s.ID, recs)
			return s.emit(ctx, dt, recs)
		}
		ie := dataimport.AsImportError(err, dataimport.CategoryDataCorrupted)
		if ie.Category != dataimport.CategoryRequiresSecondaryPassword || s.deps.Prompt == nil {
			s.log.Warning("import session %s: %s failed: %v", s.ID, dt, ie)
			return failed(ie)
		}
		s.log.Info("import session %s: %s store is locked, requesting secondary password", s.ID, dt)
		password, ok := s.deps.Prompt.RequestPassword(ctx, s.source)
		if !ok {
			s.log.Info("import session %s: secondary password declined", s.ID)
			return typeOutcome{reverted: true}
		}
		req.password = password
	}
}

// keyMaterialFor queries the provider at most once per attempt and keeps
// the material for later attempts.
func (s *Session) keyMaterialFor(ctx context.Context) ([]byte, *dataimport.ImportError) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if s.keyMaterial != nil {
		return s.keyMaterial, nil
	}
	if s.keyPrompted {
		return nil, s.keyErr
	}
	s.keyPrompted = true
	if s.deps.Keys == nil {
		s.keyErr = dataimport.Errorf(dataimport.CategoryKeyMaterialDenied, "error: no key material provider")
		return nil, s.keyErr
	}
	key, err := s.deps.Keys.KeyMaterial(ctx, s.source)
	if err != nil {
		s.keyErr = classifyKeyError(err)
		s.log.Warning("import session %s: key material unavailable: %v", s.ID, s.keyErr)
		return nil, s.keyErr
	}
	s.keyMaterial = key
	return key, nil
}

// emit hands complete records to the destination. The context is only
// checked before the first record; once emission starts it runs to the
// end so the destination never holds part of a result.
func (s *Session) emit(ctx context.Context, dt dataimport.DataType, recs records) typeOutcome {
	if ctx.Err() != nil {
		return typeOutcome{dropped: true}
	}
	ctx = context.WithoutCancel(ctx)
	var sum dataimport.Summary
	switch dt {
	case dataimport.Passwords:
		total := len(recs.credentials)
		for i, cred := range recs.credentials {
			outcome, err := s.deps.Vault.Store(ctx, cred)
			if err != nil {
				s.log.Warning("import session %s: vault rejected a credential: %v", s.ID, err)
				outcome = dataimport.StoreFailed
			}
			sum.Count(outcome)
			s.progress(dt, i+1, total)
		}
	case dataimport.Bookmarks:
		if recs.tree == nil {
			recs.tree = dataimport.NewBookmarkTree()
		}
		total := recs.tree.Leaves()
		got, err := s.deps.Bookmarks.ImportBookmarks(ctx, recs.tree, s.bookmarkLabel())
		if err != nil {
			s.log.Warning("import session %s: bookmark import failed: %v", s.ID, err)
			got = dataimport.Summary{Failed: total}
		}
		sum = got
		s.progress(dt, total, total)
	}
	s.log.Info("import session %s: %s: %s", s.ID, dt, sum)
	return typeOutcome{result: dataimport.Success(sum), emitted: true}
}

func (s *Session) progress(dt dataimport.DataType, done, total int) {
	if s.deps.Progress != nil {
		s.deps.Progress(dt, done, total)
	}
}

func (s *Session) bookmarkLabel() string {
	if s.deps.BookmarkLabel != "" {
		return s.deps.BookmarkLabel
	}
	return "Imported from " + s.info.Name
}

// ImportFile reads the export file at path for the data type the file
// import screen asks for, then moves on to the next fallback type or the
// final screen.
func (s *Session) ImportFile(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.screen != ScreenFileImport {
		defer s.mu.Unlock()
		return fmt.Errorf("error: %w: %s", ErrWrongScreen, s.screen)
	}
	dt := s.fileType
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.attempt++
	gen := s.attempt
	s.screen = ScreenImporting
	s.mu.Unlock()
	defer cancel()

	s.log.Info("import session %s: importing %s from file", s.ID, dt)
	var out typeOutcome
	var wg sync.WaitGroup
	wg.Add(1)
	guardReader(s.log, &wg, "import file "+dt.String(), &out, func() typeOutcome {
		return s.importFile(ctx, dt, path)
	})
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(gen) {
		if out.emitted {
			s.record(dt, out.result)
		}
		return ErrCancelled
	}
	if out.dropped {
		s.screen = ScreenFileImport
		return ctx.Err()
	}
	s.record(dt, out.result)
	s.advanceAfter(s.indexOf(dt))
	return nil
}

func (s *Session) importFile(ctx context.Context, dt dataimport.DataType, path string) typeOutcome {
	format, err := stores.DetectFileFormat(path)
	if err != nil {
		return failed(dataimport.NewError(dataimport.CategoryNoData, err))
	}
	if ie := checkFileFormat(dt, format); ie != nil {
		return failed(ie)
	}
	read, ok := s.files[dt]
	if !ok {
		return failed(dataimport.Errorf(dataimport.CategoryNoData, "error: no file reader for %s", dt))
	}
	f, err := os.Open(path)
	if err != nil {
		return failed(dataimport.NewError(dataimport.CategoryNoData, fmt.Errorf("error: cannot open file: %w", err)))
	}
	defer f.Close()

	recs, err := read(ctx, f, s.source)
	if ctx.Err() != nil {
		return typeOutcome{dropped: true}
	}
	if err != nil {
		return failed(dataimport.AsImportError(err, dataimport.CategoryDataCorrupted))
	}
	return s.emit(ctx, dt, recs)
}

// Skip leaves the current fallback type as it is and moves on. From the
// more-info screen it gives up on the key material and goes to file
// import.
func (s *Session) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.screen {
	case ScreenFileImport:
		s.advanceAfter(s.indexOf(s.fileType))
	case ScreenMoreInfo:
		s.advanceAfter(-1)
	default:
		return fmt.Errorf("error: %w: %s", ErrWrongScreen, s.screen)
	}
	return nil
}

// Cancel ends the session. Recorded results are kept; an attempt still
// running is cancelled and its results are discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = ScreenCancelled
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("import session %s: cancelled", s.ID)
}

// Report aggregates the unresolved errors: the last failure of each type
// that no later attempt imported records for. It is nil when there are
// none.
func (s *Session) Report() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var merr *multierror.Error
	for _, dt := range dataimport.AllDataTypes {
		if ie, ok := s.failures[dt]; ok {
			merr = multierror.Append(merr, ie)
		}
	}
	if merr == nil {
		return nil
	}
	id := s.ID
	merr.ErrorFormat = func(es []error) string {
		return fmt.Sprintf("import session %s: %s", id, multierror.ListFormatFunc(es))
	}
	return merr.ErrorOrNil()
}

// record overwrites the result of dt. A failure stays unresolved until a
// later result for dt imports records. Callers hold s.mu.
func (s *Session) record(dt dataimport.DataType, r dataimport.Result) {
	switch {
	case r.Err != nil:
		r.Err = r.Err.WithType(dt)
		s.failures[dt] = r.Err
	case r.Imported():
		delete(s.failures, dt)
	}
	s.results[dt] = r
}

// stale reports whether attempt gen was cancelled or superseded.
// Callers hold s.mu.
func (s *Session) stale(gen int) bool {
	return s.screen == ScreenCancelled || gen != s.attempt
}

func (s *Session) indexOf(dt dataimport.DataType) int {
	for i, t := range s.types {
		if t == dt {
			return i
		}
	}
	return len(s.types)
}

// advanceAfter moves to the file import screen for the first type after
// index i that has nothing imported, or to the final screen.
// Callers hold s.mu.
func (s *Session) advanceAfter(i int) {
	if i+1 < len(s.types) {
		for _, dt := range s.types[i+1:] {
			if !s.results[dt].Imported() {
				s.screen = ScreenFileImport
				s.fileType = dt
				return
			}
		}
	}
	s.screen = ScreenSummary
	if len(s.failures) > 0 {
		s.screen = ScreenFeedback
	}
}
