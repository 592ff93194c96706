package verification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/verification"
)

const (
	timeoutWait = time.Second
	tick        = 5 * time.Millisecond
)

type fakeGateway struct {
	mu sync.Mutex

	projects map[string]*service.Project

	fetchErr  error
	saveErr   error
	verifyErr error

	saves    []saveCall
	verifies []string

	// block, when set, is waited on inside every gateway call.
	block chan struct{}
}

type saveCall struct {
	Table       string
	Description string
	Columns     []service.Column
}

func newFakeGateway(key string, p *service.Project) *fakeGateway {
	return &fakeGateway{
		projects: map[string]*service.Project{key: p},
	}
}

func (f *fakeGateway) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeGateway) FetchProject(_ context.Context, key string) (*service.Project, error) {
	f.wait()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	p, ok := f.projects[key]
	if !ok {
		return nil, errs.E(errs.IO, errs.Op("fake.FetchProject"), errs.Detail("Project not found"), errs.Str("404"))
	}

	return p.Copy(), nil
}

func (f *fakeGateway) SaveTable(_ context.Context, key, table, description string, columns []service.Column) error {
	f.wait()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}

	f.saves = append(f.saves, saveCall{Table: table, Description: description, Columns: service.CopyColumns(columns)})

	p := f.projects[key]
	for i := range p.Tables {
		if p.Tables[i].Name == table {
			p.Tables[i].Description = description
			p.Tables[i].Columns = service.CopyColumns(columns)
		}
	}

	return nil
}

func (f *fakeGateway) VerifyTable(_ context.Context, key, table string) error {
	f.wait()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.verifyErr != nil {
		return f.verifyErr
	}

	f.verifies = append(f.verifies, table)

	p := f.projects[key]
	for i := range p.Tables {
		if p.Tables[i].Name == table {
			p.Tables[i].Verified = true
		}
	}

	return nil
}

func table(name string, verified bool, columns ...string) service.Table {
	t := service.Table{
		Name:        name,
		Description: name + " description",
		Verified:    verified,
	}

	for _, c := range columns {
		t.Columns = append(t.Columns, service.Column{Name: c, Description: c + " description"})
	}

	return t
}

func threeTables() *service.Project {
	return &service.Project{
		ID:   "p1",
		Name: "shop",
		Tables: []service.Table{
			table("T1", true, "id"),
			table("T2", false, "id", "name"),
			table("T3", false, "id", "total"),
		},
	}
}

func current(t *testing.T, s *verification.Session) int {
	t.Helper()

	idx, ok := s.CurrentIndex()
	require.True(t, ok)

	return idx
}

func TestSession_ThreeTableScenario(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())

	completions := 0
	s := verification.New(gw, verification.WithOnComplete(func(*service.Project, verification.CompletionSource) { completions++ }))

	require.NoError(t, s.Initialize(context.Background(), "shop"))

	assert.Equal(t, 1, current(t, s))
	assert.Equal(t, 2, s.UnverifiedCount())
	assert.Equal(t, 33, s.ProgressPercent())
	assert.False(t, s.AllVerified())
	assert.Equal(t, "T2 description", s.Buffer().Description)

	require.NoError(t, s.Verify(context.Background()))

	assert.Equal(t, 2, current(t, s))
	assert.Equal(t, 1, s.UnverifiedCount())
	assert.Equal(t, 67, s.ProgressPercent())
	assert.Equal(t, "T3 description", s.Buffer().Description)
	assert.Equal(t, []string{"T2"}, gw.verifies)

	require.NoError(t, s.Verify(context.Background()))

	assert.Equal(t, 2, current(t, s))
	assert.Equal(t, 0, s.UnverifiedCount())
	assert.Equal(t, 100, s.ProgressPercent())
	assert.True(t, s.AllVerified())
	assert.Equal(t, 1, completions)

	for i := 0; i < 5; i++ {
		_ = s.State()
		_ = s.AllVerified()
	}

	assert.Equal(t, 1, completions)

	state := s.State()
	assert.True(t, state.Completed)
	assert.Equal(t, 1500, state.RedirectAfterMs)
}

func TestSession_SingleTable(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("one", &service.Project{ID: "1", Name: "one", Tables: []service.Table{table("only", false, "id")}})

	var completed []*service.Project
	var sources []verification.CompletionSource
	s := verification.New(gw, verification.WithOnComplete(func(p *service.Project, source verification.CompletionSource) {
		completed = append(completed, p)
		sources = append(sources, source)
	}))

	require.NoError(t, s.Initialize(context.Background(), "one"))
	require.NoError(t, s.Verify(context.Background()))

	assert.Equal(t, 0, current(t, s))
	assert.True(t, s.AllVerified())
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Tables[0].Verified)
	assert.Equal(t, []verification.CompletionSource{verification.CompletedByVerify}, sources)

	assert.ErrorIs(t, s.Verify(context.Background()), verification.ErrAlreadyVerified)
	assert.Len(t, completed, 1)
}

func TestSession_InitializeAlreadyVerified(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("done", &service.Project{Tables: []service.Table{table("a", true), table("b", true)}})

	var sources []verification.CompletionSource
	s := verification.New(gw, verification.WithOnComplete(func(_ *service.Project, source verification.CompletionSource) {
		sources = append(sources, source)
	}))

	require.NoError(t, s.Initialize(context.Background(), "done"))

	assert.Equal(t, 0, current(t, s))
	assert.True(t, s.AllVerified())
	assert.Equal(t, []verification.CompletionSource{verification.CompletedOnLoad}, sources)

	require.NoError(t, s.Initialize(context.Background(), "done"))
	assert.Equal(t, []verification.CompletionSource{verification.CompletedOnLoad, verification.CompletedOnLoad}, sources)
}

func TestSession_EmptyProject(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("empty", &service.Project{ID: "e", Name: "empty"})

	completions := 0
	s := verification.New(gw, verification.WithOnComplete(func(*service.Project, verification.CompletionSource) { completions++ }))

	require.NoError(t, s.Initialize(context.Background(), "empty"))

	_, ok := s.CurrentIndex()
	assert.False(t, ok)
	assert.Equal(t, 0, s.ProgressPercent())
	assert.Equal(t, 0, s.UnverifiedCount())
	assert.False(t, s.AllVerified())
	assert.Equal(t, 0, completions)

	assert.ErrorIs(t, s.EditDescription("x"), verification.ErrNoCurrentTable)
	assert.ErrorIs(t, s.Save(context.Background()), verification.ErrNoCurrentTable)
	assert.ErrorIs(t, s.Verify(context.Background()), verification.ErrNoCurrentTable)
	assert.ErrorIs(t, s.NavigateTo(0), verification.ErrTableIndex)
}

func TestSession_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))

	require.NoError(t, s.EditDescription("customers of the shop"))
	require.NoError(t, s.EditColumnDescription(1, "full name"))
	assert.True(t, s.Dirty())

	require.NoError(t, s.Save(context.Background()))
	assert.False(t, s.Dirty())

	require.NoError(t, s.NavigateTo(2))
	assert.Equal(t, "T3 description", s.Buffer().Description)

	require.NoError(t, s.NavigateTo(1))

	want := service.EditBuffer{
		Description: "customers of the shop",
		Columns: []service.Column{
			{Name: "id", Description: "id description"},
			{Name: "name", Description: "full name"},
		},
	}

	if diff := cmp.Diff(want, s.Buffer()); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, gw.saves, 1)
	assert.Equal(t, "T2", gw.saves[0].Table)

	s2 := verification.New(gw)
	require.NoError(t, s2.Initialize(context.Background(), "shop"))
	assert.Equal(t, "customers of the shop", s2.Buffer().Description)
}

func TestSession_SaveFailure(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())

	var notified []*verification.Error
	s := verification.New(gw, verification.WithOnError(func(e *verification.Error) { notified = append(notified, e) }))

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.EditDescription("new"))

	before := s.Project()
	gw.saveErr = errs.E(errs.IO, errs.Op("fake"), errs.Str("500"))

	err := s.Save(context.Background())

	var verr *verification.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verification.SaveFailed, verr.Kind)
	assert.Equal(t, verification.DefaultSaveDetail, verr.Detail)

	assert.True(t, s.Dirty())
	assert.Equal(t, "new", s.Buffer().Description)
	assert.False(t, s.Saving())

	if diff := cmp.Diff(before, s.Project()); diff != "" {
		t.Errorf("project changed (-before +after):\n%s", diff)
	}

	require.NotNil(t, s.Err())
	assert.Equal(t, verification.SaveFailed, s.Err().Kind)
	require.Len(t, notified, 1)

	gw.saveErr = nil
	require.NoError(t, s.Save(context.Background()))
	assert.Nil(t, s.Err())
	assert.False(t, s.Dirty())
}

func TestSession_FetchFailure(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		key    string
		err    error
		detail string
	}{
		{
			name:   "detail from gateway",
			key:    "missing",
			detail: "Project not found",
		},
		{
			name:   "generic detail",
			key:    "shop",
			err:    errors.New("connection refused"),
			detail: verification.DefaultFetchDetail,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gw := newFakeGateway("shop", threeTables())
			gw.fetchErr = tc.err

			s := verification.New(gw)

			err := s.Initialize(context.Background(), tc.key)

			var verr *verification.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, verification.FetchFailed, verr.Kind)
			assert.Equal(t, tc.detail, verr.Detail)

			assert.Nil(t, s.Project())
			assert.False(t, s.Loading())

			state := s.State()
			require.NotNil(t, state.Error)
			assert.Equal(t, "FetchFailed", state.Error.Kind)
			assert.Equal(t, tc.detail, state.Error.Detail)
		})
	}
}

func TestSession_VerifyFailure(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))

	gw.verifyErr = errs.E(errs.IO, errs.Op("fake"), errs.Detail("Table locked"), errs.Str("409"))

	err := s.Verify(context.Background())

	var verr *verification.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verification.VerifyFailed, verr.Kind)
	assert.Equal(t, "Table locked", verr.Detail)

	assert.Equal(t, 1, current(t, s))
	assert.Equal(t, 2, s.UnverifiedCount())

	tbl, ok := s.CurrentTable()
	require.True(t, ok)
	assert.False(t, tbl.Verified)
}

func TestSession_VerifiedTableIsReadOnly(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.NavigateTo(0))

	before := s.Buffer()

	assert.ErrorIs(t, s.EditDescription("changed"), verification.ErrReadOnly)
	assert.ErrorIs(t, s.EditColumnDescription(0, "changed"), verification.ErrReadOnly)
	assert.ErrorIs(t, s.Verify(context.Background()), verification.ErrAlreadyVerified)

	if diff := cmp.Diff(before, s.Buffer()); diff != "" {
		t.Errorf("buffer changed (-before +after):\n%s", diff)
	}

	assert.False(t, s.Dirty())
}

func TestSession_EditDoesNotAliasProject(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.EditColumnDescription(0, "primary key"))

	tbl, ok := s.CurrentTable()
	require.True(t, ok)
	assert.Equal(t, "id description", tbl.Columns[0].Description)

	buf := s.Buffer()
	buf.Columns[0].Description = "mutated outside"
	assert.Equal(t, "primary key", s.Buffer().Columns[0].Description)
}

func TestSession_ColumnIndexOutOfRange(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))

	assert.ErrorIs(t, s.EditColumnDescription(5, "x"), verification.ErrColumnIndex)
	assert.ErrorIs(t, s.EditColumnDescription(-1, "x"), verification.ErrColumnIndex)
	assert.False(t, s.Dirty())
}

func TestSession_NavigateDiscardsEdits(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.EditDescription("draft"))

	require.NoError(t, s.NavigateTo(2))
	require.NoError(t, s.NavigateTo(1))

	assert.False(t, s.Dirty())
	assert.Equal(t, "T2 description", s.Buffer().Description)
	assert.ErrorIs(t, s.NavigateTo(3), verification.ErrTableIndex)
	assert.Empty(t, gw.saves)
}

func TestSession_VerifyDiscardsUnsavedEdits(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.EditDescription("draft"))
	require.NoError(t, s.Verify(context.Background()))

	assert.Empty(t, gw.saves)

	require.NoError(t, s.NavigateTo(1))
	assert.Equal(t, "T2 description", s.Buffer().Description)
}

func TestSession_SaveBeforeVerify(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw, verification.WithSaveBeforeVerify(true))

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.EditDescription("draft"))
	require.NoError(t, s.Verify(context.Background()))

	require.Len(t, gw.saves, 1)
	assert.Equal(t, "draft", gw.saves[0].Description)
	assert.Equal(t, []string{"T2"}, gw.verifies)

	require.NoError(t, s.NavigateTo(1))
	assert.Equal(t, "draft", s.Buffer().Description)
}

func TestSession_SaveBeforeVerifyFailure(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	gw.saveErr = errors.New("boom")

	s := verification.New(gw, verification.WithSaveBeforeVerify(true))

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.EditDescription("draft"))

	err := s.Verify(context.Background())

	var verr *verification.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verification.SaveFailed, verr.Kind)
	assert.Empty(t, gw.verifies)
	assert.True(t, s.Dirty())
}

func TestSession_ForwardOnlyScan(t *testing.T) {
	t.Parallel()

	p := &service.Project{Tables: []service.Table{table("a", false), table("b", false), table("c", false)}}
	gw := newFakeGateway("k", p)
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "k"))
	require.NoError(t, s.NavigateTo(2))
	require.NoError(t, s.Verify(context.Background()))

	assert.Equal(t, 2, current(t, s))
	assert.Equal(t, 2, s.UnverifiedCount())
	assert.False(t, s.AllVerified())
}

func TestSession_ProgressPercentBounds(t *testing.T) {
	t.Parallel()

	for total := 1; total <= 7; total++ {
		for verified := 0; verified <= total; verified++ {
			p := &service.Project{}
			for i := 0; i < total; i++ {
				p.Tables = append(p.Tables, table(string(rune('a'+i)), i < verified))
			}

			s := verification.New(newFakeGateway("k", p))
			require.NoError(t, s.Initialize(context.Background(), "k"))

			pct := s.ProgressPercent()
			assert.GreaterOrEqual(t, pct, 0)
			assert.LessOrEqual(t, pct, 100)
			assert.Equal(t, verified == total, s.AllVerified())
			assert.Equal(t, total-verified, s.UnverifiedCount())
		}
	}
}

func TestSession_LoadingObservable(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	gw.block = make(chan struct{})

	s := verification.New(gw)

	done := make(chan error)
	go func() {
		done <- s.Initialize(context.Background(), "shop")
	}()

	require.Eventually(t, s.Loading, timeoutWait, tick)

	close(gw.block)
	require.NoError(t, <-done)
	assert.False(t, s.Loading())
}

func TestSession_CloseDiscardsLateResults(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))
	require.NoError(t, s.EditDescription("draft"))

	gw.block = make(chan struct{})

	done := make(chan error)
	go func() {
		done <- s.Save(context.Background())
	}()

	require.Eventually(t, s.Saving, timeoutWait, tick)

	s.Close()
	close(gw.block)

	assert.ErrorIs(t, <-done, verification.ErrClosed)

	tbl, ok := s.CurrentTable()
	require.True(t, ok)
	assert.Equal(t, "T2 description", tbl.Description)
	assert.ErrorIs(t, s.Initialize(context.Background(), "shop"), verification.ErrClosed)
}

func TestSession_StateIsSnapshot(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway("shop", threeTables())
	s := verification.New(gw)

	require.NoError(t, s.Initialize(context.Background(), "shop"))

	state := s.State()
	state.Project.Tables[1].Description = "mutated"
	state.Buffer.Columns[0].Description = "mutated"

	tbl, _ := s.CurrentTable()
	assert.Equal(t, "T2 description", tbl.Description)
	assert.Equal(t, "id description", s.Buffer().Columns[0].Description)

	require.NotNil(t, state.CurrentIndex)
	assert.Equal(t, 1, *state.CurrentIndex)
	assert.Equal(t, "shop", state.ProjectKey)
	assert.Equal(t, 0, state.RedirectAfterMs)
}
