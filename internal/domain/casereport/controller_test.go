package casereport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"cattle-case-report/internal/ports/casesapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -------------------------
// Fakes
// -------------------------

type testPreviews struct {
	mu       sync.Mutex
	next     int
	live     map[string]Preview
	released []string
	failAt   int // 0 = nunca; n = falla en el n-ésimo Acquire
}

func newTestPreviews() *testPreviews {
	return &testPreviews{live: map[string]Preview{}}
}

func (p *testPreviews) Acquire(ctx context.Context, pv Preview) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	if p.failAt != 0 && p.next == p.failAt {
		return "", errors.New("previews: full")
	}
	h := fmt.Sprintf("h%d", p.next)
	p.live[h] = pv
	return h, nil
}

func (p *testPreviews) Get(ctx context.Context, handle string) (Preview, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pv, ok := p.live[handle]
	if !ok {
		return Preview{}, errors.New("previews: not found")
	}
	return pv, nil
}

func (p *testPreviews) Release(ctx context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, handle)
	p.released = append(p.released, handle)
	return nil
}

func (p *testPreviews) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

type testBackend struct {
	mu sync.Mutex

	diseases   []casesapi.Disease
	listErr    error
	submitMsg  string
	submitErr  error
	submitted  []casesapi.Submission
	listCalls  int
	block      chan struct{} // si no es nil, SubmitCase espera hasta cierre o cancelación
	submitting chan struct{} // se cierra cuando SubmitCase empieza
	listDelay  time.Duration
}

func (b *testBackend) ListDiseases(ctx context.Context) ([]casesapi.Disease, error) {
	if b.listDelay > 0 {
		select {
		case <-time.After(b.listDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.diseases, nil
}

func (b *testBackend) SubmitCase(ctx context.Context, s casesapi.Submission) (string, error) {
	b.mu.Lock()
	b.submitted = append(b.submitted, s)
	block, started := b.block, b.submitting
	b.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitMsg, b.submitErr
}

func (b *testBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submitted)
}

func newTestController(b *testBackend, p *testPreviews, rules Rules) *Controller {
	return NewController(ControllerOptions{
		Backend:  b,
		Previews: p,
		Rules:    rules,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
}

func files(names ...string) []casesapi.Attachment {
	out := make([]casesapi.Attachment, 0, len(names))
	for _, n := range names {
		out = append(out, casesapi.Attachment{Filename: n, ContentType: "image/jpeg", Data: []byte(n)})
	}
	return out
}

func filenames(s FormState) []string {
	out := make([]string, 0, len(s.Images))
	for _, img := range s.Images {
		out = append(out, img.File.Filename)
	}
	return out
}

func strp(s string) *string { return &s }

func fillValid(c *Controller) {
	c.Update(FieldsInput{
		Phone:         strp("01712345678"),
		Description:   strp("fever and drooling"),
		DoctorsAdvice: strp("isolate the animal"),
		Diagnosis:     strp("FMD"),
		Treatment:     strp("antiseptic wash"),
	})
	c.SetSelectedDisease("3")
}

// -------------------------
// Images
// -------------------------

func TestController_AddImages_AppendsInOrderWithoutDedup(t *testing.T) {
	p := newTestPreviews()
	c := newTestController(&testBackend{}, p, DefaultRules())
	defer c.Close()
	ctx := context.Background()

	if _, err := c.AddImages(ctx, files("a.jpg")); err != nil {
		t.Fatalf("AddImages error: %v", err)
	}
	added, err := c.AddImages(ctx, files("f1.jpg", "f2.jpg", "f1.jpg"))
	if err != nil {
		t.Fatalf("AddImages error: %v", err)
	}
	if len(added) != 3 {
		t.Fatalf("expected 3 added images, got %d", len(added))
	}

	want := []string{"a.jpg", "f1.jpg", "f2.jpg", "f1.jpg"}
	if diff := cmp.Diff(want, filenames(c.Snapshot())); diff != "" {
		t.Fatalf("images mismatch (-want +got):\n%s", diff)
	}
	if p.liveCount() != 4 {
		t.Fatalf("expected one preview per image, got %d", p.liveCount())
	}
	if added[0].PreviewURL != "/previews/"+added[0].Handle {
		t.Fatalf("unexpected preview url %s", added[0].PreviewURL)
	}
}

func TestController_AddImages_RollsBackOnPreviewFailure(t *testing.T) {
	p := newTestPreviews()
	p.failAt = 2
	c := newTestController(&testBackend{}, p, DefaultRules())
	defer c.Close()

	if _, err := c.AddImages(context.Background(), files("a.jpg", "b.jpg", "c.jpg")); err == nil {
		t.Fatalf("expected error")
	}
	if n := len(c.Snapshot().Images); n != 0 {
		t.Fatalf("expected no images after failed add, got %d", n)
	}
	if p.liveCount() != 0 {
		t.Fatalf("expected acquired previews released, got %d live", p.liveCount())
	}
}

func TestController_RemoveImage_ShiftsAndReleases(t *testing.T) {
	p := newTestPreviews()
	c := newTestController(&testBackend{}, p, DefaultRules())
	defer c.Close()
	ctx := context.Background()

	added, _ := c.AddImages(ctx, files("a", "b", "c", "d"))

	if !c.RemoveImage(ctx, 1) {
		t.Fatalf("expected removal")
	}

	if diff := cmp.Diff([]string{"a", "c", "d"}, filenames(c.Snapshot())); diff != "" {
		t.Fatalf("images mismatch (-want +got):\n%s", diff)
	}
	if _, err := p.Get(ctx, added[1].Handle); err == nil {
		t.Fatalf("expected removed preview to be released")
	}
	if p.liveCount() != 3 {
		t.Fatalf("expected 3 live previews, got %d", p.liveCount())
	}
}

func TestController_RemoveImage_OutOfRangeIsNoop(t *testing.T) {
	p := newTestPreviews()
	c := newTestController(&testBackend{}, p, DefaultRules())
	defer c.Close()
	ctx := context.Background()

	_, _ = c.AddImages(ctx, files("a", "b"))

	for _, idx := range []int{-1, 2, 99} {
		if c.RemoveImage(ctx, idx) {
			t.Fatalf("expected no-op for index %d", idx)
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, filenames(c.Snapshot())); diff != "" {
		t.Fatalf("images changed (-want +got):\n%s", diff)
	}
	if len(p.released) != 0 {
		t.Fatalf("expected no releases, got %v", p.released)
	}
}

func TestController_SetSelectedDisease_LastWriteWins(t *testing.T) {
	c := newTestController(&testBackend{}, newTestPreviews(), DefaultRules())
	defer c.Close()

	c.SetSelectedDisease("1")
	c.SetSelectedDisease("7")

	if got := c.Snapshot().SelectedDiseaseID; got != "7" {
		t.Fatalf("expected 7, got %s", got)
	}
}

func TestController_Update_NilFieldsUntouched(t *testing.T) {
	c := newTestController(&testBackend{}, newTestPreviews(), DefaultRules())
	defer c.Close()

	c.Update(FieldsInput{Phone: strp("017"), Treatment: strp("rest")})
	c.Update(FieldsInput{Phone: strp("01712345678")})

	s := c.Snapshot()
	if s.Phone != "01712345678" || s.Treatment != "rest" || s.Description != "" {
		t.Fatalf("unexpected state %+v", s)
	}
}

// -------------------------
// Submit
// -------------------------

func TestController_Submit_MissingFieldsNoNetwork(t *testing.T) {
	b := &testBackend{}
	c := newTestController(b, newTestPreviews(), DefaultRules())
	defer c.Close()

	fillValid(c)
	c.Update(FieldsInput{Diagnosis: strp("")})
	_, _ = c.AddImages(context.Background(), files("a"))

	_, err := c.Submit(context.Background())
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if b.calls() != 0 {
		t.Fatalf("expected no network call")
	}

	notices := c.DrainNotices()
	if len(notices) != 1 || notices[0].Kind != NoticeError || notices[0].Message != "Please fill in all required fields" {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestController_Submit_NoImagesHonorsRule(t *testing.T) {
	b := &testBackend{submitMsg: "OK"}

	strict := newTestController(b, newTestPreviews(), DefaultRules())
	defer strict.Close()
	fillValid(strict)
	if _, err := strict.Submit(context.Background()); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields with RequireImages, got %v", err)
	}

	lenient := newTestController(b, newTestPreviews(), Rules{RequireImages: false})
	defer lenient.Close()
	fillValid(lenient)
	if _, err := lenient.Submit(context.Background()); err != nil {
		t.Fatalf("expected submit without images to pass, got %v", err)
	}
	if b.calls() != 1 {
		t.Fatalf("expected exactly one network call, got %d", b.calls())
	}
}

func TestController_Submit_InvalidPhoneNoNetwork(t *testing.T) {
	b := &testBackend{}
	c := newTestController(b, newTestPreviews(), DefaultRules())
	defer c.Close()

	fillValid(c)
	c.Update(FieldsInput{Phone: strp("123")})
	_, _ = c.AddImages(context.Background(), files("a"))

	_, err := c.Submit(context.Background())
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if b.calls() != 0 {
		t.Fatalf("expected no network call")
	}
	if n := c.DrainNotices(); len(n) != 1 || n[0].Message != "Invalid phone number" {
		t.Fatalf("unexpected notices %+v", n)
	}
}

func TestController_Submit_SuccessResetsEverything(t *testing.T) {
	b := &testBackend{submitMsg: "OK"}
	p := newTestPreviews()
	c := newTestController(b, p, DefaultRules())
	defer c.Close()

	fillValid(c)
	_, _ = c.AddImages(context.Background(), files("a.jpg", "b.jpg"))

	msg, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if msg != "OK" {
		t.Fatalf("expected OK, got %q", msg)
	}

	if diff := cmp.Diff(FormState{}, c.Snapshot()); diff != "" {
		t.Fatalf("expected empty form (-want +got):\n%s", diff)
	}
	if p.liveCount() != 0 {
		t.Fatalf("expected all previews released, got %d live", p.liveCount())
	}

	notices := c.DrainNotices()
	if len(notices) != 1 || notices[0].Kind != NoticeSuccess || notices[0].Message != "OK" {
		t.Fatalf("unexpected notices %+v", notices)
	}

	// payload
	sent := b.submitted[0]
	want := casesapi.Submission{
		UserPhone:    "01712345678",
		Description:  "fever and drooling",
		DoctorAdvice: "isolate the animal",
		Diagnosis:    "FMD",
		Treatment:    "antiseptic wash",
		DiseaseID:    "3",
		Images:       files("a.jpg", "b.jpg"),
	}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}
}

func TestController_Submit_FailureKeepsState(t *testing.T) {
	b := &testBackend{submitErr: &casesapi.RemoteError{Op: "submit case", StatusCode: http.StatusBadRequest, Message: "Bad phone"}}
	p := newTestPreviews()
	c := newTestController(b, p, DefaultRules())
	defer c.Close()

	fillValid(c)
	_, _ = c.AddImages(context.Background(), files("a.jpg"))
	before := c.Snapshot()

	_, err := c.Submit(context.Background())
	var re *casesapi.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}

	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Fatalf("state changed after failure (-before +after):\n%s", diff)
	}
	if p.liveCount() != 1 {
		t.Fatalf("expected preview kept, got %d live", p.liveCount())
	}

	notices := c.DrainNotices()
	if len(notices) != 1 || notices[0].Kind != NoticeError || notices[0].Message != "Bad phone" {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestController_Submit_TransportErrorUsesFallbackMessage(t *testing.T) {
	b := &testBackend{submitErr: errors.New("dial tcp: refused")}
	c := newTestController(b, newTestPreviews(), Rules{})
	defer c.Close()

	fillValid(c)
	if _, err := c.Submit(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if n := c.DrainNotices(); len(n) != 1 || n[0].Message != msgSubmitFailed {
		t.Fatalf("unexpected notices %+v", n)
	}
}

func TestController_Submit_RejectsConcurrentSubmit(t *testing.T) {
	b := &testBackend{submitMsg: "OK", block: make(chan struct{}), submitting: make(chan struct{})}
	c := newTestController(b, newTestPreviews(), Rules{})
	defer c.Close()
	fillValid(c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-b.submitting

	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress, got %v", err)
	}

	close(b.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit error: %v", err)
	}
	if b.calls() != 1 {
		t.Fatalf("expected one network call, got %d", b.calls())
	}
}

// -------------------------
// Diseases + lifecycle
// -------------------------

func TestController_LoadDiseases_ReplacesList(t *testing.T) {
	b := &testBackend{diseases: []casesapi.Disease{{ID: 1, Name: "Anthrax"}, {ID: 2, Name: "Mastitis"}}}
	c := newTestController(b, newTestPreviews(), DefaultRules())
	defer c.Close()

	if err := c.LoadDiseases(context.Background()); err != nil {
		t.Fatalf("LoadDiseases error: %v", err)
	}
	if diff := cmp.Diff(b.diseases, c.Diseases()); diff != "" {
		t.Fatalf("diseases mismatch (-want +got):\n%s", diff)
	}
	if n := c.DrainNotices(); len(n) != 0 {
		t.Fatalf("expected no notices, got %+v", n)
	}
}

func TestController_LoadDiseases_FailureSurfacesBanner(t *testing.T) {
	b := &testBackend{listErr: &casesapi.RemoteError{Op: "list diseases", StatusCode: 500, Message: "Could not load the disease list"}}
	c := newTestController(b, newTestPreviews(), DefaultRules())
	defer c.Close()

	if err := c.LoadDiseases(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(c.Diseases()) != 0 {
		t.Fatalf("expected empty disease list")
	}
	n := c.DrainNotices()
	if len(n) != 1 || n[0].Kind != NoticeWarning {
		t.Fatalf("expected one warning notice, got %+v", n)
	}
}

func TestController_Mount_LoadsAsynchronously(t *testing.T) {
	b := &testBackend{diseases: []casesapi.Disease{{ID: 4, Name: "Lumpy skin"}}}
	c := newTestController(b, newTestPreviews(), DefaultRules())

	c.Mount()

	deadline := time.Now().Add(2 * time.Second)
	for len(c.Diseases()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("diseases never loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Close()
}

func TestController_Close_AbortsInFlightSubmit(t *testing.T) {
	b := &testBackend{submitMsg: "OK", block: make(chan struct{}), submitting: make(chan struct{})}
	p := newTestPreviews()
	c := newTestController(b, p, DefaultRules())

	fillValid(c)
	_, _ = c.AddImages(context.Background(), files("a.jpg"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-b.submitting

	c.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("submit did not return after Close")
	}

	if p.liveCount() != 0 {
		t.Fatalf("expected previews released on Close, got %d", p.liveCount())
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
	if _, err := c.AddImages(context.Background(), files("b.jpg")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on AddImages, got %v", err)
	}
	if p.liveCount() != 0 {
		t.Fatalf("expected no previews leaked after closed add, got %d", p.liveCount())
	}

	// idempotente
	c.Close()
}

func TestController_NoticesAreCapped(t *testing.T) {
	c := newTestController(&testBackend{}, newTestPreviews(), DefaultRules())
	defer c.Close()

	for i := 0; i < maxNotices+5; i++ {
		_, _ = c.Submit(context.Background())
	}
	if n := c.DrainNotices(); len(n) != maxNotices {
		t.Fatalf("expected %d notices, got %d", maxNotices, len(n))
	}
	if n := c.DrainNotices(); len(n) != 0 {
		t.Fatalf("expected drained, got %d", len(n))
	}
}

func TestController_Validate_UsesControllerRules(t *testing.T) {
	c := newTestController(&testBackend{}, newTestPreviews(), Rules{RequireImages: false})
	defer c.Close()

	if res := c.Validate(); res.Reason != ReasonMissingFields {
		t.Fatalf("expected missing fields on empty form, got %q", res.Reason)
	}
	fillValid(c)
	if res := c.Validate(); !res.Valid() {
		t.Fatalf("expected valid without images, got %q", res.Reason)
	}
}

func TestController_WaitLoaded_ReleasedAfterWarningQueued(t *testing.T) {
	b := &testBackend{listErr: errors.New("dial tcp: refused")}
	c := newTestController(b, newTestPreviews(), DefaultRules())
	defer c.Close()

	c.Mount()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded error: %v", err)
	}

	// sin polling: al liberarse, el aviso ya está en cola
	n := c.DrainNotices()
	if len(n) != 1 || n[0].Kind != NoticeWarning {
		t.Fatalf("expected warning ready after load, got %+v", n)
	}
}

func TestController_WaitLoaded_BoundedByContext(t *testing.T) {
	c := newTestController(&testBackend{}, newTestPreviews(), DefaultRules())
	defer c.Close()

	// sin Mount no hay carga
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.WaitLoaded(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestController_WaitLoaded_ReleasedOnClose(t *testing.T) {
	c := newTestController(&testBackend{}, newTestPreviews(), DefaultRules())
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.WaitLoaded(ctx); err != nil {
		t.Fatalf("expected WaitLoaded to return after Close, got %v", err)
	}
}

func TestController_DrainNotices_ByKindKeepsOthers(t *testing.T) {
	b := &testBackend{listErr: errors.New("boom")}
	c := newTestController(b, newTestPreviews(), DefaultRules())
	defer c.Close()

	_ = c.LoadDiseases(context.Background())
	_, _ = c.Submit(context.Background()) // form vacío: error de validación

	got := c.DrainNotices(NoticeSuccess, NoticeError)
	if len(got) != 1 || got[0].Kind != NoticeError {
		t.Fatalf("expected only the submit error, got %+v", got)
	}

	rest := c.DrainNotices()
	if len(rest) != 1 || rest[0].Kind != NoticeWarning {
		t.Fatalf("expected warning left for the page, got %+v", rest)
	}
}

func TestController_Touch_RefreshesLastSeen(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewController(ControllerOptions{
		Backend:  &testBackend{},
		Previews: newTestPreviews(),
		Now:      func() time.Time { return now },
	})
	defer c.Close()

	now = now.Add(time.Hour)
	c.Touch()

	if !c.LastSeen().Equal(now) {
		t.Fatalf("expected lastSeen %v, got %v", now, c.LastSeen())
	}
}

func TestController_HasImage(t *testing.T) {
	c := newTestController(&testBackend{}, newTestPreviews(), DefaultRules())
	defer c.Close()

	added, _ := c.AddImages(context.Background(), files("a.jpg"))

	if !c.HasImage(added[0].Handle) {
		t.Fatalf("expected own handle")
	}
	if c.HasImage("other") {
		t.Fatalf("unexpected foreign handle")
	}
	c.RemoveImage(context.Background(), 0)
	if c.HasImage(added[0].Handle) {
		t.Fatalf("expected handle gone after remove")
	}
}

func TestController_CloseIfIdle(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("recent activity", func(t *testing.T) {
		c := newTestController(&testBackend{}, newTestPreviews(), DefaultRules())
		defer c.Close()

		if c.CloseIfIdle(t0.Add(-time.Minute)) {
			t.Fatalf("expected recent form kept")
		}
		if _, err := c.AddImages(context.Background(), files("a")); err != nil {
			t.Fatalf("expected form still open, got %v", err)
		}
	})

	t.Run("idle", func(t *testing.T) {
		p := newTestPreviews()
		c := newTestController(&testBackend{}, p, DefaultRules())
		_, _ = c.AddImages(context.Background(), files("a"))

		if !c.CloseIfIdle(t0.Add(time.Minute)) {
			t.Fatalf("expected idle form closed")
		}
		if p.liveCount() != 0 {
			t.Fatalf("expected previews released, got %d", p.liveCount())
		}
		if _, err := c.Submit(context.Background()); !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
		if c.CloseIfIdle(t0.Add(time.Minute)) {
			t.Fatalf("expected second call to report already closed")
		}
	})

	t.Run("submitting", func(t *testing.T) {
		b := &testBackend{submitMsg: "OK", block: make(chan struct{}), submitting: make(chan struct{})}
		c := newTestController(b, newTestPreviews(), Rules{})
		defer c.Close()
		fillValid(c)

		done := make(chan error, 1)
		go func() {
			_, err := c.Submit(context.Background())
			done <- err
		}()
		<-b.submitting

		if c.CloseIfIdle(t0.Add(time.Hour)) {
			t.Fatalf("expected in-flight submit to keep the form open")
		}
		close(b.block)
		if err := <-done; err != nil {
			t.Fatalf("submit error: %v", err)
		}
	})
}
