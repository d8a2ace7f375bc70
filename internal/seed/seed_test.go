package seed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagecms/app/internal/pages"
)

const sampleSeed = `
actor: importer
pages:
  - url: Home
    content: |
      <html><head><title>x</title></head><body><p onclick="steal()">Welcome</p><script>alert(1)</script></body></html>
    parameters:
      - name: layout
        value: wide
      - name: ""
        value: dropped-later
  - url: "  "
    content: nothing
  - url: About
    content: About us
`

func TestParseReadsEntries(t *testing.T) {
	t.Parallel()

	file, err := Parse(strings.NewReader(sampleSeed))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if file.Actor != "importer" {
		t.Fatalf("expected actor importer, got %q", file.Actor)
	}
	if len(file.Pages) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(file.Pages))
	}
	if len(file.Pages[0].Parameters) != 2 || file.Pages[0].Parameters[0].Name != "layout" {
		t.Fatalf("unexpected parameters %#v", file.Pages[0].Parameters)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := Parse(strings.NewReader("pages:\n  - uri: typo\n")); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseEmptyDocument(t *testing.T) {
	t.Parallel()

	file, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(file.Pages) != 0 {
		t.Fatalf("expected no entries, got %d", len(file.Pages))
	}
}

func TestCleanContentStripsUnsafeMarkup(t *testing.T) {
	t.Parallel()

	cleaned, err := cleanContent(`<!DOCTYPE html><html><head><style>p{}</style></head><body><!-- note --><p onclick="x()">Hi</p><a href="javascript:alert(1)">link</a><script>bad()</script></body></html>`)
	if err != nil {
		t.Fatalf("cleanContent returned error: %v", err)
	}

	expected := `<p>Hi</p><a>link</a>`
	if cleaned != expected {
		t.Fatalf("expected %q, got %q", expected, cleaned)
	}

	empty, err := cleanContent("   ")
	if err != nil || empty != "" {
		t.Fatalf("expected blank content to stay empty, got %q err=%v", empty, err)
	}
}

func TestApplyEditsExistingAndNewPages(t *testing.T) {
	t.Parallel()

	existing := &pages.Page{URL: "Home", Content: "old"}
	existing.ID = 9

	editor := &recordingEditor{pages: map[string]*pages.Page{"Home": existing}}
	importer := newTestImporter(t, editor)

	file, err := Parse(strings.NewReader(sampleSeed))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	result, err := importer.Apply(context.Background(), file)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if result.Applied != 2 || result.Skipped != 1 {
		t.Fatalf("expected 2 applied and 1 skipped, got %#v", result)
	}

	edits := editor.snapshot()
	if len(edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(edits))
	}

	home := edits[0]
	if home.page != existing || home.created {
		t.Fatalf("expected existing page to be updated in place")
	}
	if home.actor != "importer" {
		t.Fatalf("expected actor importer, got %q", home.actor)
	}
	if home.page.Content != "<p>Welcome</p>" {
		t.Fatalf("expected cleaned content, got %q", home.page.Content)
	}
	if len(home.page.Parameters) != 2 {
		t.Fatalf("expected parameters to be forwarded untouched, got %d", len(home.page.Parameters))
	}

	about := edits[1]
	if !about.created || about.page.URL != "About" {
		t.Fatalf("expected a new About page, got %#v", about.page)
	}
}

func TestApplyStopsOnEditError(t *testing.T) {
	t.Parallel()

	editor := &recordingEditor{err: eris.New("rejected")}
	importer := newTestImporter(t, editor)

	file := &File{Pages: []Entry{{URL: "a"}, {URL: "b"}}}
	result, err := importer.Apply(context.Background(), file)
	if err == nil {
		t.Fatalf("expected edit error to be returned")
	}
	if result.Applied != 0 {
		t.Fatalf("expected no applied entries, got %d", result.Applied)
	}
	if len(editor.snapshot()) != 1 {
		t.Fatalf("expected import to stop after the first failure")
	}
}

func TestWatchReappliesOnWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "pages.yaml")
	writeSeed(t, path, "pages:\n  - url: Home\n    content: v1\n")

	editor := &recordingEditor{}
	importer := newTestImporter(t, editor)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- importer.Watch(ctx, path)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(editor.snapshot()) == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("expected watcher to publish after the seed file changed")
		}
		writeSeed(t, path, "pages:\n  - url: Home\n    content: v2\n")
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}

	edits := editor.snapshot()
	if edits[0].page.URL != "Home" {
		t.Fatalf("expected Home edit, got %#v", edits[0].page)
	}
}

func TestNewImporterRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := NewImporter(ImporterOptions{}); err == nil {
		t.Fatalf("expected error when editor is nil")
	}
}

func newTestImporter(t *testing.T, editor Editor) *Importer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	importer, err := NewImporter(ImporterOptions{Editor: editor, Logger: logger})
	if err != nil {
		t.Fatalf("NewImporter returned error: %v", err)
	}
	return importer
}

func writeSeed(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing seed file failed: %v", err)
	}
}

type editCall struct {
	actor   string
	page    *pages.Page
	created bool
}

type recordingEditor struct {
	mu    sync.Mutex
	pages map[string]*pages.Page
	edits []editCall
	err   error
}

func (e *recordingEditor) Edit(_ context.Context, url, actor string, change func(page *pages.Page)) (*pages.Page, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	page, ok := e.pages[url]
	if !ok {
		page = &pages.Page{URL: url}
	}
	e.edits = append(e.edits, editCall{actor: actor, page: page, created: !ok})
	if e.err != nil {
		return nil, false, e.err
	}

	change(page)
	return page, !ok, nil
}

func (e *recordingEditor) snapshot() []editCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]editCall(nil), e.edits...)
}
