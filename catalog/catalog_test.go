package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ggoodman/appfunctions-go/functions"
	"github.com/ggoodman/appfunctions-go/metadata"
)

const notesYAML = `
id: createNote
packageName: com.example.notes
description: Creates a note
parameters:
  - name: title
    required: true
    type:
      type: string
response:
  type:
    type: string
`

const mailYAML = `
- id: send
  packageName: com.example.mail
  parameters:
    - name: to
      type:
        type: array
        items:
          type: string
- id: archive
  packageName: com.example.mail
  enabledByDefault: false
`

const timerJSON = `{"id":"start","packageName":"com.example.timer","parameters":[{"name":"seconds","required":true,"type":{"type":"long"}}]}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newService(t *testing.T) *functions.Service {
	t.Helper()
	svc, err := functions.NewService()
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func ids(metas []metadata.FunctionMetadata) []string {
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.PackageName + "/" + m.ID
	}
	return out
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.yaml", notesYAML)
	writeFile(t, dir, "mail.yml", mailYAML)
	writeFile(t, dir, "timer.json", timerJSON)
	writeFile(t, dir, "README.md", "ignored")

	svc := newService(t)
	c := New(dir, svc)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := ids(svc.List(""))
	want := []string{"com.example.mail/archive", "com.example.mail/send", "com.example.notes/createNote", "com.example.timer/start"}
	if len(got) != len(want) {
		t.Fatalf("loaded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("loaded %v, want %v", got, want)
		}
	}
	archive, _ := svc.Get("com.example.mail", "archive")
	if archive.EnabledByDefault {
		t.Fatalf("enabledByDefault: false should be honoured")
	}
	if fns := c.Functions(filepath.Join(dir, "mail.yml")); len(fns) != 2 {
		t.Fatalf("Functions(mail.yml) = %v", fns)
	}
}

func TestLoadReportsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.yaml", notesYAML)
	writeFile(t, dir, "broken.yaml", "id: [unterminated")
	writeFile(t, dir, "dangling.json", `{"id":"x","packageName":"p","parameters":[{"name":"a","type":{"type":"reference","$ref":"Missing"}}]}`)

	svc := newService(t)
	err := New(dir, svc).Load(context.Background())
	if err == nil {
		t.Fatalf("expected errors for broken files")
	}
	if _, ok := svc.Get("com.example.notes", "createNote"); !ok {
		t.Fatalf("valid files should still load")
	}
	if len(svc.List("")) != 1 {
		t.Fatalf("broken files should not contribute functions: %v", ids(svc.List("")))
	}
}

func TestLoadRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	mail := writeFile(t, dir, "mail.yaml", mailYAML)
	svc := newService(t)
	c := New(dir, svc)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// shrink the file: archive goes away
	writeFile(t, dir, "mail.yaml", "id: send\npackageName: com.example.mail\n")
	if err := c.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := svc.Get("com.example.mail", "archive"); ok {
		t.Fatalf("archive should be removed")
	}

	if err := os.Remove(mail); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(svc.List("")) != 0 {
		t.Fatalf("removed file should unload its functions: %v", ids(svc.List("")))
	}
}

func TestSharedDeclarationSurvives(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", notesYAML)
	writeFile(t, dir, "b.yaml", notesYAML)
	svc := newService(t)
	c := New(dir, svc)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = os.Remove(a)
	if err := c.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := svc.Get("com.example.notes", "createNote"); !ok {
		t.Fatalf("function still declared by b.yaml should stay loaded")
	}
}

func TestMultiDocumentYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "multi.yaml", notesYAML+"\n---\n"+timerJSON+"\n")
	metas, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(metas) != 2 || metas[1].ID != "start" {
		t.Fatalf("ReadFile = %v", ids(metas))
	}
	bad := writeFile(t, dir, "scalar.yaml", "just a string\n")
	if _, err := ReadFile(bad); err == nil {
		t.Fatalf("scalar document should be rejected")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t)
	c := New(dir, svc, WithDebounce(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	w, err := c.openWatcher()
	if err != nil {
		t.Fatalf("openWatcher: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- c.run(ctx, w) }()

	sub := svc.Subscriber()
	path := writeFile(t, dir, "notes.yaml", notesYAML)
	waitFor(t, sub, func() bool {
		_, ok := svc.Get("com.example.notes", "createNote")
		return ok
	})

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, sub, func() bool {
		_, ok := svc.Get("com.example.notes", "createNote")
		return !ok
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Watch did not stop on cancel")
	}
}

func waitFor(t *testing.T, sub <-chan struct{}, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-sub:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("condition not reached")
		}
	}
}
