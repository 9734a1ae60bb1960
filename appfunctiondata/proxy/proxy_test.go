package proxy

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/ggoodman/appfunctions-go/appfunctiondata"
	"github.com/ggoodman/appfunctions-go/metadata"
)

func newRegistry(t *testing.T) *appfunctiondata.Registry {
	t.Helper()
	r := appfunctiondata.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func TestLocalDateTimeRoundTrip(t *testing.T) {
	r := newRegistry(t)
	in := time.Date(2024, time.February, 29, 13, 45, 7, 123456789, time.Local)

	d, err := appfunctiondata.Serialize(r, in)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if d.QualifiedName() != LocalDateTimeQualifiedName {
		t.Fatalf("qualified name = %q", d.QualifiedName())
	}
	if day, err := d.GetInt("dayOfMonth"); err != nil || day != 29 {
		t.Fatalf("dayOfMonth = %v, %v", day, err)
	}
	out, err := appfunctiondata.Deserialize[time.Time](r, d)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("round trip = %v, want %v", out, in)
	}
}

func TestURIRoundTrip(t *testing.T) {
	r := newRegistry(t)
	in, _ := url.Parse("content://com.example.notes/notes/1?x=y")

	d, err := r.SerializeNamed(URIQualifiedName, in)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := appfunctiondata.Deserialize[*url.URL](r, d)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if out.String() != in.String() {
		t.Fatalf("round trip = %v, want %v", out, in)
	}
	if _, err := appfunctiondata.Serialize[*url.URL](r, nil); !errors.Is(err, appfunctiondata.ErrSerialization) {
		t.Fatalf("nil URL should fail, got %v", err)
	}
}

func TestProxyNestsInObjects(t *testing.T) {
	r := newRegistry(t)
	event := &metadata.ObjectType{
		QualifiedName: "com.example.Event",
		Properties: []metadata.Property{
			{Name: "start", Type: metadata.Ref(LocalDateTimeQualifiedName)},
			{Name: "link", Type: metadata.Ref(URIQualifiedName)},
		},
	}
	start, err := appfunctiondata.Serialize(r, time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local))
	if err != nil {
		t.Fatalf("serialize start: %v", err)
	}
	b := appfunctiondata.NewBuilder(event, Components())
	if err := b.SetData("start", start); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	got, err := b.Build().GetData("start")
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	when, err := appfunctiondata.Deserialize[time.Time](r, got)
	if err != nil || when.Year() != 2025 || when.Second() != 5 {
		t.Fatalf("start = %v, %v", when, err)
	}
}

func TestRegisterTwice(t *testing.T) {
	r := newRegistry(t)
	if err := Register(r); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
