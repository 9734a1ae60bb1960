package appfunctiondata

import (
	"errors"
	"strings"
	"testing"

	"github.com/ggoodman/appfunctions-go/metadata"
)

func attachmentType() *metadata.ObjectType {
	return &metadata.ObjectType{
		QualifiedName: "com.example.Attachment",
		Properties: []metadata.Property{
			{Name: "uri", Type: metadata.String()},
			{Name: "preview", Type: metadata.PendingIntent()},
		},
		Required: []string{"uri"},
	}
}

func noteType() *metadata.ObjectType {
	return &metadata.ObjectType{
		QualifiedName: "com.example.Note",
		Properties: []metadata.Property{
			{Name: "title", Type: metadata.String()},
			{Name: "attachment", Type: metadata.Ref("com.example.Attachment")},
			{Name: "attachments", Type: metadata.ArrayOf(metadata.Ref("com.example.Attachment"))},
			{Name: "grant", Type: metadata.Ref(URIGrantQualifiedName)},
			{Name: "grants", Type: metadata.ArrayOf(metadata.Ref(URIGrantQualifiedName))},
			{Name: "broken", Type: metadata.Ref("com.example.Missing")},
		},
		Required: []string{"title"},
	}
}

func noteComponents() metadata.Components {
	return metadata.Components{DataTypes: map[string]metadata.DataType{
		"com.example.Attachment": attachmentType(),
		URIGrantQualifiedName:    URIGrantType(),
	}}
}

func buildAttachment(t *testing.T, uri string, preview PlatformHandle) *Data {
	t.Helper()
	b := NewBuilder(attachmentType(), metadata.Components{})
	must(t, b.SetString("uri", uri))
	if preview != nil {
		must(t, b.SetPendingIntent("preview", preview))
	}
	return b.Build()
}

func TestPropertyObjectSpec(t *testing.T) {
	spec := NewObjectSpec(noteType(), noteComponents())

	child, err := spec.PropertyObjectSpec("attachment")
	if err != nil || child.QualifiedName() != "com.example.Attachment" {
		t.Fatalf("attachment spec = %v, %v", child, err)
	}
	listChild, err := spec.PropertyObjectSpec("attachments")
	if err != nil || !listChild.Equal(child) {
		t.Fatalf("array item spec should equal the object spec")
	}
	if _, err := spec.PropertyObjectSpec("missing"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := spec.PropertyObjectSpec("broken"); !errors.Is(err, ErrIllegalState) || !strings.Contains(err.Error(), "unable to resolve") {
		t.Fatalf("expected illegal state, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for non-object property")
		}
	}()
	_, _ = spec.PropertyObjectSpec("title")
}

func TestPropertyObjectSpecAllOf(t *testing.T) {
	obj := &metadata.ObjectType{Properties: []metadata.Property{{
		Name: "doc",
		Type: &metadata.AllOfType{
			QualifiedName: "com.example.Doc",
			MatchAll: []metadata.DataType{
				metadata.Ref("com.example.Attachment"),
				&metadata.ObjectType{Properties: []metadata.Property{{Name: "size", Type: metadata.Long()}}},
			},
		},
	}}}
	spec := NewObjectSpec(obj, noteComponents())
	child, err := spec.PropertyObjectSpec("doc")
	if err != nil {
		t.Fatalf("allOf spec: %v", err)
	}
	if child.QualifiedName() != "com.example.Doc" || !child.ContainsMetadata("uri") || !child.ContainsMetadata("size") {
		t.Fatalf("unexpected flattened spec keys %v", child.Keys())
	}

	b := NewBuilderForSpec(spec)
	cb := NewBuilderForSpec(child)
	must(t, cb.SetLong("size", 10))
	must(t, cb.SetString("uri", "content://doc"))
	must(t, b.SetData("doc", cb.Build()))
	got, err := b.Build().GetData("doc")
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if size, err := got.GetLong("size"); err != nil || size != 10 {
		t.Fatalf("size = %v, %v", size, err)
	}
}

func TestSpecEquality(t *testing.T) {
	a := NewObjectSpec(attachmentType(), metadata.Components{})
	b := NewObjectSpec(attachmentType(), noteComponents())
	if !a.Equal(b) {
		t.Fatalf("component tables should not affect equality of inline shapes")
	}
	other := attachmentType()
	other.Properties = append(other.Properties, metadata.Property{Name: "size", Type: metadata.Long()})
	if a.Equal(NewObjectSpec(other, metadata.Components{})) {
		t.Fatalf("different shapes should not be equal")
	}
	opt := attachmentType()
	opt.Required = nil
	if a.Equal(NewObjectSpec(opt, metadata.Components{})) {
		t.Fatalf("required set is part of the shape")
	}
}

func TestRecursiveSpecEquality(t *testing.T) {
	node := func() metadata.Components {
		return metadata.Components{DataTypes: map[string]metadata.DataType{
			"Node": &metadata.ObjectType{
				QualifiedName: "Node",
				Properties:    []metadata.Property{{Name: "next", Type: metadata.Ref("Node")}},
			},
		}}
	}
	root := &metadata.ObjectType{Properties: []metadata.Property{{Name: "head", Type: metadata.Ref("Node")}}}
	if !NewObjectSpec(root, node()).Equal(NewObjectSpec(root, node())) {
		t.Fatalf("recursive shapes should compare equal")
	}
}

func TestNestedConsistency(t *testing.T) {
	b := NewBuilder(noteType(), noteComponents())

	// equal structure, distinct instance, empty components table
	must(t, b.SetData("attachment", buildAttachment(t, "content://a", nil)))

	other := attachmentType()
	other.Properties = append(other.Properties, metadata.Property{Name: "size", Type: metadata.Long()})
	ob := NewBuilder(other, metadata.Components{})
	must(t, ob.SetString("uri", "content://b"))
	if err := b.SetData("attachment", ob.Build()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected nested mismatch, got %v", err)
	}
	if err := b.SetDataList("attachments", []*Data{buildAttachment(t, "x", nil), ob.Build()}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected nested list mismatch, got %v", err)
	}
	legacy := NewLegacyBuilder("com.example.Attachment", "l1").Build()
	if err := b.SetData("attachment", legacy); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("legacy child should not satisfy a declared shape, got %v", err)
	}
	if err := b.SetData("title", buildAttachment(t, "x", nil)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nesting into a string slot should fail, got %v", err)
	}

	d := b.Build()
	if d.ContainsKey("attachments") {
		t.Fatalf("failed list write leaked into the container")
	}
	att, err := d.GetData("attachment")
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if uri, err := att.GetString("uri"); err != nil || uri != "content://a" {
		t.Fatalf("uri = %q, %v", uri, err)
	}
	if att.QualifiedName() != "com.example.Attachment" {
		t.Fatalf("child qualified name = %q", att.QualifiedName())
	}
	if _, err := att.GetLong("uri"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nested container should validate with the child spec")
	}
}

func TestExtrasPropagation(t *testing.T) {
	b := NewBuilder(noteType(), noteComponents())
	must(t, b.SetData("attachment", buildAttachment(t, "content://single", NewHandle("single"))))
	must(t, b.SetDataList("attachments", []*Data{
		buildAttachment(t, "content://0", NewHandle("zero")),
		buildAttachment(t, "content://1", nil),
		buildAttachment(t, "content://2", NewHandle("two")),
	}))
	d := b.Build()

	att, err := d.GetData("attachment")
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if h, err := att.GetPendingIntent("preview"); err != nil || h != NewHandle("single") {
		t.Fatalf("single preview = %v, %v", h, err)
	}

	list, err := d.GetDataList("attachments")
	if err != nil || len(list) != 3 {
		t.Fatalf("GetDataList = %v, %v", list, err)
	}
	want := []PlatformHandle{NewHandle("zero"), nil, NewHandle("two")}
	for i, child := range list {
		h, err := child.GetPendingIntent("preview")
		if err != nil {
			t.Fatalf("index %d: %v", i, err)
		}
		if h != want[i] {
			t.Fatalf("index %d preview = %v, want %v", i, h, want[i])
		}
	}

	// replacing the list drops the old per-index entries
	b2 := NewBuilder(noteType(), noteComponents())
	must(t, b2.SetDataList("attachments", []*Data{
		buildAttachment(t, "a", NewHandle("old-0")),
		buildAttachment(t, "b", NewHandle("old-1")),
	}))
	must(t, b2.SetDataList("attachments", []*Data{buildAttachment(t, "c", nil)}))
	replaced, err := b2.Build().GetDataList("attachments")
	if err != nil || len(replaced) != 1 {
		t.Fatalf("replaced list = %v, %v", replaced, err)
	}
	if h, _ := replaced[0].GetPendingIntent("preview"); h != nil {
		t.Fatalf("stale extras survived replacement: %v", h)
	}
}

func TestVisitURIGrants(t *testing.T) {
	r := DefaultRegistry()
	grant := func(uri string) *Data {
		g, err := NewURIGrant(uri, FlagGrantReadURIPermission)
		must(t, err)
		d, err := Serialize(r, g)
		must(t, err)
		return d
	}

	b := NewBuilder(noteType(), noteComponents())
	must(t, b.SetString("title", "t"))
	must(t, b.SetData("grant", grant("content://one")))
	must(t, b.SetDataList("grants", []*Data{grant("content://two"), grant("content://three")}))
	must(t, b.SetData("attachment", buildAttachment(t, "content://not-a-grant", nil)))

	var seen []string
	b.Build().VisitURIGrants(func(g URIGrant) { seen = append(seen, g.URI) })
	if strings.Join(seen, ",") != "content://one,content://two,content://three" {
		t.Fatalf("visited %v", seen)
	}

	var self []string
	grant("content://self").VisitURIGrants(func(g URIGrant) { self = append(self, g.URI) })
	if len(self) != 1 || self[0] != "content://self" {
		t.Fatalf("visiting a grant should report itself, got %v", self)
	}
}

func TestVisitURIGrantsLegacy(t *testing.T) {
	g, err := Serialize(DefaultRegistry(), URIGrant{URI: "content://legacy", ModeFlags: FlagGrantWriteURIPermission})
	must(t, err)
	b := NewLegacyBuilder("com.example.Holder", "h")
	must(t, b.SetString("name", "n"))
	must(t, b.SetDataList("items", []*Data{g}))
	var seen []string
	b.Build().VisitURIGrants(func(g URIGrant) { seen = append(seen, g.URI) })
	if len(seen) != 1 || seen[0] != "content://legacy" {
		t.Fatalf("visited %v", seen)
	}
}

func TestLegacyChildrenKeepExtras(t *testing.T) {
	child := func(name string, h PlatformHandle) *Data {
		b := NewLegacyBuilder("com.example.Attachment", name)
		must(t, b.SetString("uri", "content://"+name))
		must(t, b.SetPendingIntent("preview", h))
		return b.Build()
	}
	b := NewLegacyBuilder("com.example.Holder", "h")
	must(t, b.SetData("single", child("s", NewHandle("single"))))
	must(t, b.SetDataList("many", []*Data{child("m0", NewHandle("zero")), child("m1", NewHandle("one"))}))
	d := b.Build()

	single := d.children("single")
	if len(single) != 1 {
		t.Fatalf("single children = %d", len(single))
	}
	if h, err := single[0].GetPendingIntent("preview"); err != nil || h != NewHandle("single") {
		t.Fatalf("single preview = %v, %v", h, err)
	}

	many := d.children("many")
	if len(many) != 2 {
		t.Fatalf("many children = %d", len(many))
	}
	for i, want := range []PlatformHandle{NewHandle("zero"), NewHandle("one")} {
		if h, err := many[i].GetPendingIntent("preview"); err != nil || h != want {
			t.Fatalf("many[%d] preview = %v, %v", i, h, err)
		}
	}

	if got := d.children("missing"); got != nil {
		t.Fatalf("missing key children = %v", got)
	}
}

func TestVisitURIGrantsLegacySingle(t *testing.T) {
	g, err := Serialize(DefaultRegistry(), URIGrant{URI: "content://only", ModeFlags: FlagGrantReadURIPermission})
	must(t, err)
	b := NewLegacyBuilder("com.example.Holder", "h")
	must(t, b.SetData("grant", g))
	var seen []string
	b.Build().VisitURIGrants(func(g URIGrant) { seen = append(seen, g.URI) })
	if len(seen) != 1 || seen[0] != "content://only" {
		t.Fatalf("visited %v", seen)
	}
}
